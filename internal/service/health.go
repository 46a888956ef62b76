package service

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Check is one line of a health report.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// HealthReport summarises whether the project is ready to run.
type HealthReport struct {
	Checks []Check `json:"checks"`
}

// OK reports whether every check passed.
func (h HealthReport) OK() bool {
	for _, c := range h.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Health checks the contracts directory, the log directory, the profiles
// file and the ledger.
func (s *Service) Health(ctx context.Context) HealthReport {
	var h HealthReport
	add := func(name string, err error, detail string) {
		c := Check{Name: name, OK: err == nil, Detail: detail}
		if err != nil {
			c.Detail = err.Error()
		}
		h.Checks = append(h.Checks, c)
	}

	contracts, err := s.ListContracts()
	if err == nil {
		var invalid int
		for _, c := range contracts {
			if c.Err != nil {
				invalid++
			}
		}
		if invalid > 0 {
			err = fmt.Errorf("%d of %d contracts are invalid", invalid, len(contracts))
		}
	}
	add("contracts", err, fmt.Sprintf("%d contracts in %s", len(contracts), s.cfg.Contracts()))

	add("logs", dirReady(s.cfg.Logs()), s.cfg.Logs())

	profiles, err := s.Profiles()
	add("profiles", err, fmt.Sprintf("%d profiles in %s", len(profiles), s.cfg.Profiles()))

	entries, err := s.LedgerEntries(ctx)
	add("ledger", err, fmt.Sprintf("%d sealed periods (%s backend)", len(entries), s.cfg.LedgerBackend))

	return h
}

func dirReady(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s does not exist (run pipeaudit init)", path)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
