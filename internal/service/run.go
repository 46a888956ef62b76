package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pipeaudit/internal/audit"
	"github.com/roach88/pipeaudit/internal/compiler"
	"github.com/roach88/pipeaudit/internal/connector"
	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/engine"
	"github.com/roach88/pipeaudit/internal/ir"
)

// RunOptions controls a contract run.
type RunOptions struct {
	// DryRun evaluates the contract without writing audit records or
	// routing the dataset.
	DryRun bool

	// Data replaces the dataset normally fetched from the contract source.
	Data *dataset.Dataset
}

// RunResult is the outcome of one contract in RunAll.
type RunResult struct {
	Contract string
	Report   *engine.Report
	Err      error
}

// RunContract loads the contract called name and runs it.
//
// The Report is nil only when the run never started: the contract did
// not load or the dataset could not be acquired.
func (s *Service) RunContract(ctx context.Context, name string, opts RunOptions) (*engine.Report, error) {
	c, err := compiler.Load(s.cfg.Contracts(), name)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, c, opts)
}

// RunAll runs every contract in contract-name order. A failing or broken
// contract does not stop the others; the returned error is the first one
// encountered.
func (s *Service) RunAll(ctx context.Context, opts RunOptions) ([]RunResult, error) {
	files, err := compiler.Files(s.cfg.Contracts())
	if err != nil {
		return nil, err
	}

	type pending struct {
		name     string
		contract *ir.Contract
		err      error
	}
	queue := make([]pending, 0, len(files))
	for _, f := range files {
		c, err := compiler.CompileFile(f)
		if err != nil {
			queue = append(queue, pending{name: contractStem(f), err: err})
			continue
		}
		queue = append(queue, pending{name: c.Name, contract: c})
	}
	slices.SortStableFunc(queue, func(a, b pending) int { return strings.Compare(a.name, b.name) })

	var (
		results []RunResult
		first   error
	)
	for _, p := range queue {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := RunResult{Contract: p.name, Err: p.err}
		if p.contract != nil {
			res.Report, res.Err = s.run(ctx, p.contract, opts)
		}
		if res.Err != nil {
			s.log.Warn("contract run failed", "contract", p.name, "error", res.Err)
			if first == nil {
				first = res.Err
			}
		}
		results = append(results, res)
	}
	return results, first
}

func (s *Service) run(ctx context.Context, c *ir.Contract, opts RunOptions) (*engine.Report, error) {
	data := opts.Data
	if data == nil {
		var err error
		if data, err = s.acquire(ctx, c); err != nil {
			return nil, err
		}
	}

	var logger audit.Logger = audit.Nop
	engOpts := []engine.Option{
		engine.WithClock(s.clock),
		engine.WithRunIDs(s.runIDs),
		engine.WithWorkers(s.cfg.Workers),
		engine.WithLogger(s.log),
	}
	if !opts.DryRun {
		fl, err := s.auditLogger()
		if err != nil {
			return nil, err
		}
		logger = fl
		engOpts = append(engOpts, engine.WithRouter(connector.NewRouter(s.registry, s.log)))
	}

	eng := engine.New(logger, engOpts...)
	rc := eng.NewRunContext(c, s.cfg.Executor, c.Source.String())
	return eng.Run(ctx, c, data, rc)
}

// acquire fetches and decodes the contract's source dataset.
func (s *Service) acquire(ctx context.Context, c *ir.Contract) (*dataset.Dataset, error) {
	if c.Source.Type == "" {
		return nil, ir.Errorf(ir.ErrDatasetAccess, "contract has no source").WithContract(c.Name)
	}
	src, err := s.registry.Source(c.Source)
	if err != nil {
		return nil, withContract(err, c.Name)
	}
	drv, err := connector.DriverFor(c.Source)
	if err != nil {
		return nil, withContract(err, c.Name)
	}
	raw, err := src.Fetch(ctx, c.Source)
	if err != nil {
		return nil, withContract(err, c.Name)
	}
	data, err := drv.Decode(raw)
	if err != nil {
		return nil, withContract(err, c.Name)
	}
	s.log.Debug("dataset acquired", "contract", c.Name, "source", c.Source.String(), "rows", data.Rows(), "columns", data.Width())
	return data, nil
}

// withContract names the contract on typed errors that lack one.
func withContract(err error, name string) error {
	var e *ir.Error
	if errors.As(err, &e) && e.Contract == "" {
		e.WithContract(name)
	}
	if e == nil {
		return fmt.Errorf("contract %s: %w", name, err)
	}
	return err
}
