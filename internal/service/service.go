// Package service is the programmatic surface of pipeaudit. The CLI is a
// thin layer over it.
//
// A Service owns the process-wide resources: one audit logger, one ledger
// store and one sealer. They are opened on first use and released by Close.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/pipeaudit/internal/audit"
	"github.com/roach88/pipeaudit/internal/config"
	"github.com/roach88/pipeaudit/internal/connector"
	"github.com/roach88/pipeaudit/internal/engine"
	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/ledger"
	"github.com/roach88/pipeaudit/internal/store"
)

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for run timestamps, audit periods and seals.
func WithClock(c ir.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRunIDs sets the run identifier generator.
func WithRunIDs(g engine.RunIDGenerator) Option {
	return func(s *Service) { s.runIDs = g }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service runs contracts and manages the audit trail of one project.
type Service struct {
	cfg      config.Config
	clock    ir.Clock
	runIDs   engine.RunIDGenerator
	log      *slog.Logger
	registry *connector.Registry

	mu     sync.Mutex
	store  ledger.Store
	sealer *ledger.Sealer
	audit  *audit.FileLogger
}

// New creates a Service for cfg. Nothing is opened until it is needed.
func New(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		clock:  ir.SystemClock{},
		runIDs: engine.UUIDv7Generator{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = connector.NewRegistry(
		connector.WithBaseDir(cfg.Root),
		connector.WithMaxFileSize(cfg.MaxFileSizeMB),
	)
	return s
}

// Config returns the configuration the service was created with.
func (s *Service) Config() config.Config {
	return s.cfg
}

// Close releases the audit logger and the ledger store.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
		s.audit = nil
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
		s.sealer = nil
	}
	return errors.Join(errs...)
}

// ledgerSealer opens the configured ledger backend on first use.
func (s *Service) ledgerSealer() (*ledger.Sealer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealerLocked()
}

func (s *Service) sealerLocked() (*ledger.Sealer, error) {
	if s.sealer != nil {
		return s.sealer, nil
	}

	var (
		st  ledger.Store
		err error
	)
	switch s.cfg.LedgerBackend {
	case config.BackendSQLite:
		st, err = store.Open(s.cfg.Ledger())
	default:
		st, err = ledger.OpenFileStore(s.cfg.Ledger())
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", s.cfg.Ledger(), err)
	}

	s.store = st
	s.sealer = ledger.NewSealer(st, audit.Dir(s.cfg.Logs()),
		ledger.WithClock(s.clock),
		ledger.WithLogger(s.log),
	)
	return s.sealer, nil
}

// auditLogger opens the process-wide audit logger on first use. Its
// rollover hook seals every finished period before the one being written.
func (s *Service) auditLogger() (*audit.FileLogger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audit != nil {
		return s.audit, nil
	}
	sealer, err := s.sealerLocked()
	if err != nil {
		return nil, err
	}
	l, err := audit.NewFileLogger(s.cfg.Logs(),
		audit.WithRollover(sealer.Rollover),
		audit.WithClock(s.clock),
		audit.WithLogger(s.log),
	)
	if err != nil {
		return nil, err
	}
	s.audit = l
	return l, nil
}
