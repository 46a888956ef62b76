package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/pipeaudit/internal/ir"
)

const (
	filePrefix = "audit-"
	fileSuffix = ".jsonl"
)

// Dir is a directory of per-period audit logs.
type Dir string

// Path returns the log file path for period.
func (d Dir) Path(period string) string {
	return filepath.Join(string(d), filePrefix+period+fileSuffix)
}

// Open opens the log for period for reading.
func (d Dir) Open(period string) (io.ReadCloser, error) {
	return os.Open(d.Path(period))
}

// Periods lists the periods that have a log file, oldest first.
// A missing directory has no periods.
func (d Dir) Periods() ([]string, error) {
	entries, err := os.ReadDir(string(d))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	var periods []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		period := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := ir.ParsePeriod(period); err != nil {
			continue
		}
		periods = append(periods, period)
	}
	sort.Strings(periods)
	return periods, nil
}

// RolloverFunc is called when the logger opens a period for the first
// time in this process. It receives the newly opened period; every
// earlier period is complete and may be sealed.
type RolloverFunc func(ctx context.Context, period string) error

// FileOption configures a FileLogger.
type FileOption func(*FileLogger)

// WithRollover installs the period rollover hook.
func WithRollover(fn RolloverFunc) FileOption {
	return func(l *FileLogger) { l.rollover = fn }
}

// WithClock sets the clock used for records without a timestamp.
func WithClock(c ir.Clock) FileOption {
	return func(l *FileLogger) { l.clock = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) FileOption {
	return func(l *FileLogger) { l.logger = logger }
}

// FileLogger appends records to Dir, one file per period.
//
// It is safe for concurrent use within one process. Only one process
// should write a given log directory at a time; cross-process appends rely
// on O_APPEND and are not coordinated.
type FileLogger struct {
	dir      Dir
	clock    ir.Clock
	rollover RolloverFunc
	logger   *slog.Logger

	mu     sync.Mutex
	period string
	file   *os.File
	closed bool
}

// NewFileLogger creates a logger writing under dir. The directory is
// created if needed.
func NewFileLogger(dir string, opts ...FileOption) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ir.Wrap(ir.ErrLogWrite, err, "create log directory")
	}
	l := &FileLogger{
		dir:    Dir(dir),
		clock:  ir.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the directory the logger writes to.
func (l *FileLogger) Dir() Dir {
	return l.dir
}

// Record appends rec to the log of the period its timestamp falls in.
//
// Errors are ir.ErrLogWrite unless the record was appended and only the
// rollover hook failed, in which case the hook's error is returned
// unchanged (normally ir.ErrSeal).
func (l *FileLogger) Record(ctx context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.clock.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	line, err := Encode(rec)
	if err != nil {
		return ir.Wrap(ir.ErrLogWrite, err, "append audit record").WithContract(rec.ContractName)
	}
	period := ir.PeriodOf(rec.Timestamp)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ir.Errorf(ir.ErrLogWrite, "logger is closed").WithContract(rec.ContractName)
	}
	if l.period != "" && period < l.period {
		return ir.Errorf(ir.ErrLogWrite, "record timestamp belongs to closed period").
			WithContract(rec.ContractName).WithPeriod(period)
	}

	opened := false
	if period != l.period {
		if err := l.open(period); err != nil {
			return ir.Wrap(ir.ErrLogWrite, err, "open audit log").
				WithContract(rec.ContractName).WithPeriod(period)
		}
		opened = true
	}

	if err := l.append(line); err != nil {
		return ir.Wrap(ir.ErrLogWrite, err, "append audit record").
			WithContract(rec.ContractName).WithPeriod(period)
	}

	if opened && l.rollover != nil {
		if err := l.rollover(ctx, period); err != nil {
			l.logger.Error("period rollover failed", "period", period, "error", err)
			return err
		}
	}
	return nil
}

func (l *FileLogger) open(period string) error {
	f, err := os.OpenFile(l.dir.Path(period), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			l.logger.Warn("close audit log", "period", l.period, "error", err)
		}
	}
	l.file = f
	l.period = period
	l.logger.Debug("audit log opened", "period", period, "path", f.Name())
	return nil
}

// append writes line in a single call. On a short or failed write the
// file is truncated back to its previous size.
func (l *FileLogger) append(line []byte) error {
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	n, err := l.file.Write(line)
	if err == nil && n != len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if terr := l.file.Truncate(info.Size()); terr != nil {
			l.logger.Error("truncate partial audit line", "path", l.file.Name(), "error", terr)
		}
		return err
	}
	return l.file.Sync()
}

// Close closes the current period file. Further records fail.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
