package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Store persists ledger entries.
//
// Entries are returned in sequence order. Append never rewrites or removes
// an existing entry; backends that can enforce that (the SQLite store)
// reject any attempt at the storage level.
type Store interface {
	Entries(ctx context.Context) ([]ir.LedgerEntry, error)
	Append(ctx context.Context, e ir.LedgerEntry) error
	Close() error
}

// DefaultFileName is the ledger file name inside the log directory.
const DefaultFileName = "ledger.jsonl"

// FileStore keeps the ledger as newline-delimited JSON, one entry per line.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// OpenFileStore returns a store backed by path. The file is created on the
// first Append.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the ledger file path.
func (s *FileStore) Path() string {
	return s.path
}

// Entries reads every entry. A missing file is an empty ledger; a line
// that does not decode is reported as tampering.
func (s *FileStore) Entries(_ context.Context) ([]ir.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var entries []ir.LedgerEntry
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var e ir.LedgerEntry
		dec := json.NewDecoder(bytes.NewReader(sc.Bytes()))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&e); err != nil {
			return nil, ir.Wrap(ir.ErrTamper, err, fmt.Sprintf("ledger line %d is corrupt", line))
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return entries, nil
}

// Append writes e as one line and syncs the file.
func (s *FileStore) Append(_ context.Context, e ir.LedgerEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}
	n, err := f.Write(line)
	if err == nil && n != len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		_ = f.Truncate(info.Size())
		return fmt.Errorf("write ledger entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// Close is a no-op; the file is opened per call.
func (s *FileStore) Close() error {
	return nil
}
