// Package connector acquires datasets from, and delivers them to, the
// locations named in a contract.
//
// A location is resolved in two steps: its Type selects a connector that
// moves bytes (Source/Sink), and its Format or file extension selects a
// driver that converts bytes to a dataset and back.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Connector type names.
const (
	TypeLocal    = "local"
	TypeNotMoved = "not_moved"
)

// cloudTypes are accepted in contracts but have no connector in this build.
var cloudTypes = map[string]bool{
	"s3":    true,
	"gcs":   true,
	"azure": true,
	"sftp":  true,
}

// Source reads the raw bytes of a dataset.
type Source interface {
	Fetch(ctx context.Context, loc ir.Location) ([]byte, error)
}

// Sink stores a dataset under name at loc and returns an identifier for
// what was written, or "" if nothing was written.
type Sink interface {
	Put(ctx context.Context, loc ir.Location, name string, data []byte) (string, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithBaseDir resolves relative local paths against dir.
func WithBaseDir(dir string) Option {
	return func(r *Registry) { r.base = dir }
}

// WithMaxFileSize rejects source files larger than mb megabytes.
// Zero means no limit.
func WithMaxFileSize(mb int64) Option {
	return func(r *Registry) { r.maxBytes = mb * 1024 * 1024 }
}

// Registry resolves connector types.
type Registry struct {
	base     string
	maxBytes int64
}

// NewRegistry creates a registry with the built-in connectors.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether typ has a connector in this build.
func (r *Registry) Available(typ string) bool {
	return typ == TypeLocal || typ == TypeNotMoved
}

// Source returns the connector that reads loc.
func (r *Registry) Source(loc ir.Location) (Source, error) {
	switch loc.Type {
	case TypeLocal:
		return &Local{Base: r.base, MaxBytes: r.maxBytes}, nil
	case TypeNotMoved:
		return nil, ir.Errorf(ir.ErrDatasetAccess, "connector %q cannot be a source", loc.Type)
	}
	return nil, unavailable(loc.Type)
}

// Sink returns the connector that writes to loc.
func (r *Registry) Sink(loc ir.Location) (Sink, error) {
	switch loc.Type {
	case TypeLocal:
		return &Local{Base: r.base}, nil
	case TypeNotMoved:
		return NotMoved{}, nil
	}
	return nil, unavailable(loc.Type)
}

func unavailable(typ string) error {
	if cloudTypes[typ] {
		return ir.Errorf(ir.ErrDatasetAccess, "connector %q not available in this build", typ)
	}
	return ir.Errorf(ir.ErrDatasetAccess, "unknown connector type %q", typ)
}

// Local reads and writes the local filesystem.
type Local struct {
	Base     string
	MaxBytes int64
}

func (l *Local) path(p string) string {
	if filepath.IsAbs(p) || l.Base == "" {
		return p
	}
	return filepath.Join(l.Base, p)
}

// Fetch reads the file at loc.Location.
func (l *Local) Fetch(ctx context.Context, loc ir.Location) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, ir.Wrap(ir.ErrDatasetAccess, err, "fetch cancelled")
	}
	path := l.path(loc.Location)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ir.Errorf(ir.ErrDatasetAccess, "source file not found: %s", path)
	case err != nil:
		return nil, ir.Wrap(ir.ErrDatasetAccess, err, "stat source")
	case info.IsDir():
		return nil, ir.Errorf(ir.ErrDatasetAccess, "source is a directory: %s", path)
	case l.MaxBytes > 0 && info.Size() > l.MaxBytes:
		return nil, ir.Errorf(ir.ErrDatasetAccess, "file too large: %s is %d bytes, limit %d", path, info.Size(), l.MaxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ir.Wrap(ir.ErrDatasetAccess, err, "read source")
	}
	return data, nil
}

// Put writes data to name inside the directory loc.Location. The file is
// written under a temporary name and renamed into place.
func (l *Local) Put(ctx context.Context, loc ir.Location, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ir.Wrap(ir.ErrDatasetAccess, err, "put cancelled")
	}
	dir := l.path(loc.Location)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ir.Wrap(ir.ErrDatasetAccess, err, "create destination directory")
	}
	dest := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", ir.Wrap(ir.ErrDatasetAccess, err, "create destination file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", ir.Wrap(ir.ErrDatasetAccess, err, "write destination file")
	}
	if err := tmp.Close(); err != nil {
		return "", ir.Wrap(ir.ErrDatasetAccess, err, "write destination file")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", ir.Wrap(ir.ErrDatasetAccess, err, "move destination file")
	}
	return fmt.Sprintf("%s:%s", TypeLocal, filepath.Join(loc.Location, name)), nil
}

// NotMoved is the sink for locations that deliberately keep data in place.
type NotMoved struct{}

// Put discards data.
func (NotMoved) Put(context.Context, ir.Location, string, []byte) (string, error) {
	return "", nil
}
