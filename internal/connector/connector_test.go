package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
)

func TestRegistry_Resolution(t *testing.T) {
	r := NewRegistry()

	src, err := r.Source(ir.Location{Type: TypeLocal})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, src)

	sink, err := r.Sink(ir.Location{Type: TypeNotMoved})
	require.NoError(t, err)
	assert.Equal(t, NotMoved{}, sink)

	assert.True(t, r.Available(TypeLocal))
	assert.False(t, r.Available("s3"))
}

func TestRegistry_UnavailableConnectors(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		typ  string
		want string
	}{
		{"s3", `connector "s3" not available`},
		{"gcs", `connector "gcs" not available`},
		{"azure", `connector "azure" not available`},
		{"sftp", `connector "sftp" not available`},
		{"ftp", `unknown connector type "ftp"`},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			_, err := r.Source(ir.Location{Type: tt.typ})
			require.Error(t, err)
			assert.True(t, ir.IsDatasetAccessError(err))
			assert.Contains(t, err.Error(), tt.want)

			_, err = r.Sink(ir.Location{Type: tt.typ})
			assert.True(t, ir.IsDatasetAccessError(err))
		})
	}

	_, err := r.Source(ir.Location{Type: TypeNotMoved})
	assert.True(t, ir.IsDatasetAccessError(err))
}

func TestLocal_FetchRelativeToBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "people.csv"), []byte("id\n1\n"), 0o644))

	src, err := NewRegistry(WithBaseDir(dir)).Source(ir.Location{Type: TypeLocal})
	require.NoError(t, err)

	data, err := src.Fetch(context.Background(), ir.Location{Type: TypeLocal, Location: "data/people.csv"})
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))
}

func TestLocal_FetchErrors(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.csv")
	require.NoError(t, os.WriteFile(big, make([]byte, 2*1024*1024+1), 0o644))

	l := &Local{MaxBytes: 2 * 1024 * 1024}
	ctx := context.Background()

	_, err := l.Fetch(ctx, ir.Location{Location: big})
	require.Error(t, err)
	assert.True(t, ir.IsDatasetAccessError(err))
	assert.Contains(t, err.Error(), "file too large")

	_, err = l.Fetch(ctx, ir.Location{Location: filepath.Join(dir, "missing.csv")})
	assert.Contains(t, err.Error(), "source file not found")

	_, err = l.Fetch(ctx, ir.Location{Location: dir})
	assert.Contains(t, err.Error(), "is a directory")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Fetch(cancelled, ir.Location{Location: big})
	assert.True(t, ir.IsDatasetAccessError(err))
}

func TestWithMaxFileSize(t *testing.T) {
	src, err := NewRegistry(WithMaxFileSize(3)).Source(ir.Location{Type: TypeLocal})
	require.NoError(t, err)
	assert.Equal(t, int64(3*1024*1024), src.(*Local).MaxBytes)
}

func TestLocal_Put(t *testing.T) {
	dir := t.TempDir()
	l := &Local{Base: dir}

	id, err := l.Put(context.Background(), ir.Location{Type: TypeLocal, Location: "out/clean"}, "people.csv", []byte("id\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, "local:"+filepath.Join("out/clean", "people.csv"), id)

	data, err := os.ReadFile(filepath.Join(dir, "out", "clean", "people.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "out", "clean"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestOutputName(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 5, 7, 0, time.UTC)

	assert.Equal(t, "people_20260314_090507.csv", OutputName("data/people.csv", at, false, "csv"))
	assert.Equal(t, "people_20260314_090507_quarantine.csv", OutputName("data/people.csv", at, true, "csv"))
	assert.Equal(t, "events_20260314_090507.jsonl", OutputName("/abs/events.ndjson", at, false, "jsonl"))
	assert.Equal(t, "dataset_20260314_090507.csv", OutputName("", at, false, "csv"))
}

func routedContract(dir string) *ir.Contract {
	return &ir.Contract{
		Name:        "people",
		Version:     "1.0.0",
		Source:      ir.Location{Type: TypeLocal, Location: "in/people.csv"},
		Destination: &ir.Location{Type: TypeLocal, Location: filepath.Join(dir, "clean")},
		Quarantine:  &ir.Location{Type: TypeLocal, Location: filepath.Join(dir, "bad"), Format: "jsonl"},
	}
}

func TestRouter_Route(t *testing.T) {
	dir := t.TempDir()
	c := routedContract(dir)
	data := dataset.MustFromRows([]string{"id", "name"}, [][]any{{1, "ann"}, {2, nil}})
	rc := ir.RunContext{RunTimestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
	router := NewRouter(NewRegistry(), nil)
	ctx := context.Background()

	dest, err := router.Route(ctx, ir.VerdictPass, c, data, rc)
	require.NoError(t, err)
	assert.Contains(t, dest, "people_20260314_093000.csv")
	body, err := os.ReadFile(filepath.Join(dir, "clean", "people_20260314_093000.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,ann\n2,\n", string(body))

	dest, err = router.Route(ctx, ir.VerdictFail, c, data, rc)
	require.NoError(t, err)
	assert.Contains(t, dest, "people_20260314_093000_quarantine.jsonl")
	body, err = os.ReadFile(filepath.Join(dir, "bad", "people_20260314_093000_quarantine.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1,\"name\":\"ann\"}\n{\"id\":2,\"name\":null}\n", string(body))
}

func TestRouter_NoLocation(t *testing.T) {
	c := &ir.Contract{Name: "x", Source: ir.Location{Type: TypeLocal, Location: "x.csv"}}
	router := NewRouter(NewRegistry(), nil)

	for _, v := range []ir.Verdict{ir.VerdictPass, ir.VerdictFail, ir.VerdictError} {
		dest, err := router.Route(context.Background(), v, c, dataset.Empty(), ir.RunContext{})
		require.NoError(t, err)
		assert.Empty(t, dest)
	}
}

func TestRouter_NotMovedAndUnavailable(t *testing.T) {
	c := &ir.Contract{
		Name:        "x",
		Source:      ir.Location{Type: TypeLocal, Location: "x.csv"},
		Destination: &ir.Location{Type: TypeNotMoved},
		Quarantine:  &ir.Location{Type: "s3", Location: "bucket/bad"},
	}
	router := NewRouter(NewRegistry(), nil)
	ctx := context.Background()

	dest, err := router.Route(ctx, ir.VerdictPass, c, dataset.Empty(), ir.RunContext{})
	require.NoError(t, err)
	assert.Empty(t, dest)

	_, err = router.Route(ctx, ir.VerdictFail, c, dataset.Empty(), ir.RunContext{})
	assert.True(t, ir.IsDatasetAccessError(err))
}
