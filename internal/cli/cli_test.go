package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeaudit/internal/service"
	"github.com/roach88/pipeaudit/internal/testutil"
)

var day1 = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type project struct {
	dir   string
	clock *testutil.StepClock
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	_, err := service.Init(dir)
	require.NoError(t, err)
	return &project{dir: dir, clock: testutil.NewFixedClock(day1)}
}

// run executes the CLI against the project and returns the exit code,
// stdout and stderr.
func (p *project) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	opts := &RootOptions{
		Clock:  p.clock,
		RunIDs: testutil.NewFixedRunIDGenerator("run-cli"),
	}
	args = append([]string{"--project", p.dir}, args...)
	code := execute(context.Background(), opts, args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func (p *project) write(t *testing.T, rel, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, rel), []byte(body), 0o644))
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "pipeaudit", cmd.Use)

	for _, path := range [][]string{
		{"contract", "validate"}, {"contract", "list"}, {"run"}, {"health"},
		{"profile", "list"}, {"profile", "test"}, {"logs", "verify"}, {"logs", "seal"}, {"init"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	project := cmd.PersistentFlags().Lookup("project")
	require.NotNil(t, project)
	assert.Equal(t, ".", project.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	p := newProject(t)
	code, _, errOut := p.run(t, "--format", "xml", "health")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, `invalid format "xml"`)
}

func TestRun_PassAndFailExitCodes(t *testing.T) {
	p := newProject(t)

	code, out, _ := p.run(t, "run", "example")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "example")
	assert.Contains(t, out, "run run-cli")
	assert.Contains(t, out, "routed to local:")

	p.write(t, "data/example.csv", "id,email,age\n1,a@b.io,10\n1,a@b.io,10\n")
	code, out, _ = p.run(t, "run", "example")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "column id unique")
}

func TestRun_JSON(t *testing.T) {
	p := newProject(t)

	code, out, _ := p.run(t, "--format", "json", "run", "example", "--dry-run")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Contract string `json:"contract"`
			Verdict  string `json:"verdict"`
			RunID    string `json:"run_id"`
			Outcomes []struct {
				Rule   string `json:"rule"`
				Status string `json:"status"`
			} `json:"outcomes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "example", resp.Data.Contract)
	assert.Equal(t, "pass", resp.Data.Verdict)
	assert.Equal(t, "run-cli", resp.Data.RunID)
	require.Len(t, resp.Data.Outcomes, 5)
	assert.Equal(t, "row_count", resp.Data.Outcomes[0].Rule)
}

func TestRun_ArgumentErrors(t *testing.T) {
	p := newProject(t)

	code, _, errOut := p.run(t, "run")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "expected one contract name")

	code, _, _ = p.run(t, "run", "example", "--all")
	assert.Equal(t, ExitCommandError, code)

	code, out, _ := p.run(t, "run", "nope")
	assert.Equal(t, ExitContractError, code)
	assert.Contains(t, out, "nope")
}

func TestRun_MissingDataset(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(p.dir, "data", "example.csv")))

	code, out, _ := p.run(t, "run", "example")
	assert.Equal(t, ExitDatasetError, code)
	assert.Contains(t, out, "source file not found")
}

func TestRun_All(t *testing.T) {
	p := newProject(t)
	p.write(t, "contracts/bad.toml", "[contract]\nname = \"bad\"\nversion = \"1\"\n")

	code, out, _ := p.run(t, "run", "--all")
	assert.Equal(t, ExitContractError, code)
	assert.Contains(t, out, "bad")
	assert.Contains(t, out, "example")
}

func TestContractValidate(t *testing.T) {
	p := newProject(t)

	code, out, _ := p.run(t, "contract", "validate")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "example")

	code, _, _ = p.run(t, "contract", "validate", filepath.Join(p.dir, "contracts", "example.toml"))
	assert.Equal(t, ExitSuccess, code)

	p.write(t, "contracts/bad.toml", `[contract]
name = "bad"
version = "1.0.0"

[[columns]]
name = "x"
validation = [{ rule = "range" }, { rule = "pattern", pattern = "(" }]
`)
	code, out, _ = p.run(t, "contract", "validate", "bad")
	assert.Equal(t, ExitContractError, code)
	assert.Contains(t, out, "E106")

	code, out, _ = p.run(t, "--format", "json", "contract", "validate")
	assert.Equal(t, ExitContractError, code)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
}

func TestContractList(t *testing.T) {
	p := newProject(t)
	code, out, _ := p.run(t, "contract", "list")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "example")
	assert.Contains(t, out, "5 rules")
}

func TestHealth(t *testing.T) {
	p := newProject(t)
	code, out, _ := p.run(t, "health")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "contracts")
	assert.Contains(t, out, "ledger")

	empty := &project{dir: t.TempDir(), clock: p.clock}
	code, _, _ = empty.run(t, "health")
	assert.Equal(t, ExitCommandError, code)
}

func TestProfileCommands(t *testing.T) {
	p := newProject(t)

	code, out, _ := p.run(t, "profile", "list")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "scratch (local)")

	code, _, _ = p.run(t, "profile", "test", "scratch")
	assert.Equal(t, ExitSuccess, code)

	code, _, errOut := p.run(t, "profile", "test", "missing")
	assert.Equal(t, ExitDatasetError, code)
	assert.Contains(t, errOut, `profile "missing" not found`)
}

func TestLogs_SealVerifyTamper(t *testing.T) {
	p := newProject(t)

	code, _, _ := p.run(t, "run", "example")
	require.Equal(t, ExitSuccess, code)

	code, _, errOut := p.run(t, "logs", "seal", "--date", "2026-03-14")
	assert.Equal(t, ExitSealError, code)
	assert.Contains(t, errOut, "still open")

	p.clock.Set(day1.Add(24 * time.Hour))
	code, out, _ := p.run(t, "logs", "seal")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "sealed 2026-03-14 as entry #1")

	code, out, _ = p.run(t, "logs", "verify", "--date", "2026-03-14")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "2026-03-14")

	log := filepath.Join(p.dir, "logs", "audit-2026-03-14.jsonl")
	data, err := os.ReadFile(log)
	require.NoError(t, err)
	data[0] = ' '
	require.NoError(t, os.WriteFile(log, data, 0o644))

	code, out, _ = p.run(t, "logs", "verify")
	assert.Equal(t, ExitTampered, code)
	assert.Contains(t, out, "tampered")

	code, _, _ = p.run(t, "logs", "verify", "--date", "yesterday")
	assert.Equal(t, ExitCommandError, code)
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	var out bytes.Buffer
	code := execute(context.Background(), &RootOptions{}, []string{"init", dir}, &out, &bytes.Buffer{})
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out.String(), "created")
	assert.FileExists(t, filepath.Join(dir, "pipeaudit.yaml"))

	out.Reset()
	code = execute(context.Background(), &RootOptions{}, []string{"init", dir}, &out, &bytes.Buffer{})
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out.String(), "already initialised")
}
