package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/pipeaudit/internal/config"
)

const sampleContract = `# Sample contract created by pipeaudit init.
[contract]
name = "example"
version = "1.0.0"
tags = ["sample"]

[file]
validation = [{ rule = "row_count", min = 1 }]

[[columns]]
name = "id"
validation = [{ rule = "not_null" }, { rule = "unique" }]

[[columns]]
name = "email"
validation = [{ rule = "pattern", pattern = '[^@]+@[^@]+\.[a-z]+' }]

[[columns]]
name = "age"
validation = [{ rule = "range", min = 0, max = 120 }]

[source]
type = "local"
location = "data/example.csv"

[destination]
type = "local"
location = "out/validated"

[quarantine]
type = "local"
location = "out/quarantine"
`

const sampleData = `id,email,age
1,ada@example.com,36
2,grace@example.com,45
3,alan@example.com,41
`

const sampleProfiles = `# Connector profiles. Values of the form ${VAR} are read from the environment.
[scratch]
provider = "local"
`

// Init lays out a new project in dir: configuration, directories, a sample
// contract with its data, and a profiles file. Existing files are left
// untouched. It returns the paths it created.
func Init(dir string) ([]string, error) {
	cfg := config.Default()
	cfg.Root = dir

	yml, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}

	var created []string
	for _, d := range []string{cfg.Contracts(), cfg.Logs(), filepath.Join(dir, "data")} {
		if _, err := os.Stat(d); err == nil {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return created, fmt.Errorf("init: %w", err)
		}
		created = append(created, d)
	}

	files := []struct {
		path string
		body []byte
	}{
		{filepath.Join(dir, config.FileName), yml},
		{filepath.Join(cfg.Contracts(), "example.toml"), []byte(sampleContract)},
		{filepath.Join(dir, "data", "example.csv"), []byte(sampleData)},
		{cfg.Profiles(), []byte(sampleProfiles)},
	}
	for _, f := range files {
		ok, err := writeNew(f.path, f.body)
		if err != nil {
			return created, fmt.Errorf("init: %w", err)
		}
		if ok {
			created = append(created, f.path)
		}
	}
	return created, nil
}

// writeNew creates path with body unless it already exists.
func writeNew(path string, body []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}
