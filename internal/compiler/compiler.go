// Package compiler turns contract documents into validated ir.Contract values.
//
// Compilation has three stages, all of which run before any data is read:
//  1. TOML decoding (go-toml)
//  2. shape checking against an embedded, closed CUE schema
//  3. typed rule construction with per-rule parameter checks
//
// Every problem is collected; a contract with any problem is rejected as a
// whole with an ir.ErrContract error wrapping ValidationErrors.
package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Extension is the file extension of contract files.
const Extension = ".toml"

// Compile parses and validates one contract document.
// filename is used only for error messages.
func Compile(data []byte, filename string) (*ir.Contract, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		ve := ValidationError{Field: filename, Message: err.Error(), Code: ErrTOMLSyntax}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			ve.Line, _ = decodeErr.Position()
		}
		return nil, contractError(filename, ValidationErrors{ve})
	}

	if errs := checkShape(doc); len(errs) > 0 {
		return nil, contractError(nameOf(doc, filename), errs)
	}

	b := &builder{}
	c := b.contract(doc)
	if len(b.errs) > 0 {
		return nil, contractError(c.Name, b.errs)
	}
	return c, nil
}

// CompileFile reads and compiles the contract at path.
func CompileFile(path string) (*ir.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ir.Wrap(ir.ErrContract, ValidationErrors{{
				Field:   path,
				Message: "contract file not found",
				Code:    ErrContractNotFound,
			}}, "contract file not found: "+path)
		}
		return nil, ir.Wrap(ir.ErrContract, err, "read contract "+path)
	}
	return Compile(data, path)
}

// Load finds and compiles the contract called name in dir.
//
// The file <dir>/<name>.toml is tried first. Otherwise every contract in
// dir is compiled and the one whose contract.name equals name is returned.
// A missing contract is an ir.ErrContract error, never a panic.
func Load(dir, name string) (*ir.Contract, error) {
	direct := filepath.Join(dir, name+Extension)
	if _, err := os.Stat(direct); err == nil {
		return CompileFile(direct)
	}

	all, err := LoadAll(dir)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, ir.Wrap(ir.ErrContract, ValidationErrors{{
		Field:   name,
		Message: fmt.Sprintf("no contract named %q in %s", name, dir),
		Code:    ErrContractNotFound,
	}}, "contract not found").WithContract(name)
}

// Files lists contract files in dir, sorted by file name.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ir.Wrap(ir.ErrContract, err, "read contracts directory "+dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// LoadAll compiles every contract in dir and returns them sorted by name.
// The first invalid contract aborts the load. Two files declaring the same
// contract name are rejected, since names must be unique in a project.
func LoadAll(dir string) ([]*ir.Contract, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]string, len(files))
	contracts := make([]*ir.Contract, 0, len(files))
	for _, f := range files {
		c, err := CompileFile(f)
		if err != nil {
			return nil, err
		}
		if prev, dup := byName[c.Name]; dup {
			return nil, contractError(c.Name, ValidationErrors{{
				Field:   "contract.name",
				Message: fmt.Sprintf("declared by both %s and %s", prev, f),
				Code:    ErrDuplicateName,
			}})
		}
		byName[c.Name] = f
		contracts = append(contracts, c)
	}

	slices.SortFunc(contracts, func(a, b *ir.Contract) int {
		return strings.Compare(a.Name, b.Name)
	})
	return contracts, nil
}

func contractError(name string, errs ValidationErrors) error {
	msg := fmt.Sprintf("invalid contract (%d problem", len(errs))
	if len(errs) != 1 {
		msg += "s"
	}
	msg += ")"
	return ir.Wrap(ir.ErrContract, errs, msg).WithContract(name)
}

// nameOf extracts contract.name for error messages when the document
// fails the schema, falling back to the file name.
func nameOf(doc map[string]any, fallback string) string {
	if meta, ok := doc["contract"].(map[string]any); ok {
		if name, ok := meta["name"].(string); ok && name != "" {
			return name
		}
	}
	return fallback
}
