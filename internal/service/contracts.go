package service

import (
	"path/filepath"
	"strings"

	"github.com/roach88/pipeaudit/internal/compiler"
	"github.com/roach88/pipeaudit/internal/ir"
)

// ValidateContract compiles the contract file at path without running it.
// Problems are returned as one ir.ErrContract error.
func ValidateContract(path string) (*ir.Contract, error) {
	return compiler.CompileFile(path)
}

// ContractInfo describes one contract file in the project.
type ContractInfo struct {
	File    string   `json:"file"`
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	Rules   int      `json:"rules"`
	Tags    []string `json:"tags,omitempty"`
	Err     error    `json:"-"`
}

// ListContracts compiles every contract in the contracts directory.
// An invalid contract is listed with its error rather than aborting.
func (s *Service) ListContracts() ([]ContractInfo, error) {
	files, err := compiler.Files(s.cfg.Contracts())
	if err != nil {
		return nil, err
	}

	out := make([]ContractInfo, 0, len(files))
	for _, f := range files {
		info := ContractInfo{
			File: f,
			Name: contractStem(f),
		}
		c, err := compiler.CompileFile(f)
		if err != nil {
			info.Err = err
		} else {
			info.Name = c.Name
			info.Version = c.Version
			info.Rules = len(c.Instances())
			info.Tags = c.Tags
		}
		out = append(out, info)
	}
	return out, nil
}

func contractStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), compiler.Extension)
}
