// Package profile loads named connector credentials from profiles.toml.
//
//	[warehouse]
//	provider   = "s3"
//	region     = "eu-west-1"
//	access_key = "${WAREHOUSE_KEY}"
//	secret_key = "${WAREHOUSE_SECRET}"
//
// A value of the exact form ${VAR} is replaced by the environment variable
// VAR when it is set. Unset variables leave the value as written, and Test
// reports it as unresolved.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Profile is one named set of connector settings.
type Profile struct {
	Name      string `toml:"-"`
	Provider  string `toml:"provider"`
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	PathStyle *bool  `toml:"path_style"`
	UseSSL    *bool  `toml:"use_ssl"`
}

// String renders the profile without credentials.
func (p Profile) String() string {
	s := p.Name + " (" + p.Provider
	if p.Region != "" {
		s += ", " + p.Region
	}
	if p.Endpoint != "" {
		s += ", " + p.Endpoint
	}
	return s + ")"
}

// Set maps profile names to profiles.
type Set map[string]Profile

var envRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Load reads the profiles file at path. A missing file is an empty set.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes profiles from TOML and substitutes environment references.
func Parse(data []byte) (Set, error) {
	raw := map[string]Profile{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	set := make(Set, len(raw))
	for name, p := range raw {
		p.Name = name
		p.Endpoint = substitute(p.Endpoint)
		p.Region = substitute(p.Region)
		p.AccessKey = substitute(p.AccessKey)
		p.SecretKey = substitute(p.SecretKey)
		set[name] = p
	}
	return set, nil
}

func substitute(v string) string {
	m := envRef.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	if val, ok := os.LookupEnv(m[1]); ok {
		return val
	}
	return v
}

// Names returns the profile names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns the profiles sorted by name.
func (s Set) List() []Profile {
	out := make([]Profile, 0, len(s))
	for _, name := range s.Names() {
		out = append(out, s[name])
	}
	return out
}

// Test checks that profile name exists, that its provider has a connector
// (available reports which connector types this build has), and that the
// credentials it needs are present. Failures are DatasetAccessErrors.
func (s Set) Test(name string, available func(string) bool) error {
	p, ok := s[name]
	if !ok {
		return ir.Errorf(ir.ErrDatasetAccess, "profile %q not found", name)
	}
	if p.Provider == "" {
		return ir.Errorf(ir.ErrDatasetAccess, "profile %q has no provider", name)
	}

	if p.Provider == "local" {
		if p.Endpoint == "" {
			return nil
		}
		info, err := os.Stat(p.Endpoint)
		if err != nil {
			return ir.Wrap(ir.ErrDatasetAccess, err, fmt.Sprintf("profile %q endpoint unreachable", name))
		}
		if !info.IsDir() {
			return ir.Errorf(ir.ErrDatasetAccess, "profile %q endpoint %s is not a directory", name, p.Endpoint)
		}
		return nil
	}

	for _, cred := range []struct{ field, value string }{
		{"access_key", p.AccessKey},
		{"secret_key", p.SecretKey},
	} {
		if cred.value == "" {
			return ir.Errorf(ir.ErrDatasetAccess, "profile %q: %s is empty", name, cred.field)
		}
		if m := envRef.FindStringSubmatch(cred.value); m != nil {
			return ir.Errorf(ir.ErrDatasetAccess, "profile %q: %s references unset variable %s", name, cred.field, m[1])
		}
	}

	if !available(p.Provider) {
		return ir.Errorf(ir.ErrDatasetAccess, "profile %q: connector %q not available in this build", name, p.Provider)
	}
	return nil
}
