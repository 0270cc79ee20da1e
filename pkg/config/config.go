// Package config defines the cluster definition document format: the
// single TOML file ("cluster.toml") every cluster tracks at the top of
// its work tree, describing where it deploys to, where it was cloned
// from, and which other clusters it depends on.
package config

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/awkless/oxidot/internal/ozerr"
)

// ClusterDefinition is the parsed form of a cluster's cluster.toml.
type ClusterDefinition struct {
	Settings     Settings     `toml:"settings"`
	Dependencies []Dependency `toml:"dependencies,omitempty"`
}

// Settings holds the top-level settings.* table.
type Settings struct {
	Description   string   `toml:"description"`
	Remote        Remote   `toml:"remote"`
	WorkTreeAlias string   `toml:"work_tree_alias"`
	Include       []string `toml:"include,omitempty"`
}

// Remote describes the cluster's canonical upstream.
type Remote struct {
	URL    string `toml:"url"`
	Branch string `toml:"branch,omitempty"`
}

// Dependency is one entry of a cluster's dependencies list.
type Dependency struct {
	Name    string   `toml:"name"`
	URL     string   `toml:"url"`
	Include []string `toml:"include,omitempty"`
}

// Validate checks a cluster definition's presence invariants:
// description, remote URL, and work-tree alias must all be set.
func (d *ClusterDefinition) Validate() error {
	if d.Settings.Description == "" {
		return &ozerr.Config{Op: "validate", Err: fmt.Errorf("settings.description must not be empty")}
	}
	if d.Settings.Remote.URL == "" {
		return &ozerr.Config{Op: "validate", Err: fmt.Errorf("settings.remote.url must not be empty")}
	}
	if d.Settings.WorkTreeAlias == "" {
		return &ozerr.Config{Op: "validate", Err: fmt.Errorf("settings.work_tree_alias must not be empty")}
	}
	return nil
}

// Parse decodes a cluster.toml document. Unknown fields reject the
// document. The returned definition's WorkTreeAlias has already
// undergone POSIX shell-variable expansion ($VAR, ${VAR}, ~); this is a
// one-way transform applied on load, never reversed by Serialize.
func Parse(data []byte) (*ClusterDefinition, error) {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var def ClusterDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, &ozerr.Config{Op: "parse cluster.toml", Err: err}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	expanded, err := expandWorkTreeAlias(def.Settings.WorkTreeAlias)
	if err != nil {
		return nil, &ozerr.Config{Op: "expand work_tree_alias", Err: err}
	}
	def.Settings.WorkTreeAlias = expanded

	return &def, nil
}

// Serialize encodes a cluster definition back to TOML text. It does not
// invert the shell-expansion Parse applies to WorkTreeAlias; callers
// that round-trip a definition should compare against the pre-expansion
// original when verifying equality.
func Serialize(def *ClusterDefinition) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(def); err != nil {
		return nil, &ozerr.Config{Op: "serialize cluster.toml", Err: err}
	}
	return buf.Bytes(), nil
}

// expandWorkTreeAlias applies POSIX $VAR / ${VAR} / ~ expansion against
// the process environment, the way a shell would expand a path-valued
// argument.
func expandWorkTreeAlias(raw string) (string, error) {
	cfg := &expand.Config{
		Env: expand.FuncEnviron(func(name string) string {
			return envLookup(name)
		}),
	}

	word, err := syntax.NewParser().Document(bytesReader(raw))
	if err != nil {
		return "", err
	}

	expanded, err := expand.Literal(cfg, word)
	if err != nil {
		return "", err
	}

	return expandHome(expanded), nil
}
