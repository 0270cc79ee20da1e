// Package cluster ties a parsed cluster definition to the deployer that
// enacts it, exposing the domain verbs a store (or a CLI command)
// invokes on a single named cluster.
package cluster

import (
	"context"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"

	"github.com/awkless/oxidot/internal/ozerr"
	"github.com/awkless/oxidot/pkg/config"
	"github.com/awkless/oxidot/pkg/deployer"
)

const definitionFile = "cluster.toml"

// ProgressSink receives clone transfer-progress updates. Implementations
// must tolerate being called at a high rate; the clone path throttles
// calls to at most one every 10ms on its own.
type ProgressSink interface {
	SetLength(total int64)
	SetPosition(pos int64)
	SetMessage(text string)
	Suspend(fn func())
}

// NoopProgressSink discards every update.
type NoopProgressSink struct{}

func (NoopProgressSink) SetLength(int64)   {}
func (NoopProgressSink) SetPosition(int64) {}
func (NoopProgressSink) SetMessage(string) {}
func (NoopProgressSink) Suspend(fn func()) { fn() }

// CredentialProvider resolves authentication for a clone URL. When one
// is supplied, Clone consults it before the transfer starts, whether or
// not the remote turns out to require authentication, and picks the form
// by URL shape: BasicAuth for HTTP(S) URLs, SSHPassphrase for SSH URLs
// whose default key does not load without one. UserPassword is not
// called by this package. Each prompt runs inside Suspend on the active
// ProgressSink.
type CredentialProvider interface {
	BasicAuth(url string) (user, pass string, err error)
	UserPassword(url, user string) (pass string, err error)
	SSHPassphrase(keyPath string) (passphrase string, err error)
}

// Cluster owns one cluster's (definition, deployer) pair.
type Cluster struct {
	Name       string
	Definition *config.ClusterDefinition
	Deployer   *deployer.Deployer
}

// Init creates a bare repository at path, commits the serialized
// definition as cluster.toml, and checks it out into the definition's
// work-tree alias.
func Init(ctx context.Context, name, path string, def *config.ClusterDefinition) (*Cluster, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	serialized, err := config.Serialize(def)
	if err != nil {
		return nil, err
	}

	dep, err := deployer.Init(path, def.Settings.WorkTreeAlias)
	if err != nil {
		return nil, err
	}

	if err := writeFile(def.Settings.WorkTreeAlias, serialized); err != nil {
		return nil, err
	}

	if _, err := dep.StageAndCommit([]string{definitionFile}, "oxidot: initial cluster.toml", dep.Signature()); err != nil {
		return nil, err
	}

	if _, err := dep.DeployRules(ctx, []string{definitionFile}); err != nil {
		return nil, err
	}

	return &Cluster{Name: name, Definition: def, Deployer: dep}, nil
}

// Open opens an existing bare repository and loads cluster.toml from
// its HEAD tree.
func Open(name, path, workTreeAlias string) (*Cluster, error) {
	dep, err := deployer.Open(path, workTreeAlias)
	if err != nil {
		return nil, err
	}

	def, err := loadDefinition(dep)
	if err != nil {
		return nil, err
	}

	return &Cluster{Name: name, Definition: def, Deployer: dep}, nil
}

// CloneOptions configures Clone.
type CloneOptions struct {
	URL                string
	Branch             string
	WorkTreeAlias      string
	ProgressSink       ProgressSink
	CredentialProvider CredentialProvider
}

// Clone clones a cluster's remote in bare mode, optionally checking out
// branch, then loads its definition and rebinds the work-tree alias to
// whatever cluster.toml itself declares. The alias always originates in
// the definition, never in caller input; opts.WorkTreeAlias only serves
// as the placeholder binding the clone needs before cluster.toml can be
// read off HEAD.
func Clone(ctx context.Context, name, path string, opts CloneOptions) (*Cluster, error) {
	sink := opts.ProgressSink
	if sink == nil {
		sink = NoopProgressSink{}
	}

	progress := newThrottledProgress(sink, 10*time.Millisecond)

	cloneOpts := gogit.CloneOptions{
		Progress: progress,
	}
	if opts.CredentialProvider != nil {
		cloneOpts.Auth = newAuthMethod(opts.URL, opts.CredentialProvider, sink)
	}

	placeholder := opts.WorkTreeAlias
	if placeholder == "" {
		placeholder = path
	}

	dep, err := deployer.Clone(ctx, path, placeholder, opts.URL, opts.Branch, cloneOpts)
	if err != nil {
		return nil, err
	}

	def, err := loadDefinition(dep)
	if err != nil {
		return nil, err
	}

	if err := dep.Rebind(def.Settings.WorkTreeAlias); err != nil {
		return nil, err
	}

	return &Cluster{Name: name, Definition: def, Deployer: dep}, nil
}

func loadDefinition(dep *deployer.Deployer) (*config.ClusterDefinition, error) {
	raw, err := dep.CatFile(definitionFile)
	if err != nil {
		return nil, err
	}

	def, err := config.Parse(raw)
	if err != nil {
		return nil, err
	}

	return def, nil
}

// DeployWithRules deploys the given rules against this cluster's
// work-tree alias.
func (c *Cluster) DeployWithRules(ctx context.Context, rules []string) ([]string, error) {
	return c.Deployer.DeployRules(ctx, rules)
}

// UndeployWithRules undeploys the given rules.
func (c *Cluster) UndeployWithRules(ctx context.Context, rules []string) ([]string, error) {
	return c.Deployer.UndeployRules(ctx, rules)
}

// DeployDefaultRules replaces the whole ruleset with
// definition.settings.include: default deployment always starts from a
// clean slate rather than layering onto whatever rules are active. A
// no-op when the definition declares no include list.
func (c *Cluster) DeployDefaultRules(ctx context.Context) ([]string, error) {
	if len(c.Definition.Settings.Include) == 0 {
		return nil, nil
	}
	return c.Deployer.ReplaceRules(ctx, c.Definition.Settings.Include)
}

// UndeployDefaultRules removes only the default rules.
func (c *Cluster) UndeployDefaultRules(ctx context.Context) ([]string, error) {
	if len(c.Definition.Settings.Include) == 0 {
		return nil, nil
	}
	return c.Deployer.UndeployRules(ctx, c.Definition.Settings.Include)
}

// DeployAll deploys every tracked file.
func (c *Cluster) DeployAll(ctx context.Context) ([]string, error) { return c.Deployer.DeployAll(ctx) }

// UndeployAll removes every deployed file and clears the ruleset.
func (c *Cluster) UndeployAll(ctx context.Context) ([]string, error) {
	return c.Deployer.UndeployAll(ctx)
}

// IsPathDeployed reports whether relPath is currently on disk.
func (c *Cluster) IsPathDeployed(relPath string) bool { return c.Deployer.IsPathDeployed(relPath) }

// IsDeployed reports whether this cluster, as a whole, is currently
// deployed: non-empty repository, non-empty ruleset, and at least one
// ruleset-matched tracked path present on disk.
func (c *Cluster) IsDeployed() bool { return c.Deployer.IsDeployed() }

// ListDeployRules returns the cluster's current sparse-checkout rules.
func (c *Cluster) ListDeployRules() ([]string, error) {
	return c.Deployer.CurrentRules()
}

// ListTrackedFiles lists every file tracked as of HEAD.
func (c *Cluster) ListTrackedFiles() ([]string, error) { return c.Deployer.TrackedFiles() }

// GitInteractive runs an escape-hatch git invocation with stdio
// inherited.
func (c *Cluster) GitInteractive(ctx context.Context, args ...string) error {
	return c.Deployer.GitInteractive(ctx, args...)
}

// GitNonInteractive runs a git invocation capturing combined output.
func (c *Cluster) GitNonInteractive(ctx context.Context, args ...string) (string, error) {
	return c.Deployer.GitNonInteractive(ctx, args...)
}

func writeFile(workTreeAlias string, data []byte) error {
	abs := filepath.Join(workTreeAlias, definitionFile)
	if err := os.MkdirAll(workTreeAlias, 0o755); err != nil {
		return &ozerr.Io{Op: "mkdir", Path: workTreeAlias, Err: err}
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return &ozerr.Io{Op: "write", Path: abs, Err: err}
	}
	return nil
}
