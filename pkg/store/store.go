// Package store hosts the set of clusters at a directory: a name→Cluster
// map guarded by a single mutex, with a concurrent dependency-graph
// resolver driven off each cluster's declared dependencies.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/awkless/oxidot/internal/ozerr"
	"github.com/awkless/oxidot/pkg/cluster"
	"github.com/awkless/oxidot/pkg/config"
)

// BranchTarget selects which branch a clone checks out.
type BranchTarget struct {
	// Name is the branch to check out. Empty means "server default".
	Name string
}

// Store hosts every cluster rooted at a single directory.
type Store struct {
	mu       sync.Mutex
	path     string
	clusters map[string]*cluster.Cluster
	logger   *slog.Logger
	maxClone int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the logger used for status observation output.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMaxConcurrentClones bounds how many dependency clones run at once
// during resolution. Zero (the default) means unbounded.
func WithMaxConcurrentClones(n int) Option {
	return func(s *Store) { s.maxClone = n }
}

// Open ensures path exists, globs path/*.git, and opens a Cluster for
// each match.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, &ozerr.Io{Op: "mkdir", Path: path, Err: err}
	}

	s := &Store{path: path, clusters: map[string]*cluster.Cluster{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.git"))
	if err != nil {
		return nil, &ozerr.Glob{Pattern: filepath.Join(path, "*.git"), Err: err}
	}

	for _, gitDir := range matches {
		name := strings.TrimSuffix(filepath.Base(gitDir), ".git")

		def, err := peekDefinition(gitDir)
		if err != nil {
			return nil, err
		}

		c, err := cluster.Open(name, gitDir, def.Settings.WorkTreeAlias)
		if err != nil {
			return nil, err
		}
		s.clusters[name] = c
	}

	return s, nil
}

// peekDefinition loads a cluster.toml without yet knowing the work-tree
// alias to bind, by opening the bare repo with the git directory itself
// bound as a placeholder work tree first.
// This mirrors cluster.Open's own catFile+parse path but only needs the
// alias field it returns.
func peekDefinition(gitDir string) (*config.ClusterDefinition, error) {
	c, err := cluster.Open(strings.TrimSuffix(filepath.Base(gitDir), ".git"), gitDir, gitDir)
	if err != nil {
		return nil, err
	}
	return c.Definition, nil
}

func (s *Store) gitDirFor(name string) string {
	return filepath.Join(s.path, name+".git")
}

// InitCluster constructs a new cluster at <path>/<name>.git and inserts
// it into the store.
func (s *Store) InitCluster(ctx context.Context, name string, def *config.ClusterDefinition) (*cluster.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := cluster.Init(ctx, name, s.gitDirFor(name), def)
	if err != nil {
		return nil, err
	}
	s.clusters[name] = c
	return c, nil
}

// RemoveCluster undeploys every file the cluster deployed, deletes its
// git directory, and removes it from the store.
func (s *Store) RemoveCluster(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[name]
	if !ok {
		return &ozerr.ClusterNotFound{Name: name}
	}

	if _, err := c.UndeployAll(ctx); err != nil {
		return err
	}

	gitDir := c.Deployer.GitDir()
	if err := os.RemoveAll(gitDir); err != nil {
		return &ozerr.Io{Op: "remove", Path: gitDir, Err: err}
	}

	delete(s.clusters, name)
	return nil
}

// UseCluster looks up name and invokes action with it, holding the
// store's mutex for the duration.
func (s *Store) UseCluster(name string, action func(*cluster.Cluster) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[name]
	if !ok {
		return &ozerr.ClusterNotFound{Name: name}
	}
	return action(c)
}

// CloneOptions configures CloneCluster.
type CloneOptions struct {
	URL           string
	Branch        BranchTarget
	WorkTreeAlias string

	// ProgressSink receives transfer progress for every clone. When
	// ProgressSinkFor is also set it takes precedence, handing each
	// concurrent clone a bar handle of its own.
	ProgressSink       cluster.ProgressSink
	ProgressSinkFor    func(name string) cluster.ProgressSink
	CredentialProvider cluster.CredentialProvider
}

func (o CloneOptions) sinkFor(name string) cluster.ProgressSink {
	if o.ProgressSinkFor != nil {
		return o.ProgressSinkFor(name)
	}
	return o.ProgressSink
}

// CloneCluster clones the named cluster, then resolves and clones every
// transitively missing dependency it declares, then deploys default
// rules for each newly resolved cluster in resolution order.
func (s *Store) CloneCluster(ctx context.Context, name string, opts CloneOptions) (*cluster.Cluster, error) {
	root, err := cluster.Clone(ctx, name, s.gitDirFor(name), cluster.CloneOptions{
		URL:                opts.URL,
		Branch:             opts.Branch.Name,
		WorkTreeAlias:      opts.WorkTreeAlias,
		ProgressSink:       opts.sinkFor(name),
		CredentialProvider: opts.CredentialProvider,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clusters[name] = root
	s.mu.Unlock()

	// A freshly cloned dependency can declare dependencies of its own,
	// and those stay invisible until its cluster.toml is on disk. Resolve
	// and clone in rounds until a round discovers nothing new; the
	// per-round visited set plus the growing store map make a dependency
	// cycle converge instead of recursing.
	var resolved []resolvedDependency
	pending := root.Definition.Dependencies
	for len(pending) > 0 {
		s.mu.Lock()
		existing := s.snapshotDependencies()
		s.mu.Unlock()

		unresolved := resolveDependencies(pending, existing)
		if len(unresolved) == 0 {
			break
		}

		batch, err := s.cloneDependencies(ctx, unresolved, opts)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		for _, r := range batch {
			s.clusters[r.cluster.Name] = r.cluster
		}
		s.mu.Unlock()

		resolved = append(resolved, batch...)

		pending = nil
		for _, r := range batch {
			pending = append(pending, r.cluster.Definition.Dependencies...)
		}
	}

	if _, err := root.DeployDefaultRules(ctx); err != nil {
		return nil, err
	}
	for _, r := range resolved {
		rules := append([]string{}, r.cluster.Definition.Settings.Include...)
		rules = append(rules, r.extraInclude...)
		if len(rules) == 0 {
			continue
		}
		if _, err := r.cluster.Deployer.DeployRules(ctx, rules); err != nil {
			return nil, err
		}
	}

	return root, nil
}

// snapshotDependencies maps every cluster currently in the store to its
// own declared dependency list, so resolveDependencies can expand an
// already-present cluster's dependencies onto the worklist without
// holding the store's mutex while it walks.
func (s *Store) snapshotDependencies() map[string][]config.Dependency {
	deps := make(map[string][]config.Dependency, len(s.clusters))
	for name, c := range s.clusters {
		deps[name] = c.Definition.Dependencies
	}
	return deps
}

type depEdge struct {
	config.Dependency
}

// resolveDependencies walks a worklist seeded with all of the parent's
// direct dependencies. When a worklist entry names a cluster already present
// in the store, that cluster's own dependencies are pushed onto the
// worklist in turn, so a dependency reachable only through an
// already-present cluster is still discovered. Returns every name that
// is not yet present in the store, deduplicated and order-preserving.
func resolveDependencies(direct []config.Dependency, existing map[string][]config.Dependency) []depEdge {
	visited := map[string]struct{}{}
	worklist := append([]config.Dependency{}, direct...)

	var unresolved []depEdge
	for len(worklist) > 0 {
		d := worklist[0]
		worklist = worklist[1:]

		if _, seen := visited[d.Name]; seen {
			continue
		}
		visited[d.Name] = struct{}{}

		if ownDeps, ok := existing[d.Name]; ok {
			worklist = append(worklist, ownDeps...)
			continue
		}

		unresolved = append(unresolved, depEdge{d})
	}

	return unresolved
}

type resolvedDependency struct {
	cluster      *cluster.Cluster
	extraInclude []string
}

// cloneDependencies clones every unresolved dependency concurrently,
// bounded by maxClone workers (0 = unbounded), and returns their
// clusters once all have completed — a single bulk result, never a
// partial one.
func (s *Store) cloneDependencies(ctx context.Context, unresolved []depEdge, opts CloneOptions) ([]resolvedDependency, error) {
	if len(unresolved) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.maxClone > 0 {
		g.SetLimit(s.maxClone)
	}

	results := make([]resolvedDependency, len(unresolved))
	for i, edge := range unresolved {
		i, edge := i, edge
		g.Go(func() error {
			c, err := cluster.Clone(gctx, edge.Name, s.gitDirFor(edge.Name), cluster.CloneOptions{
				URL:                edge.URL,
				WorkTreeAlias:      "",
				ProgressSink:       opts.sinkFor(edge.Name),
				CredentialProvider: opts.CredentialProvider,
			})
			if err != nil {
				return fmt.Errorf("clone dependency %q: %w", edge.Name, err)
			}
			results[i] = resolvedDependency{cluster: c, extraInclude: edge.Include}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &ozerr.Git{Op: "resolve dependencies", Err: err}
	}

	return results, nil
}

// DetailedStatus logs, per cluster, its name, deploy state, and tracked
// file count.
func (s *Store) DetailedStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.sortedNames() {
		c := s.clusters[name]
		files, _ := c.ListTrackedFiles()
		rules, _ := c.ListDeployRules()
		s.logger.Info("cluster status", "name", name, "deployed", c.IsDeployed(), "tracked", len(files), "rules", len(rules))
	}
}

// DeployedOnlyStatus logs only clusters for which IsDeployed is true.
func (s *Store) DeployedOnlyStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.sortedNames() {
		c := s.clusters[name]
		if !c.IsDeployed() {
			continue
		}
		rules, _ := c.ListDeployRules()
		s.logger.Info("deployed cluster", "name", name, "rules", len(rules))
	}
}

// UndeployedOnlyStatus logs only clusters for which IsDeployed is false.
func (s *Store) UndeployedOnlyStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.sortedNames() {
		c := s.clusters[name]
		if c.IsDeployed() {
			continue
		}
		s.logger.Info("undeployed cluster", "name", name)
	}
}

// DeployRulesStatus returns the named cluster's current sparse rules.
func (s *Store) DeployRulesStatus(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[name]
	if !ok {
		return nil, &ozerr.ClusterNotFound{Name: name}
	}
	return c.ListDeployRules()
}

// TrackedFilesStatus returns the named cluster's tracked file list.
func (s *Store) TrackedFilesStatus(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[name]
	if !ok {
		return nil, &ozerr.ClusterNotFound{Name: name}
	}
	return c.ListTrackedFiles()
}

func (s *Store) sortedNames() []string {
	names := make([]string, 0, len(s.clusters))
	for name := range s.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
