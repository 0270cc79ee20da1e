package store

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awkless/oxidot/pkg/cluster"
	"github.com/awkless/oxidot/pkg/config"
)

func def(workTreeAlias string) *config.ClusterDefinition {
	return &config.ClusterDefinition{
		Settings: config.Settings{
			Description:   "shell dotfiles",
			WorkTreeAlias: workTreeAlias,
			Remote:        config.Remote{URL: "https://example.com/shell.git"},
			Include:       []string{".bashrc"},
		},
	}
}

func TestOpen_CreatesStoreDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	if len(s.clusters) != 0 {
		t.Fatalf("fresh store has %d clusters, want 0", len(s.clusters))
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("store directory not created: %v", statErr)
	}
}

func TestInitAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")
	alias := t.TempDir()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if _, err := s.InitCluster(context.Background(), "shell", def(alias)); err != nil {
		t.Fatalf("InitCluster() unexpected error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open() unexpected error: %v", err)
	}
	if _, ok := reopened.clusters["shell"]; !ok {
		t.Fatal("reopened store should have rediscovered the shell cluster")
	}
}

func TestUseCluster_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	err = s.UseCluster("missing", func(c *cluster.Cluster) error { return nil })
	if err == nil {
		t.Fatal("UseCluster() expected ClusterNotFound error")
	}
}

func TestRemoveCluster_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if err := s.RemoveCluster(context.Background(), "missing"); err == nil {
		t.Fatal("RemoveCluster() expected ClusterNotFound error")
	}
}

func TestRemoveCluster_UndeploysAndDeletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")
	alias := t.TempDir()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	c, err := s.InitCluster(context.Background(), "shell", def(alias))
	if err != nil {
		t.Fatalf("InitCluster() unexpected error: %v", err)
	}
	if !c.IsPathDeployed("cluster.toml") {
		t.Fatal("cluster.toml should be deployed after InitCluster")
	}

	if err := s.RemoveCluster(context.Background(), "shell"); err != nil {
		t.Fatalf("RemoveCluster() unexpected error: %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(path, "shell.git")); !os.IsNotExist(statErr) {
		t.Fatal("shell.git should have been deleted")
	}
	if c.IsPathDeployed("cluster.toml") {
		t.Fatal("cluster.toml should have been undeployed before removal")
	}
}

func TestDeployedOnlyStatus_FiltersByIsDeployed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")
	deployedAlias := t.TempDir()
	undeployedAlias := t.TempDir()

	var buf bytes.Buffer
	s, err := Open(path, WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if _, err := s.InitCluster(context.Background(), "shell", def(deployedAlias)); err != nil {
		t.Fatalf("InitCluster(shell) unexpected error: %v", err)
	}

	undeployedDef := def(undeployedAlias)
	c, err := s.InitCluster(context.Background(), "vim", undeployedDef)
	if err != nil {
		t.Fatalf("InitCluster(vim) unexpected error: %v", err)
	}
	if _, err := c.UndeployAll(context.Background()); err != nil {
		t.Fatalf("UndeployAll() unexpected error: %v", err)
	}

	buf.Reset()
	s.DeployedOnlyStatus()
	deployedOutput := buf.String()
	if !strings.Contains(deployedOutput, `"name":"shell"`) {
		t.Fatalf("DeployedOnlyStatus() missing shell: %s", deployedOutput)
	}
	if strings.Contains(deployedOutput, `"name":"vim"`) {
		t.Fatalf("DeployedOnlyStatus() should not list vim: %s", deployedOutput)
	}

	buf.Reset()
	s.UndeployedOnlyStatus()
	undeployedOutput := buf.String()
	if !strings.Contains(undeployedOutput, `"name":"vim"`) {
		t.Fatalf("UndeployedOnlyStatus() missing vim: %s", undeployedOutput)
	}
	if strings.Contains(undeployedOutput, `"name":"shell"`) {
		t.Fatalf("UndeployedOnlyStatus() should not list shell: %s", undeployedOutput)
	}
}

func TestResolveDependencies_SeedsAllDirectDeps(t *testing.T) {
	direct := []config.Dependency{
		{Name: "a", URL: "https://example.com/a.git"},
		{Name: "b", URL: "https://example.com/b.git"},
	}

	unresolved := resolveDependencies(direct, map[string][]config.Dependency{})
	if len(unresolved) != 2 {
		t.Fatalf("resolveDependencies() = %d entries, want 2 (all direct deps seeded)", len(unresolved))
	}
}

func TestResolveDependencies_SkipsExisting(t *testing.T) {
	direct := []config.Dependency{
		{Name: "a", URL: "https://example.com/a.git"},
		{Name: "b", URL: "https://example.com/b.git"},
	}

	unresolved := resolveDependencies(direct, map[string][]config.Dependency{"a": nil})
	if len(unresolved) != 1 || unresolved[0].Name != "b" {
		t.Fatalf("resolveDependencies() = %+v, want only [b]", unresolved)
	}
}

func TestResolveDependencies_DedupesVisited(t *testing.T) {
	direct := []config.Dependency{
		{Name: "a", URL: "https://example.com/a.git"},
		{Name: "a", URL: "https://example.com/a.git"},
	}

	unresolved := resolveDependencies(direct, map[string][]config.Dependency{})
	if len(unresolved) != 1 {
		t.Fatalf("resolveDependencies() = %d entries, want 1 (duplicate name deduped)", len(unresolved))
	}
}

func TestResolveDependencies_ExpandsExistingClustersOwnDeps(t *testing.T) {
	direct := []config.Dependency{
		{Name: "a", URL: "https://example.com/a.git"},
	}
	existing := map[string][]config.Dependency{
		"a": {{Name: "b", URL: "https://example.com/b.git"}},
	}

	unresolved := resolveDependencies(direct, existing)
	if len(unresolved) != 1 || unresolved[0].Name != "b" {
		t.Fatalf("resolveDependencies() = %+v, want [b] (a's own dependency reached through the already-present cluster)", unresolved)
	}
}

// makeRemote builds a cluster in its own directory to clone from,
// undeploying it afterward so its work-tree alias is empty when the
// clone under test checks files back out into the same alias.
func makeRemote(t *testing.T, remotesDir, name, alias string, deps []config.Dependency) string {
	t.Helper()

	gitDir := filepath.Join(remotesDir, name+".git")
	d := def(alias)
	d.Settings.Include = []string{"cluster.toml"}
	d.Dependencies = deps

	c, err := cluster.Init(context.Background(), name, gitDir, d)
	if err != nil {
		t.Fatalf("Init(%s) unexpected error: %v", name, err)
	}
	if _, err := c.UndeployAll(context.Background()); err != nil {
		t.Fatalf("UndeployAll(%s) unexpected error: %v", name, err)
	}

	return gitDir
}

func TestCloneCluster_ResolvesTransitiveDependencies(t *testing.T) {
	remotes := t.TempDir()
	aliasA, aliasB, aliasC := t.TempDir(), t.TempDir(), t.TempDir()

	remoteC := makeRemote(t, remotes, "c", aliasC, nil)
	remoteB := makeRemote(t, remotes, "b", aliasB, []config.Dependency{
		{Name: "c", URL: remoteC},
	})
	remoteA := makeRemote(t, remotes, "a", aliasA, []config.Dependency{
		{Name: "b", URL: remoteB},
	})

	s, err := Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	root, err := s.CloneCluster(context.Background(), "a", CloneOptions{URL: remoteA})
	if err != nil {
		t.Fatalf("CloneCluster() unexpected error: %v", err)
	}
	if root.Name != "a" {
		t.Fatalf("root.Name = %q, want a", root.Name)
	}

	for _, name := range []string{"a", "b", "c"} {
		if _, ok := s.clusters[name]; !ok {
			t.Fatalf("store missing cluster %q after transitive resolution", name)
		}
	}
	if len(s.clusters) != 3 {
		t.Fatalf("store has %d clusters, want 3", len(s.clusters))
	}

	if !root.IsPathDeployed("cluster.toml") {
		t.Fatal("root's default rules should have deployed cluster.toml")
	}
	if err := s.UseCluster("c", func(c *cluster.Cluster) error {
		if !c.IsPathDeployed("cluster.toml") {
			t.Fatal("dependency c's default rules should have deployed cluster.toml")
		}
		return nil
	}); err != nil {
		t.Fatalf("UseCluster(c) unexpected error: %v", err)
	}
}

func TestCloneCluster_DependencyCycleTerminates(t *testing.T) {
	remotes := t.TempDir()
	aliasA, aliasB := t.TempDir(), t.TempDir()

	// b depends back on a; resolution must clone each side once and stop.
	remoteA := filepath.Join(remotes, "a.git")
	remoteB := makeRemote(t, remotes, "b", aliasB, []config.Dependency{
		{Name: "a", URL: remoteA},
	})
	makeRemote(t, remotes, "a", aliasA, []config.Dependency{
		{Name: "b", URL: remoteB},
	})

	s, err := Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if _, err := s.CloneCluster(context.Background(), "a", CloneOptions{URL: remoteA}); err != nil {
		t.Fatalf("CloneCluster() unexpected error: %v", err)
	}

	if len(s.clusters) != 2 {
		t.Fatalf("store has %d clusters, want 2 (cycle cloned once each)", len(s.clusters))
	}
}

func TestResolveDependencies_ExistingClusterDepAlreadyPresentIsNotReturned(t *testing.T) {
	direct := []config.Dependency{
		{Name: "a", URL: "https://example.com/a.git"},
	}
	existing := map[string][]config.Dependency{
		"a": {{Name: "b", URL: "https://example.com/b.git"}},
		"b": nil,
	}

	unresolved := resolveDependencies(direct, existing)
	if len(unresolved) != 0 {
		t.Fatalf("resolveDependencies() = %+v, want none (b is already present)", unresolved)
	}
}
