// Package deployer bridges a bare-alias git repository with the external
// work-tree directory ("alias") it deploys files into. A bare-alias repo
// is a plain bare git repository whose --work-tree is bound, at every
// invocation, to a directory that is not its own. Deployer is the one
// place that knows both halves: the go-git object store for read/write
// plumbing, and the out-of-process git executable for checkout and the
// escape-hatch commands.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/awkless/oxidot/internal/gitcmd"
	"github.com/awkless/oxidot/internal/ozerr"
	"github.com/awkless/oxidot/pkg/sparsity"
)

// Deployer owns one cluster's bare repository and the alias it deploys
// into.
type Deployer struct {
	gitDir        string
	workTreeAlias string
	repo          *gogit.Repository
	sparse        *sparsity.Engine
	exec          *gitcmd.Executor
}

// Option configures a Deployer at construction time.
type Option func(*Deployer)

// WithExecutor overrides the gitcmd.Executor used for interactive and
// exec-backed operations. Defaults to gitcmd.NewExecutor().
func WithExecutor(e *gitcmd.Executor) Option {
	return func(d *Deployer) { d.exec = e }
}

// Init creates a new bare repository at gitDir bound to workTreeAlias and
// returns a Deployer for it.
func Init(gitDir, workTreeAlias string, opts ...Option) (*Deployer, error) {
	repo, err := gogit.PlainInit(gitDir, true)
	if err != nil {
		return nil, &ozerr.Git{Op: "init", Err: err}
	}

	if err := bindWorkTree(repo, workTreeAlias); err != nil {
		return nil, err
	}

	return newDeployer(gitDir, workTreeAlias, repo, opts...)
}

// Open opens an existing bare repository at gitDir, rejecting it if
// core.bare is false, and rebinds core.worktree to workTreeAlias.
func Open(gitDir, workTreeAlias string, opts ...Option) (*Deployer, error) {
	repo, err := gogit.PlainOpen(gitDir)
	if err != nil {
		return nil, &ozerr.Git{Op: "open", Err: err}
	}

	if err := verifyRepoConfig(repo, gitDir); err != nil {
		return nil, err
	}
	if err := bindWorkTree(repo, workTreeAlias); err != nil {
		return nil, err
	}

	return newDeployer(gitDir, workTreeAlias, repo, opts...)
}

// Clone clones url into gitDir as a bare repository bound to
// workTreeAlias, checking out branch if non-empty. base carries the
// caller's progress writer and auth method; URL and reference selection
// are filled in here.
func Clone(ctx context.Context, gitDir, workTreeAlias, url, branch string, base gogit.CloneOptions) (*Deployer, error) {
	opts := base
	opts.URL = url
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	repo, err := gogit.PlainCloneContext(ctx, gitDir, true, &opts)
	if err != nil {
		return nil, &ozerr.Git{Op: "clone", Err: err}
	}

	if err := bindWorkTree(repo, workTreeAlias); err != nil {
		return nil, err
	}

	return newDeployer(gitDir, workTreeAlias, repo)
}

func newDeployer(gitDir, workTreeAlias string, repo *gogit.Repository, opts ...Option) (*Deployer, error) {
	sparse, err := sparsity.Open(gitDir)
	if err != nil {
		return nil, err
	}

	d := &Deployer{
		gitDir:        gitDir,
		workTreeAlias: workTreeAlias,
		repo:          repo,
		sparse:        sparse,
		exec:          gitcmd.NewExecutor(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// verifyRepoConfig enforces the construction-time invariant that an
// opened repository is, and remains, bare.
func verifyRepoConfig(repo *gogit.Repository, gitDir string) error {
	cfg, err := repo.Config()
	if err != nil {
		return &ozerr.Config{Op: "read core config", Err: err}
	}
	if !cfg.Core.IsBare {
		return &ozerr.Config{Op: "verify core.bare", Err: fmt.Errorf("%s: core.bare is false, expected a bare-alias repository", gitDir)}
	}
	return nil
}

// bindWorkTree sets core.worktree on the repository's config to alias,
// the mechanism that turns an ordinary bare repo into a bare-alias repo.
// It also applies the remaining deployment config: core.sparseCheckout
// (go-git's config.Core has no field for it, and the out-of-process git
// checkout that materializes files otherwise ignores info/sparse-checkout
// entirely), status.showUntrackedFiles=no (the alias is full of files the
// cluster does not own), and advice.updateSparsePath=false (add/rm/mv run
// with --sparse on purpose).
func bindWorkTree(repo *gogit.Repository, alias string) error {
	cfg, err := repo.Config()
	if err != nil {
		return &ozerr.Config{Op: "read core config", Err: err}
	}

	cfg.Core.IsBare = true
	cfg.Core.Worktree = alias
	cfg.Raw.Section("core").SetOption("sparseCheckout", "true")
	cfg.Raw.Section("status").SetOption("showUntrackedFiles", "no")
	cfg.Raw.Section("advice").SetOption("updateSparsePath", "false")

	if err := repo.Storer.SetConfig(cfg); err != nil {
		return &ozerr.Config{Op: "bind work-tree alias", Err: err}
	}
	return nil
}

// GitDir returns the path to the bare repository's git directory.
func (d *Deployer) GitDir() string { return d.gitDir }

// WorkTreeAlias returns the external directory this deployer deploys
// into.
func (d *Deployer) WorkTreeAlias() string { return d.workTreeAlias }

// Rebind re-points core.worktree at alias. Clone binds a placeholder
// alias before the cluster's own definition (which names the real
// alias) can be read off HEAD; callers rebind once catFile has parsed
// cluster.toml.
func (d *Deployer) Rebind(alias string) error {
	if err := bindWorkTree(d.repo, alias); err != nil {
		return err
	}
	d.workTreeAlias = alias
	return nil
}

// IsEmpty reports whether the repository has no commits yet.
func (d *Deployer) IsEmpty() (bool, error) {
	_, err := d.repo.Head()
	if err == plumbing.ErrReferenceNotFound {
		return true, nil
	}
	if err != nil {
		return false, &ozerr.Git{Op: "resolve HEAD", Err: err}
	}
	return false, nil
}

func (d *Deployer) headTree() (*object.Tree, error) {
	ref, err := d.repo.Head()
	if err == plumbing.ErrReferenceNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &ozerr.Git{Op: "resolve HEAD", Err: err}
	}

	commit, err := d.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, &ozerr.Git{Op: "resolve HEAD commit", Err: err}
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, &ozerr.Git{Op: "resolve HEAD tree", Err: err}
	}
	return tree, nil
}

// CatFile returns the tracked content at relPath as of HEAD, performing a
// depth-first descent through the tree hierarchy.
func (d *Deployer) CatFile(relPath string) ([]byte, error) {
	tree, err := d.headTree()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, &ozerr.BlobNotFound{Path: relPath}
	}

	relPath = path.Clean(filepath.ToSlash(relPath))
	file, err := tree.File(relPath)
	if err != nil {
		return nil, &ozerr.BlobNotFound{Path: relPath}
	}

	content, err := file.Contents()
	if err != nil {
		return nil, &ozerr.Git{Op: "read blob", Err: err}
	}
	return []byte(content), nil
}

// TrackedFiles lists every blob path tracked as of HEAD, sorted.
func (d *Deployer) TrackedFiles() ([]string, error) {
	tree, err := d.headTree()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}

	var paths []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ozerr.Git{Op: "walk HEAD tree", Err: err}
		}
		if entry.Mode.IsFile() {
			paths = append(paths, name)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// Signature builds a commit signature from the repository's configured
// user (SystemScope merges local, global, and system config), falling
// back to oxidot's own identity when none is set.
func (d *Deployer) Signature() object.Signature {
	name, email := "oxidot", "oxidot@localhost"
	if cfg, err := d.repo.ConfigScoped(gitconfig.SystemScope); err == nil {
		if cfg.User.Name != "" {
			name = cfg.User.Name
		}
		if cfg.User.Email != "" {
			email = cfg.User.Email
		}
	}
	return object.Signature{Name: name, Email: email, When: time.Now()}
}

// StageAndCommit reads the current on-disk content of each path in
// relPaths (relative to the work-tree alias), stages it into a new tree
// built on top of the current HEAD tree, and commits it with message.
func (d *Deployer) StageAndCommit(relPaths []string, message string, author object.Signature) (plumbing.Hash, error) {
	existing := map[string]plumbing.Hash{}
	if tree, err := d.headTree(); err != nil {
		return plumbing.ZeroHash, err
	} else if tree != nil {
		walker := object.NewTreeWalker(tree, true, nil)
		for {
			name, entry, err := walker.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				walker.Close()
				return plumbing.ZeroHash, &ozerr.Git{Op: "walk HEAD tree", Err: err}
			}
			if entry.Mode.IsFile() {
				existing[name] = entry.Hash
			}
		}
		walker.Close()
	}

	for _, rel := range relPaths {
		rel = path.Clean(filepath.ToSlash(rel))
		data, err := os.ReadFile(filepath.Join(d.workTreeAlias, filepath.FromSlash(rel)))
		if err != nil {
			return plumbing.ZeroHash, &ozerr.Io{Op: "read", Path: rel, Err: err}
		}

		hash, err := d.writeBlob(data)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		existing[rel] = hash
	}

	treeHash, err := buildTree(d.repo.Storer, existing)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	var parents []plumbing.Hash
	if headRef, err := d.repo.Head(); err == nil {
		parents = []plumbing.Hash{headRef.Hash()}
	} else if err != plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash, &ozerr.Git{Op: "resolve HEAD", Err: err}
	}

	commit := &object.Commit{
		Author:       author,
		Committer:    author,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := d.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, &ozerr.Git{Op: "encode commit", Err: err}
	}
	commitHash, err := d.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, &ozerr.Git{Op: "write commit", Err: err}
	}

	if err := d.updateHead(commitHash); err != nil {
		return plumbing.ZeroHash, err
	}

	return commitHash, nil
}

func (d *Deployer) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := d.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, &ozerr.Git{Op: "open blob writer", Err: err}
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, &ozerr.Git{Op: "write blob", Err: err}
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, &ozerr.Git{Op: "close blob writer", Err: err}
	}

	hash, err := d.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, &ozerr.Git{Op: "store blob", Err: err}
	}
	return hash, nil
}

func (d *Deployer) updateHead(commitHash plumbing.Hash) error {
	headRef, err := d.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return &ozerr.Git{Op: "resolve HEAD symref", Err: err}
	}

	target := headRef.Target()
	if target == "" {
		target = plumbing.NewBranchReferenceName("master")
	}

	ref := plumbing.NewHashReference(target, commitHash)
	if err := d.repo.Storer.SetReference(ref); err != nil {
		return &ozerr.Git{Op: "update branch ref", Err: err}
	}

	if headRef.Type() != plumbing.SymbolicReference {
		symref := plumbing.NewSymbolicReference(plumbing.HEAD, target)
		if err := d.repo.Storer.SetReference(symref); err != nil {
			return &ozerr.Git{Op: "update HEAD symref", Err: err}
		}
	}

	return nil
}

// buildTree writes a nested tree object graph from a flat path->blobHash
// map and returns the root tree's hash. Paths are grouped by their first
// path segment and recursed into, depth first, so subtrees are written
// before the trees that reference them.
func buildTree(storer storage.Storer, files map[string]plumbing.Hash) (plumbing.Hash, error) {
	type node struct {
		blob     *plumbing.Hash
		children map[string]*node
	}

	root := &node{children: map[string]*node{}}
	for p, hash := range files {
		h := hash
		segments := strings.Split(p, "/")
		cur := root
		for i, seg := range segments {
			if i == len(segments)-1 {
				if cur.children[seg] == nil {
					cur.children[seg] = &node{}
				}
				cur.children[seg].blob = &h
				continue
			}
			if cur.children[seg] == nil {
				cur.children[seg] = &node{children: map[string]*node{}}
			}
			cur = cur.children[seg]
		}
	}

	var encode func(n *node) (plumbing.Hash, error)
	encode = func(n *node) (plumbing.Hash, error) {
		var entries []object.TreeEntry

		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			child := n.children[name]
			if child.blob != nil {
				entries = append(entries, object.TreeEntry{
					Name: name,
					Mode: filemode.Regular,
					Hash: *child.blob,
				})
				continue
			}
			childHash, err := encode(child)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			entries = append(entries, object.TreeEntry{
				Name: name,
				Mode: filemode.Dir,
				Hash: childHash,
			})
		}

		tree := &object.Tree{Entries: entries}
		obj := storer.NewEncodedObject()
		if err := tree.Encode(obj); err != nil {
			return plumbing.ZeroHash, &ozerr.Git{Op: "encode tree", Err: err}
		}
		return storer.SetEncodedObject(obj)
	}

	return encode(root)
}

// checkout invokes `git checkout` out-of-process, scoped to this
// repository's --git-dir/--work-tree, the step every sparse-checkout
// mutation ends on: git itself reconciles the index and the work-tree
// alias against HEAD under whatever ruleset info/sparse-checkout now
// holds, rather than this package hand-writing or hand-removing files.
func (d *Deployer) checkout(ctx context.Context) error {
	_, err := d.GitNonInteractive(ctx, "checkout")
	return err
}

// matchedTrackedFiles lists the tracked files, as of HEAD, matched by
// rules.
func (d *Deployer) matchedTrackedFiles(rules []string) ([]string, error) {
	files, err := d.TrackedFiles()
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, f := range files {
		if sparsity.PathMatches(d.workTreeAlias, f, rules) {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// DeployRules inserts rules into the sparse-checkout set and checks the
// result out, materializing every tracked file the merged ruleset now
// covers. A no-op on an empty cluster.
func (d *Deployer) DeployRules(ctx context.Context, rules []string) ([]string, error) {
	empty, err := d.IsEmpty()
	if err != nil {
		return nil, err
	}
	if empty {
		slog.Warn("deploy: cluster has no commits yet, nothing to deploy", "gitDir", d.gitDir)
		return nil, nil
	}

	if err := d.sparse.Edit(sparsity.InsertRules(rules)); err != nil {
		return nil, err
	}
	if err := d.checkout(ctx); err != nil {
		return nil, err
	}

	return d.matchedTrackedFiles(rules)
}

// UndeployRules removes rules from the sparse-checkout set and checks
// the result out, pruning from the work-tree alias whichever tracked
// files are no longer covered by the remaining ruleset. Checkout itself
// refuses to discard a locally modified file, so such files are left in
// place and not reported as removed.
func (d *Deployer) UndeployRules(ctx context.Context, rules []string) ([]string, error) {
	current, err := d.sparse.CurrentRules()
	if err != nil {
		return nil, err
	}
	remaining := sparsity.NewRuleSet(current)
	remaining.Remove(rules...)
	remainingSlice := remaining.Slice()

	matched, err := d.matchedTrackedFiles(rules)
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, name := range matched {
		if sparsity.PathMatches(d.workTreeAlias, name, remainingSlice) {
			continue
		}
		candidates = append(candidates, name)
	}

	if err := d.sparse.Edit(sparsity.RemoveRules(rules)); err != nil {
		return nil, err
	}
	if err := d.checkout(ctx); err != nil {
		return nil, err
	}

	var removed []string
	for _, name := range candidates {
		if !d.IsPathDeployed(name) {
			removed = append(removed, name)
		}
	}
	return removed, nil
}

// ReplaceRules swaps the entire sparse-checkout set for rules and checks
// the result out: files covered by the new set materialize, files only
// the old set covered are pruned, all in the one checkout. A no-op on an
// empty cluster.
func (d *Deployer) ReplaceRules(ctx context.Context, rules []string) ([]string, error) {
	empty, err := d.IsEmpty()
	if err != nil {
		return nil, err
	}
	if empty {
		slog.Warn("deploy: cluster has no commits yet, nothing to deploy", "gitDir", d.gitDir)
		return nil, nil
	}

	if err := d.sparse.Edit(func(rs *sparsity.RuleSet) {
		rs.Clear()
		rs.Insert(rules...)
	}); err != nil {
		return nil, err
	}
	if err := d.checkout(ctx); err != nil {
		return nil, err
	}

	return d.matchedTrackedFiles(rules)
}

// DeployAll replaces the ruleset with the single rule "/*",
// materializing every tracked file. A no-op on an empty cluster.
func (d *Deployer) DeployAll(ctx context.Context) ([]string, error) {
	return d.ReplaceRules(ctx, []string{"/*"})
}

// UndeployAll clears the sparse-checkout set and checks out, pruning
// every deployed file from the work-tree alias. A no-op if the cluster
// is already undeployed.
func (d *Deployer) UndeployAll(ctx context.Context) ([]string, error) {
	if !d.IsDeployed() {
		slog.Warn("undeploy: cluster already undeployed", "gitDir", d.gitDir)
		return nil, nil
	}

	removed, err := d.TrackedFiles()
	if err != nil {
		return nil, err
	}

	if err := d.sparse.Edit(sparsity.ClearRules()); err != nil {
		return nil, err
	}
	if err := d.checkout(ctx); err != nil {
		return nil, err
	}

	return removed, nil
}

// CurrentRules returns the cluster's current sparse-checkout rules.
func (d *Deployer) CurrentRules() ([]string, error) {
	return d.sparse.CurrentRules()
}

// IsPathDeployed reports whether relPath currently exists under the
// work-tree alias.
func (d *Deployer) IsPathDeployed(relPath string) bool {
	abs := filepath.Join(d.workTreeAlias, filepath.FromSlash(relPath))
	_, err := os.Lstat(abs)
	return err == nil
}

// IsDeployed reports whether the cluster, as a whole, is currently
// deployed: the repository has a HEAD commit, the sparse-checkout
// ruleset is non-empty, and at least one tracked path matched by that
// ruleset exists on disk under the work-tree alias. It short-circuits
// on the first matching path that exists, and returns false on any
// internal error rather than propagating it.
func (d *Deployer) IsDeployed() bool {
	empty, err := d.IsEmpty()
	if err != nil || empty {
		return false
	}

	rules, err := d.sparse.CurrentRules()
	if err != nil || len(rules) == 0 {
		return false
	}

	tree, err := d.headTree()
	if err != nil || tree == nil {
		return false
	}

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false
		}
		if !entry.Mode.IsFile() {
			continue
		}
		if !sparsity.PathMatches(d.workTreeAlias, name, rules) {
			continue
		}
		if d.IsPathDeployed(name) {
			return true
		}
	}

	return false
}

// GitInteractive runs git with stdio inherited, scoped to this
// repository's --git-dir and --work-tree, for escape-hatch commands a
// user drives directly (e.g. "oxidot shell log --oneline"). When args
// is an "add" invocation, the run is wrapped in
// SyncSparseWithNewFiles so paths newly staged outside the current
// ruleset get a rule of their own.
func (d *Deployer) GitInteractive(ctx context.Context, args ...string) error {
	if err := validatePathArgs(args); err != nil {
		return err
	}

	run := func() error { return d.exec.RunInteractive(ctx, d.scopedArgs(args)...) }

	if needsSparseSync(args) {
		_, err := d.SyncSparseWithNewFiles(ctx, run)
		return err
	}
	return run()
}

// GitNonInteractive runs git capturing combined output, scoped to this
// repository's --git-dir and --work-tree. Only the interactive path's
// "add" is intercepted for sparse sync; the non-interactive path stays
// a transparent pass-through.
func (d *Deployer) GitNonInteractive(ctx context.Context, args ...string) (string, error) {
	if err := validatePathArgs(args); err != nil {
		return "", err
	}

	out, err := d.exec.RunCombinedOutput(ctx, d.scopedArgs(args)...)
	if err != nil {
		syscallErr := &ozerr.Syscall{Command: "git " + strings.Join(args, " "), Err: err}
		var exitErr *gitcmd.GitExitError
		if errors.As(err, &exitErr) {
			syscallErr.ExitCode = exitErr.ExitCode
			syscallErr.Output = exitErr.Output
		}
		return "", syscallErr
	}
	return out, nil
}

// needsSparseSync reports whether args is an interactive "add"
// invocation, the only subcommand syncSparseWithNewFiles extends to.
func needsSparseSync(args []string) bool {
	return len(args) > 0 && args[0] == "add"
}

// scopedArgs prefixes every git invocation with --git-dir/--work-tree
// and, for add/rm/mv, inserts --sparse right after the subcommand name
// so the command can reach files the current ruleset doesn't cover.
func (d *Deployer) scopedArgs(args []string) []string {
	if len(args) > 0 && needsSparseFlag(args[0]) {
		expanded := make([]string, 0, len(args)+1)
		expanded = append(expanded, args[0], "--sparse")
		expanded = append(expanded, args[1:]...)
		args = expanded
	}

	scoped := make([]string, 0, len(args)+4)
	scoped = append(scoped, "--git-dir", d.gitDir, "--work-tree", d.workTreeAlias)
	scoped = append(scoped, args...)
	return scoped
}

// validatePathArgs rejects escape-hatch invocations whose operands try to
// escape the work-tree alias via a sanitized path check. Flags (anything
// starting with "-") are left to git itself.
func validatePathArgs(args []string) error {
	if len(args) == 0 || !needsSparseFlag(args[0]) {
		return nil
	}
	for _, a := range args[1:] {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if err := gitcmd.SanitizePath(a); err != nil {
			return &ozerr.Syscall{Command: "git " + strings.Join(args, " "), Err: err}
		}
	}
	return nil
}

func needsSparseFlag(subcommand string) bool {
	switch subcommand {
	case "add", "rm", "mv":
		return true
	}
	return false
}

// SyncSparseWithNewFiles runs an interactive git invocation (GitInteractive
// uses it for "add" only) and afterward diffs the index's file list
// against a pre-run snapshot. Each newly tracked path that the current
// ruleset does not already match is inserted into the sparse-checkout set
// as a rule of its own, and the result is checked out.
func (d *Deployer) SyncSparseWithNewFiles(ctx context.Context, run func() error) ([]string, error) {
	before, err := d.indexPaths(ctx)
	if err != nil {
		return nil, err
	}

	if err := run(); err != nil {
		return nil, err
	}

	after, err := d.indexPaths(ctx)
	if err != nil {
		return nil, err
	}

	beforeSet := map[string]struct{}{}
	for _, p := range before {
		beforeSet[p] = struct{}{}
	}

	current, err := d.sparse.CurrentRules()
	if err != nil {
		return nil, err
	}

	var newRules []string
	for _, p := range after {
		if _, ok := beforeSet[p]; ok {
			continue
		}
		if sparsity.PathMatches(d.workTreeAlias, p, current) {
			continue
		}
		newRules = append(newRules, p)
	}
	sort.Strings(newRules)

	if len(newRules) == 0 {
		return nil, nil
	}

	if err := d.sparse.Edit(sparsity.InsertRules(newRules)); err != nil {
		return nil, err
	}
	if err := d.checkout(ctx); err != nil {
		return nil, err
	}

	return newRules, nil
}

func (d *Deployer) indexPaths(ctx context.Context) ([]string, error) {
	out, err := d.GitNonInteractive(ctx, "ls-files")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
