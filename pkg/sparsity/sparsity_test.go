package sparsity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesFile(t *testing.T) {
	gitDir := t.TempDir()

	e, err := Open(gitDir)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	wantPath := filepath.Join(gitDir, "info", "sparse-checkout")
	if e.Path() != wantPath {
		t.Fatalf("Path() = %q, want %q", e.Path(), wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("sparse-checkout file not created: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	gitDir := t.TempDir()

	if _, err := Open(gitDir); err != nil {
		t.Fatalf("first Open() unexpected error: %v", err)
	}

	path := filepath.Join(gitDir, "info", "sparse-checkout")
	if err := os.WriteFile(path, []byte(".bashrc\n"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	e, err := Open(gitDir)
	if err != nil {
		t.Fatalf("second Open() unexpected error: %v", err)
	}

	rules, err := e.CurrentRules()
	if err != nil {
		t.Fatalf("CurrentRules() unexpected error: %v", err)
	}
	if len(rules) != 1 || rules[0] != ".bashrc" {
		t.Fatalf("CurrentRules() = %v, want [.bashrc] (Open must not truncate)", rules)
	}
}

func TestCurrentRules_Empty(t *testing.T) {
	e, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	rules, err := e.CurrentRules()
	if err != nil {
		t.Fatalf("CurrentRules() unexpected error: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("CurrentRules() = %v, want empty", rules)
	}
}

func TestEdit_InsertAndRemove(t *testing.T) {
	e, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if err := e.Edit(InsertRules([]string{".bashrc", ".config/nvim/"})); err != nil {
		t.Fatalf("Edit(insert) unexpected error: %v", err)
	}

	rules, err := e.CurrentRules()
	if err != nil {
		t.Fatalf("CurrentRules() unexpected error: %v", err)
	}
	want := []string{".bashrc", ".config/nvim/"}
	if len(rules) != len(want) {
		t.Fatalf("CurrentRules() = %v, want %v", rules, want)
	}

	data, err := os.ReadFile(e.Path())
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Fatal("non-empty rule file must end with a trailing newline")
	}

	if err := e.Edit(RemoveRule(".bashrc")); err != nil {
		t.Fatalf("Edit(remove) unexpected error: %v", err)
	}

	rules, err = e.CurrentRules()
	if err != nil {
		t.Fatalf("CurrentRules() unexpected error: %v", err)
	}
	if len(rules) != 1 || rules[0] != ".config/nvim/" {
		t.Fatalf("CurrentRules() = %v, want [.config/nvim/]", rules)
	}
}

func TestEdit_ClearProducesEmptyFile(t *testing.T) {
	e, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if err := e.Edit(InsertRule(".bashrc")); err != nil {
		t.Fatalf("Edit(insert) unexpected error: %v", err)
	}
	if err := e.Edit(ClearRules()); err != nil {
		t.Fatalf("Edit(clear) unexpected error: %v", err)
	}

	data, err := os.ReadFile(e.Path())
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("file content = %q, want empty (no lone trailing newline)", data)
	}
}

func TestEdit_NoopWhenUnchanged(t *testing.T) {
	e, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}

	if err := e.Edit(InsertRule(".bashrc")); err != nil {
		t.Fatalf("Edit(insert) unexpected error: %v", err)
	}

	before, err := os.Stat(e.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	if err := e.Edit(InsertRule(".bashrc")); err != nil {
		t.Fatalf("Edit(reinsert) unexpected error: %v", err)
	}

	after, err := os.Stat(e.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	if before.ModTime() != after.ModTime() {
		t.Fatal("Edit() rewrote the file despite an unchanged rule set")
	}
}

func TestPathMatches_PlainRuleIncludesOnlyItself(t *testing.T) {
	alias := t.TempDir()
	rules := []string{".bashrc"}

	if !PathMatches(alias, ".bashrc", rules) {
		t.Fatal(".bashrc should match its own rule")
	}
	if PathMatches(alias, ".zshrc", rules) {
		t.Fatal(".zshrc should not match an unrelated rule")
	}
}

func TestPathMatches_NegatedRuleExcludes(t *testing.T) {
	alias := t.TempDir()
	if err := os.MkdirAll(filepath.Join(alias, ".config", "nvim"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rules := []string{".config/", "!.config/nvim/"}

	if !PathMatches(alias, ".config/init.vim", rules) {
		t.Fatal(".config/init.vim should be included by .config/")
	}
	if PathMatches(alias, ".config/nvim/init.lua", rules) {
		t.Fatal(".config/nvim/init.lua should be excluded by the negated rule")
	}
}

func TestPathMatches_NoRulesExcludesEverything(t *testing.T) {
	alias := t.TempDir()
	if PathMatches(alias, ".bashrc", nil) {
		t.Fatal("empty rule set should include nothing")
	}
}

func TestPathMatches_AbsolutePath(t *testing.T) {
	alias := t.TempDir()
	abs := filepath.Join(alias, ".bashrc")

	if !PathMatches(alias, abs, []string{".bashrc"}) {
		t.Fatal("absolute path under the alias should resolve relative to it")
	}
}

func TestRuleSet_Slice_PreservesDeclarationOrderAndDedupes(t *testing.T) {
	rs := NewRuleSet([]string{"b", "a", "b"})
	got := rs.Slice()
	want := []string{"b", "a"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
}

func TestRuleSet_Remove_PreservesRemainingOrder(t *testing.T) {
	rs := NewRuleSet([]string{"c", "a", "b"})
	rs.Remove("a")
	got := rs.Slice()
	want := []string{"c", "b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Slice() after Remove = %v, want %v", got, want)
	}
}

func TestPathMatches_LaterRuleWinsOverEarlierOverlap(t *testing.T) {
	alias := t.TempDir()
	if err := os.MkdirAll(filepath.Join(alias, ".config", "nvim"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rules := []string{"!.config/nvim/", ".config/"}

	if !PathMatches(alias, ".config/nvim/init.lua", rules) {
		t.Fatal(".config/nvim/init.lua should be included: the later .config/ rule overrides the earlier exclusion")
	}
}
