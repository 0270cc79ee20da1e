package ozerr

import (
	"errors"
	"testing"
)

func TestErrorKinds_Is(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"sparse", &Sparse{Path: "/x", Op: "write", Err: errors.New("boom")}, &Sparse{}},
		{"git", &Git{Op: "clone", Err: errors.New("boom")}, &Git{}},
		{"syscall", &Syscall{Command: "git checkout", ExitCode: 1}, &Syscall{}},
		{"config", &Config{Op: "parse", Err: errors.New("boom")}, &Config{}},
		{"cluster not found", &ClusterNotFound{Name: "shell"}, &ClusterNotFound{}},
		{"glob", &Glob{Pattern: "*.git", Err: errors.New("boom")}, &Glob{}},
		{"io", &Io{Op: "remove", Path: "/x", Err: errors.New("boom")}, &Io{}},
		{"blob not found", &BlobNotFound{Path: "cluster.toml"}, &BlobNotFound{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Fatalf("errors.Is(%v, %T) = false, want true", tt.err, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Fatalf("Error() returned empty string")
			}
		})
	}
}

func TestErrorKinds_Unwrap(t *testing.T) {
	cause := errors.New("underlying")

	tests := []struct {
		name string
		err  error
	}{
		{"sparse", &Sparse{Path: "/x", Op: "write", Err: cause}},
		{"git", &Git{Op: "clone", Err: cause}},
		{"config", &Config{Op: "parse", Err: cause}},
		{"glob", &Glob{Pattern: "*.git", Err: cause}},
		{"io", &Io{Op: "remove", Path: "/x", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Fatalf("errors.Is(%v, cause) = false, want true", tt.err)
			}
		})
	}
}

func TestClusterNotFound_DistinctNames(t *testing.T) {
	err := &ClusterNotFound{Name: "shell"}
	if err.Error() != "cluster not found: shell" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
