// Package ozerr defines the tagged error kinds shared across oxidot's core
// packages. Each kind wraps an underlying cause and carries the diagnostic
// fields callers need without collapsing them into a bare string.
package ozerr

import "fmt"

// Sparse indicates a failure creating, reading, or writing the
// sparse-checkout file.
type Sparse struct {
	Path string
	Op   string
	Err  error
}

func (e *Sparse) Error() string {
	return fmt.Sprintf("sparse-checkout %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Sparse) Unwrap() error { return e.Err }

func (e *Sparse) Is(target error) bool {
	_, ok := target.(*Sparse)
	return ok
}

// Git indicates a failure from the embedded git library (clone, open, tree
// lookup, commit, and similar plumbing operations).
type Git struct {
	Op  string
	Err error
}

func (e *Git) Error() string {
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *Git) Unwrap() error { return e.Err }

func (e *Git) Is(target error) bool {
	_, ok := target.(*Git)
	return ok
}

// Syscall indicates the `git` executable failed to launch or exited
// non-zero. Output carries the combined stdout+stderr for diagnostics.
type Syscall struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *Syscall) Error() string {
	msg := fmt.Sprintf("%s: exit %d", e.Command, e.ExitCode)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *Syscall) Unwrap() error { return e.Err }

func (e *Syscall) Is(target error) bool {
	_, ok := target.(*Syscall)
	return ok
}

// Config indicates a cluster-definition parse/serialize failure, including
// shell-expansion lookup failures encountered while loading work_tree_alias.
type Config struct {
	Op  string
	Err error
}

func (e *Config) Error() string {
	return fmt.Sprintf("cluster definition %s: %v", e.Op, e.Err)
}

func (e *Config) Unwrap() error { return e.Err }

func (e *Config) Is(target error) bool {
	_, ok := target.(*Config)
	return ok
}

// ClusterNotFound indicates a name absent from a Store.
type ClusterNotFound struct {
	Name string
}

func (e *ClusterNotFound) Error() string {
	return fmt.Sprintf("cluster not found: %s", e.Name)
}

func (e *ClusterNotFound) Is(target error) bool {
	_, ok := target.(*ClusterNotFound)
	return ok
}

// Glob indicates a failure globbing a store directory's entries.
type Glob struct {
	Pattern string
	Err     error
}

func (e *Glob) Error() string {
	return fmt.Sprintf("glob %s: %v", e.Pattern, e.Err)
}

func (e *Glob) Unwrap() error { return e.Err }

func (e *Glob) Is(target error) bool {
	_, ok := target.(*Glob)
	return ok
}

// Io indicates a filesystem failure outside the sparse subsystem (creating
// the store directory, removing a cluster tree, and similar operations).
type Io struct {
	Op   string
	Path string
	Err  error
}

func (e *Io) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Io) Unwrap() error { return e.Err }

func (e *Io) Is(target error) bool {
	_, ok := target.(*Io)
	return ok
}

// BlobNotFound indicates catFile found no blob matching the requested path
// in HEAD's tree. Recoverable in contexts such as detecting a non-cluster
// directory during open; core code logs it as a warning rather than
// raising it where semantics permit.
type BlobNotFound struct {
	Path string
}

func (e *BlobNotFound) Error() string {
	return fmt.Sprintf("blob not found: %s", e.Path)
}

func (e *BlobNotFound) Is(target error) bool {
	_, ok := target.(*BlobNotFound)
	return ok
}
