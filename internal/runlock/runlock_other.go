//go:build !unix

package runlock

import "errors"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("build directory is locked by another run")

// Lock is a no-op on platforms without flock.
type Lock struct{ path string }

// Acquire always succeeds.
func Acquire(path string) (*Lock, error) { return &Lock{path: path}, nil }

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release does nothing.
func (l *Lock) Release() error { return nil }
