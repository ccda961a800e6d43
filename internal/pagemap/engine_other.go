//go:build !linux

package pagemap

import (
	"context"
	"errors"
)

// ErrUnsupportedPlatform is returned by Open on platforms without
// userfaultfd(2).
var ErrUnsupportedPlatform = errors.New("pagemap: userfaultfd is only supported on linux")

// ProbeUffd always reports false on non-Linux platforms.
func ProbeUffd() bool { return false }

// Open is unavailable outside Linux; userfaultfd(2) is a Linux-only
// facility with no portable equivalent.
func Open(ctx context.Context, handler FaultHandler, size int64) (*Engine, error) {
	return nil, ErrUnsupportedPlatform
}

// OpenWithWorkers is Open; also unavailable outside Linux.
func OpenWithWorkers(ctx context.Context, handler FaultHandler, size int64, workers int) (*Engine, error) {
	return nil, ErrUnsupportedPlatform
}

func closeUffdFD(fd int) error { return nil }

func unmapRegion(base uintptr, length uintptr) error { return nil }
