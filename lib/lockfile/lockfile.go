// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package lockfile provides cross-process mutual exclusion via advisory
// file locks.
//
// The lock serializes writers across independent processes (e.g. two
// builds racing to download the same package on one machine), not just
// goroutines within one process. Acquire blocks until the lock is held;
// a waiter that acquires the lock after another process finished the
// same work should re-check whether the work still needs doing.
package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is an exclusively held advisory lock on a file. Release it when
// the guarded work is done; the lock is also released by the kernel if
// the process dies, so a crashed holder never wedges other processes.
type Lock struct {
	file *os.File
}

// Acquire opens (creating if necessary) the file at path and takes an
// exclusive flock on it, blocking until the lock is available.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &Lock{file: file}, nil
}

// Release drops the lock and closes the underlying file. The lock file
// itself is left in place: removing it would race with another process
// that already opened the same path and is waiting on its flock.
func (l *Lock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("unlocking %s: %w", l.file.Name(), err)
	}
	return l.file.Close()
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.file.Name()
}
