// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// An FD is one open-file entry: the path opened, the open flags, and
// the read offset. Closing marks the entry rather than deleting it,
// and descriptor numbers are never reused.
type FD struct {
	Fd     int32
	Path   string
	Flags  uint32
	Offset int
	Open   bool
}

// An FDTable is the kernel's open-file table, preseeded with the
// standard descriptors. It holds at most NOFILE entries, closed ones
// included; new descriptors count up from 3.
type FDTable struct {
	fds    []*FD
	nextFd int32
}

// NewFDTable returns a table with stdin, stdout, and stderr open.
func NewFDTable() *FDTable {
	t := &FDTable{nextFd: 3}
	t.fds = append(t.fds,
		&FD{Fd: 0, Path: "/dev/stdin", Flags: 0, Open: true},
		&FD{Fd: 1, Path: "/dev/stdout", Flags: 1, Open: true},
		&FD{Fd: 2, Path: "/dev/stderr", Flags: 1, Open: true},
	)
	return t
}

// Open allocates a descriptor for path.
func (t *FDTable) Open(path string, flags uint32) (int32, error) {
	if len(t.fds) >= NOFILE {
		return -1, EMFILE
	}
	fd := t.nextFd
	t.nextFd++
	t.fds = append(t.fds, &FD{Fd: fd, Path: path, Flags: flags, Open: true})
	return fd, nil
}

// Close marks fd closed.
func (t *FDTable) Close(fd int32) error {
	f := t.Lookup(fd)
	if f == nil {
		return EBADF
	}
	f.Open = false
	return nil
}

// Lookup returns the open descriptor numbered fd, or nil.
func (t *FDTable) Lookup(fd int32) *FD {
	for _, f := range t.fds {
		if f.Fd == fd && f.Open {
			return f
		}
	}
	return nil
}
