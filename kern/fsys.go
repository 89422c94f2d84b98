// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/tools/txtar"
)

//go:embed disk.txtar
var disk []byte

/* file types */
const (
	FREG  int8 = 0 /* regular file */
	FDIR  int8 = 1 /* directory */
	FDEV  int8 = 2 /* character device */
	FPROC int8 = 3 /* kernel-generated, read only */
)

func defaultPerm(typ int8) uint32 {
	switch typ {
	case FDIR:
		return 0o755
	case FDEV:
		return 0o666
	case FPROC:
		return 0o444
	}
	return 0o644
}

// A File is one entry in the file table. Name is the full path from
// the root. There is no inode layer: a directory is just an entry
// whose children sit one path element below its name.
type File struct {
	Name string
	Type int8
	Perm uint32
	Data []byte
}

// An FS is the kernel's in-memory file system, seeded from the
// embedded disk archive. The table is flat and bounded. The /proc
// entries that report live kernel state are generated at read time;
// everything else reads and writes stored data.
type FS struct {
	log   hclog.Logger
	clock *Clock
	files []*File
}

// NewFS parses the embedded disk archive into a file table.
// Archive headers are "path key=value ...": type is dir, dev, proc,
// or file (the default), and perm overrides the per-type default.
func NewFS(log hclog.Logger, clock *Clock) (*FS, error) {
	fs := &FS{log: log.Named("fs"), clock: clock}
	ar := txtar.Parse(disk)
	for _, file := range ar.Files {
		f := strings.Fields(file.Name)
		name := f[0]
		typ := FREG
		perm := uint32(0)
		for _, arg := range f[1:] {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			}
			switch k {
			default:
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			case "type":
				switch v {
				default:
					return nil, fmt.Errorf("invalid txtar type: %s", v)
				case "file":
					typ = FREG
				case "dir":
					typ = FDIR
				case "dev":
					typ = FDEV
				case "proc":
					typ = FPROC
				}
			case "perm":
				i, err := strconv.ParseUint(v, 0, 32)
				if err != nil {
					return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
				}
				perm = uint32(i)
			}
		}
		if perm == 0 {
			perm = defaultPerm(typ)
		}
		if len(fs.files) >= NFILE {
			return nil, fmt.Errorf("%s: file table full", name)
		}
		fs.files = append(fs.files, &File{Name: name, Type: typ, Perm: perm, Data: file.Data})
	}
	fs.log.Debug("file table seeded", "files", len(fs.files))
	return fs, nil
}

func (fs *FS) lookup(path string) *File {
	for _, f := range fs.files {
		if f.Name == path {
			return f
		}
	}
	return nil
}

// Stat returns the file table entry for path.
func (fs *FS) Stat(path string) (*File, error) {
	f := fs.lookup(path)
	if f == nil {
		return nil, ENOENT
	}
	return f, nil
}

// Exists reports whether path is in the file table.
func (fs *FS) Exists(path string) bool { return fs.lookup(path) != nil }

// ReadFile returns the content of path.
func (fs *FS) ReadFile(path string) ([]byte, error) {
	if path == "/proc/uptime" && fs.clock != nil {
		up := fs.clock.UptimeSeconds()
		return []byte(fmt.Sprintf("%d.00 %d.00", up, up)), nil
	}
	f := fs.lookup(path)
	if f == nil {
		return nil, ENOENT
	}
	if f.Type == FDIR {
		return nil, EISDIR
	}
	return f.Data, nil
}

// WriteFile replaces the content of an existing file. The /proc
// entries are generated, not stored, so they reject writes.
func (fs *FS) WriteFile(path string, data []byte) error {
	f := fs.lookup(path)
	if f == nil {
		return ENOENT
	}
	if f.Type == FPROC {
		return EACCES
	}
	if f.Type == FDIR {
		return EISDIR
	}
	if len(data) > FILSIZ {
		return EFBIG
	}
	f.Data = append([]byte(nil), data...)
	return nil
}

// Create adds a new regular file with the given content.
func (fs *FS) Create(path string, data []byte) error {
	if fs.lookup(path) != nil {
		return EEXIST
	}
	if len(fs.files) >= NFILE {
		return ENOSPC
	}
	if len(data) > FILSIZ {
		return EFBIG
	}
	fs.files = append(fs.files, &File{
		Name: path,
		Type: FREG,
		Perm: defaultPerm(FREG),
		Data: append([]byte(nil), data...),
	})
	return nil
}

// Mkdir adds a new directory entry.
func (fs *FS) Mkdir(path string) error {
	if fs.lookup(path) != nil {
		return EEXIST
	}
	if len(fs.files) >= NFILE {
		return ENOSPC
	}
	fs.files = append(fs.files, &File{Name: path, Type: FDIR, Perm: defaultPerm(FDIR)})
	return nil
}

// Remove deletes a regular file. Directories, devices, and /proc
// entries stay.
func (fs *FS) Remove(path string) error {
	for i, f := range fs.files {
		if f.Name == path {
			if f.Type == FDIR {
				return EISDIR
			}
			if f.Type != FREG {
				return EPERM
			}
			fs.files = append(fs.files[:i], fs.files[i+1:]...)
			return nil
		}
	}
	return ENOENT
}

// ListDir returns the entries directly below path.
func (fs *FS) ListDir(path string) ([]*File, error) {
	d := fs.lookup(path)
	if d == nil {
		return nil, ENOENT
	}
	if d.Type != FDIR {
		return nil, ENOTDIR
	}
	prefix := path
	if prefix != "/" {
		prefix += "/"
	}
	var entries []*File
	for _, f := range fs.files {
		if f.Name == path || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		if strings.Contains(f.Name[len(prefix):], "/") {
			continue
		}
		entries = append(entries, f)
	}
	return entries, nil
}

// Files returns the live file table, for walks like the shell's find.
func (fs *FS) Files() []*File { return fs.files }

// Stats reports used and total file table slots.
func (fs *FS) Stats() (used, total int) { return len(fs.files), NFILE }
