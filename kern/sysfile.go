// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "encoding/binary"

func (sys *Sys) sysopen(p *Proc) {
	path := p.str(p.Args[0])
	if p.Error != 0 {
		return
	}
	if _, err := sys.fs.Stat(path); err != nil {
		p.seterr(err)
		return
	}
	fd, err := sys.fds.Open(path, uint32(p.Args[1]))
	if err != nil {
		p.seterr(err)
		return
	}
	p.Ret = int64(fd)
}

func (sys *Sys) sysread(p *Proc) {
	fd := int32(p.Args[0])
	buf := p.mem(p.Args[1], p.Args[2])
	if p.Error != 0 {
		return
	}
	if fd == 0 {
		return /* console input is line-buffered; an empty queue reads as EOF */
	}
	f := sys.fds.Lookup(fd)
	if f == nil {
		p.Error = EBADF
		return
	}
	data, err := sys.fs.ReadFile(f.Path)
	if err != nil {
		p.seterr(err)
		return
	}
	if f.Offset > len(data) {
		// the file shrank since the last read
		f.Offset = len(data)
	}
	n := copy(buf, data[f.Offset:])
	f.Offset += n
	p.Ret = int64(n)
}

func (sys *Sys) syswrite(p *Proc) {
	fd := int32(p.Args[0])
	data := p.mem(p.Args[1], p.Args[2])
	if p.Error != 0 {
		return
	}
	if fd == 1 || fd == 2 {
		n, _ := sys.cons.Write(data)
		p.Ret = int64(n)
		return
	}
	f := sys.fds.Lookup(fd)
	if f == nil {
		p.Error = EBADF
		return
	}
	if err := sys.fs.WriteFile(f.Path, data); err != nil {
		p.seterr(err)
		return
	}
	p.Ret = int64(len(data))
}

func (sys *Sys) syschdir(p *Proc) {
	path := p.str(p.Args[0])
	if p.Error != 0 {
		return
	}
	f, err := sys.fs.Stat(path)
	if err != nil {
		p.seterr(err)
		return
	}
	if f.Type != FDIR {
		p.Error = ENOTDIR
		return
	}
	p.Dir = path
}

func (sys *Sys) sysgetcwd(p *Proc) {
	n := uint64(len(p.Dir)) + 1
	if p.Args[1] < n {
		p.Error = ERANGE
		return
	}
	buf := p.mem(p.Args[0], n)
	if p.Error != 0 {
		return
	}
	copy(buf, p.Dir)
	buf[n-1] = 0
	p.Ret = int64(n)
}

func (sys *Sys) sysmkdir(p *Proc) {
	path := p.str(p.Args[0])
	if p.Error != 0 {
		return
	}
	p.seterr(sys.fs.Mkdir(path))
}

func (sys *Sys) sysunlink(p *Proc) {
	path := p.str(p.Args[0])
	if p.Error != 0 {
		return
	}
	p.seterr(sys.fs.Remove(path))
}

func (sys *Sys) sysaccess(p *Proc) {
	path := p.str(p.Args[0])
	if p.Error != 0 {
		return
	}
	if !sys.fs.Exists(path) {
		p.Error = ENOENT
	}
}

// sysstat fills a 16-byte record, permissions then size, both
// little-endian 64-bit. A zero buffer address checks existence only.
func (sys *Sys) sysstat(p *Proc) {
	path := p.str(p.Args[0])
	if p.Error != 0 {
		return
	}
	f, err := sys.fs.Stat(path)
	if err != nil {
		p.seterr(err)
		return
	}
	if p.Args[1] == 0 {
		return
	}
	buf := p.mem(p.Args[1], 16)
	if p.Error != 0 {
		return
	}
	binary.LittleEndian.PutUint64(buf, uint64(f.Perm))
	binary.LittleEndian.PutUint64(buf[8:], uint64(len(f.Data)))
}
