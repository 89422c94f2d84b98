// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Pi5disk converts a host directory tree to the txtar disk format used
// by the kern package and related commands.
//
// Usage:
//
//	pi5disk [-o out.txtar] [-x] path
//
// By default path is a directory and its tree is written out as a txtar
// disk, ready to replace the embedded file system seed.
//
// The -o flag specifies the name of the output file to write (default standard output).
//
// The -x flag inverts the operation: path is now a txtar disk, and -o is the
// name of a directory to write the files into (default _fs).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/tools/txtar"
)

var (
	outfile = flag.String("o", "", "write output txtar to `file` (default standard output)")
	xflag   = flag.Bool("x", false, "extract txtar disk")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: pi5disk [-o out.txtar] [-x] path\n")
	os.Exit(2)
}

// An entry is one file table line waiting to be written out.
type entry struct {
	name string
	typ  string
	perm fs.FileMode
	data []byte
}

func main() {
	log.SetPrefix("pi5disk: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}

	if *xflag {
		extract(args[0])
		return
	}

	var list []*entry
	root := filepath.Clean(args[0])
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := "/"
		if p != root {
			name = "/" + filepath.ToSlash(strings.TrimPrefix(p, root+string(filepath.Separator)))
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		e := &entry{name: name, perm: info.Mode().Perm()}
		switch {
		case d.IsDir():
			e.typ = "dir"
		case info.Mode().IsRegular():
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			e.data = data
		default:
			// sockets, symlinks, and devices have no place in the seed
			return nil
		}
		list = append(list, e)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	w := os.Stdout
	if *outfile != "" {
		f, err := os.Create(*outfile)
		if err != nil {
			log.Fatal(err)
		}
		w = f
	}

	slices.SortFunc(list, func(x, y *entry) int { return pathCompare(x.name, y.name) })

	fmt.Fprintf(w, "File system image. Each header is a path followed by optional\ntype= (file, dir, dev, proc) and perm= fields; see fsys.go.\n\n")
	for _, e := range list {
		typ := ""
		if e.typ != "" {
			typ = " type=" + e.typ
		}
		deflt := fs.FileMode(0o644)
		if e.typ == "dir" {
			deflt = 0o755
		}
		perm := ""
		if e.perm != deflt {
			perm = fmt.Sprintf(" perm=0o%o", e.perm)
		}

		c := e.data
		if !utf8.Valid(c) || bytes.HasPrefix(c, []byte("-- ")) || bytes.Contains(c, []byte("\n-- ")) {
			log.Fatalf("%s: binary content does not fit the txtar disk format", e.name)
		}
		if len(c) > 0 && !bytes.HasSuffix(c, []byte("\n")) {
			c = append(c, '\n')
		}

		fmt.Fprintf(w, "-- %s%s%s --\n%s", e.name, typ, perm, c)
	}
}

// extract writes the directories and regular files of a txtar disk
// into the output directory. Device and proc entries are kernel-side
// objects and are skipped.
func extract(diskfile string) {
	data, err := os.ReadFile(diskfile)
	if err != nil {
		log.Fatal(err)
	}
	if *outfile == "" {
		*outfile = "_fs"
	}
	ar := txtar.Parse(data)
	for _, f := range ar.Files {
		fields := strings.Fields(f.Name)
		name := fields[0]
		typ := "file"
		for _, arg := range fields[1:] {
			if k, v, ok := strings.Cut(arg, "="); ok && k == "type" {
				typ = v
			}
		}
		targ := filepath.Join(*outfile, filepath.FromSlash(path.Clean("/"+name)))
		switch typ {
		case "dir":
			if err := os.MkdirAll(targ, 0777); err != nil {
				log.Fatal(err)
			}
		case "file":
			if err := os.MkdirAll(filepath.Dir(targ), 0777); err != nil {
				log.Fatal(err)
			}
			if err := os.WriteFile(targ, f.Data, 0666); err != nil {
				log.Fatal(err)
			}
		}
	}
}

func pathCompare(x, y string) int {
	return strings.Compare(strings.ReplaceAll(x, "/", "\x01"), strings.ReplaceAll(y, "/", "\x01"))
}
