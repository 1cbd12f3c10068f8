// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package baked is the runtime view of embedded resource trees.
//
// The build step serializes each embedded directory (templates, fonts,
// packages) as a static [Dir] value whose file bodies are
// zstd-compressed. Trees are built once, at init, and referenced
// read-only for the life of the process; decompression happens lazily,
// per file, when the rendering stage asks for content.
package baked

import (
	"fmt"
	"strings"

	"github.com/elgar328/typst-bake/lib/blobcache"
)

// File is one embedded file. Data holds the zstd-compressed body.
type File struct {
	Name string
	Data []byte
}

// Bytes decompresses and returns the file's content.
func (f *File) Bytes() ([]byte, error) {
	return blobcache.Decompress(f.Data)
}

// utf8BOM is stripped from text content; typst sources saved by some
// editors carry it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text decompresses the file and returns its content as text, with a
// leading UTF-8 byte order mark removed.
func (f *File) Text() (string, error) {
	content, err := f.Bytes()
	if err != nil {
		return "", err
	}
	if len(content) >= len(utf8BOM) &&
		content[0] == utf8BOM[0] && content[1] == utf8BOM[1] && content[2] == utf8BOM[2] {
		content = content[len(utf8BOM):]
	}
	return string(content), nil
}

// Dir is one embedded directory. Files and Dirs are each in
// lexicographic order by name.
type Dir struct {
	Name  string
	Files []File
	Dirs  []Dir
}

// Lookup finds the file at a slash-separated path relative to d.
func (d *Dir) Lookup(path string) (*File, bool) {
	current := d
	segments := strings.Split(path, "/")

	for _, segment := range segments[:len(segments)-1] {
		next := current.subdir(segment)
		if next == nil {
			return nil, false
		}
		current = next
	}

	name := segments[len(segments)-1]
	for i := range current.Files {
		if current.Files[i].Name == name {
			return &current.Files[i], true
		}
	}
	return nil, false
}

// Walk visits every file under d in tree order, passing its
// slash-separated path relative to d. Walk stops at the first error
// and returns it.
func (d *Dir) Walk(visit func(path string, file *File) error) error {
	return d.walk("", visit)
}

func (d *Dir) walk(prefix string, visit func(path string, file *File) error) error {
	for i := range d.Files {
		if err := visit(prefix+d.Files[i].Name, &d.Files[i]); err != nil {
			return err
		}
	}
	for i := range d.Dirs {
		if err := d.Dirs[i].walk(prefix+d.Dirs[i].Name+"/", visit); err != nil {
			return err
		}
	}
	return nil
}

// FileCount returns the number of files in the tree.
func (d *Dir) FileCount() int {
	count := len(d.Files)
	for i := range d.Dirs {
		count += d.Dirs[i].FileCount()
	}
	return count
}

func (d *Dir) subdir(name string) *Dir {
	for i := range d.Dirs {
		if d.Dirs[i].Name == name {
			return &d.Dirs[i]
		}
	}
	return nil
}

// String identifies the tree in logs without dumping its contents.
func (d *Dir) String() string {
	return fmt.Sprintf("baked.Dir(%q, %d files)", d.Name, d.FileCount())
}
