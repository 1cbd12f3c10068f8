// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package dirembed turns a directory tree into an embeddable entry
// tree backed by the compression cache.
//
// Entries are ordered lexicographically by name at every level, so the
// resulting tree — and anything generated from it — is byte-for-byte
// reproducible regardless of the filesystem's native listing order.
// Hidden entries (dot-prefixed) are skipped, and a filter predicate
// restricts which files are embedded (e.g. only font files from a
// fonts directory). Subdirectories whose recursion yields nothing are
// omitted entirely.
package dirembed

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/elgar328/typst-bake/lib/blobcache"
)

// Entry is a node in an embeddable tree: either a [File] or a [Dir].
type Entry interface {
	// EntryName returns the node's path segment.
	EntryName() string
}

// File is a leaf node referencing the compressed blob of one file's
// content. Files with identical content share a blob.
type File struct {
	Name string
	Blob *blobcache.Blob
}

// EntryName returns the file's name.
func (f File) EntryName() string { return f.Name }

// Dir is an interior node with its children in lexicographic order.
type Dir struct {
	Name    string
	Entries []Entry
}

// EntryName returns the directory's name.
func (d Dir) EntryName() string { return d.Name }

// Filter decides whether a file (by base name) is embedded.
type Filter func(name string) bool

// AllFiles embeds every non-hidden file.
func AllFiles(string) bool { return true }

// fontExts are the font formats the rendering stage can load.
var fontExts = map[string]bool{".ttf": true, ".otf": true, ".ttc": true}

// FontFiles embeds only recognized font files (TTF, OTF, TTC),
// matching extensions case-insensitively.
func FontFiles(name string) bool {
	return fontExts[strings.ToLower(filepath.Ext(name))]
}

// Result is the embeddable tree for one directory plus its aggregate
// size statistics.
type Result struct {
	Entries        []Entry
	OriginalSize   int64
	CompressedSize int64
	FileCount      int
}

// Embed walks root recursively and compresses every matching file
// through cache. A nonexistent root yields an empty result — an
// as-yet-unpopulated cache directory is not an error.
func Embed(root string, filter Filter, cache *blobcache.Cache) (*Result, error) {
	result := &Result{}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return result, nil
	}

	entries, err := embedDir(root, filter, cache, result)
	if err != nil {
		return nil, err
	}
	result.Entries = entries
	return result, nil
}

// embedDir embeds one directory level, accumulating size totals into
// result. os.ReadDir returns entries sorted by name, which is exactly
// the per-level ordering the tree requires.
func embedDir(dir string, filter Filter, cache *blobcache.Cache, result *Result) ([]Entry, error) {
	listing, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing directory %s: %w", dir, err)
	}

	var entries []Entry
	for _, item := range listing {
		name := item.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		switch {
		case item.Type().IsDir():
			children, err := embedDir(path, filter, cache, result)
			if err != nil {
				return nil, err
			}
			// An all-filtered subtree contributes no node at all.
			if len(children) == 0 {
				continue
			}
			entries = append(entries, Dir{Name: name, Entries: children})

		case item.Type().IsRegular():
			if !filter(name) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			blob, err := cache.Compress(data)
			if err != nil {
				return nil, err
			}
			entries = append(entries, File{Name: name, Blob: blob})
			result.OriginalSize += int64(len(data))
			result.CompressedSize += int64(len(blob.Compressed))
			result.FileCount++
		}
		// Symlinks and special files are skipped.
	}
	return entries, nil
}
