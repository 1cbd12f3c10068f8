// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package typstpkg

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"unicode/utf8"
)

// sourceExt is the file extension of typst source files. Only these
// are scanned for package imports.
const sourceExt = ".typ"

// importPattern matches quoted import sources. The quoted string is
// validated separately by ParseImportPath; anything that is not a
// package reference (relative file imports, plain strings) simply
// fails that parse and is ignored.
var importPattern = regexp.MustCompile(`#import\s+"([^"]*)"`)

// ScanImports walks dir recursively and returns the deduplicated set
// of package specs referenced by import statements in .typ files,
// sorted for deterministic output. Unreadable or non-UTF-8 files are
// logged and skipped: one broken source file must not block
// resolution of everything else.
func ScanImports(dir string, logger *slog.Logger) []PackageSpec {
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[PackageSpec]struct{})

	filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable entry during import scan", "path", path, "error", err)
			return nil
		}
		if entry.IsDir() || filepath.Ext(path) != sourceExt {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable source file", "path", path, "error", err)
			return nil
		}
		if !utf8.Valid(content) {
			logger.Warn("skipping non-UTF-8 source file", "path", path)
			return nil
		}

		for _, spec := range parseImports(string(content)) {
			seen[spec] = struct{}{}
		}
		return nil
	})

	specs := make([]PackageSpec, 0, len(seen))
	for spec := range seen {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].String() < specs[j].String()
	})
	return specs
}

// parseImports extracts package specs from a single source text.
// Quoted import sources that do not match the package reference
// grammar are silently ignored.
func parseImports(source string) []PackageSpec {
	var specs []PackageSpec
	for _, match := range importPattern.FindAllStringSubmatch(source, -1) {
		if spec, ok := ParseImportPath(match[1]); ok {
			specs = append(specs, spec)
		}
	}
	return specs
}
