// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package bake runs the full resource preparation pipeline: scan the
// template directory for package imports, resolve and fetch the
// package graph, and compress templates, fonts, and packages into
// embeddable trees with aggregate statistics.
//
// One Run is one pipeline invocation. Everything it builds lives in
// memory and is handed to the caller; the only durable state it
// touches is the on-disk package cache and compression cache, which
// survive across invocations by design.
package bake

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/elgar328/typst-bake/lib/baked"
	"github.com/elgar328/typst-bake/lib/blobcache"
	"github.com/elgar328/typst-bake/lib/dirembed"
	"github.com/elgar328/typst-bake/lib/stats"
	"github.com/elgar328/typst-bake/lib/typstpkg"
)

// Options configures one pipeline run.
type Options struct {
	// TemplateDir is the root template directory. Required; it must
	// exist.
	TemplateDir string

	// FontsDir is an optional fonts directory. Only recognized font
	// files are embedded from it.
	FontsDir string

	// LocalPackageDir is an optional directory of local packages,
	// searched before the cache and the registry.
	LocalPackageDir string

	// PackageCacheDir is the durable package cache directory.
	PackageCacheDir string

	// CompressionCacheDir is the durable compression cache directory.
	// Empty disables disk caching of compressed blobs.
	CompressionCacheDir string

	// Level is the zstd compression level, clamped to the supported
	// range. Zero means blobcache.DefaultLevel.
	Level int

	// Refresh forces re-download of cached packages and recompression
	// of cached blobs.
	Refresh bool

	// RegistryURL overrides the default package registry (tests).
	RegistryURL string

	// Logger receives progress and diagnostics. nil means
	// slog.Default().
	Logger *slog.Logger
}

// Result is everything one pipeline run produces for the
// code-generation step.
type Result struct {
	// Templates, Fonts, and Packages are the three embeddable trees.
	// The packages tree is grouped namespace/name/version, mirroring
	// the on-disk cache layout.
	Templates *dirembed.Result
	Fonts     *dirembed.Result
	Packages  *dirembed.Result

	// Resolved lists every resolved package, sorted by
	// namespace/name/version.
	Resolved []typstpkg.ResolvedPackage

	// Stats aggregates sizes, per-package breakdowns, and dedup
	// totals.
	Stats stats.EmbedStats
}

// Run executes the pipeline.
func Run(options Options) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if options.TemplateDir == "" {
		return nil, fmt.Errorf("template directory not configured")
	}
	if info, err := os.Stat(options.TemplateDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("template directory does not exist: %s", options.TemplateDir)
	}

	level := options.Level
	if level == 0 {
		level = blobcache.DefaultLevel
	}
	cache, err := blobcache.New(options.CompressionCacheDir, level)
	if err != nil {
		return nil, err
	}
	cache.SetRefresh(options.Refresh)

	logger.Info("scanning templates for package imports", "dir", options.TemplateDir)
	direct := typstpkg.ScanImports(options.TemplateDir, logger)
	logger.Info("import scan finished", "packages", len(direct))

	resolver := &typstpkg.Resolver{
		LocalDir:    options.LocalPackageDir,
		CacheDir:    options.PackageCacheDir,
		RegistryURL: options.RegistryURL,
		Refresh:     options.Refresh,
		Logger:      logger,
	}
	resolved, err := resolver.Resolve(direct)
	if err != nil {
		return nil, err
	}
	// Sorted per segment, not by joined path: a joined-string compare
	// would order "cetz-plot" before "cetz" because '-' sorts below the
	// path separator.
	sort.Slice(resolved, func(i, j int) bool {
		a, b := resolved[i].Spec, resolved[j].Spec
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Version < b.Version
	})

	templates, err := dirembed.Embed(options.TemplateDir, dirembed.AllFiles, cache)
	if err != nil {
		return nil, err
	}

	fonts := &dirembed.Result{}
	if options.FontsDir != "" {
		fonts, err = dirembed.Embed(options.FontsDir, dirembed.FontFiles, cache)
		if err != nil {
			return nil, err
		}
	}

	packages, packageStats, err := embedPackages(resolved, cache)
	if err != nil {
		return nil, err
	}

	cacheStats := cache.Stats()
	result := &Result{
		Templates: templates,
		Fonts:     fonts,
		Packages:  packages,
		Resolved:  resolved,
		Stats: stats.EmbedStats{
			Templates: categoryStats(templates),
			Fonts:     categoryStats(fonts),
			Packages:  packageStats,
			Dedup: stats.DedupStats{
				TotalFiles:     cacheStats.TotalFiles(),
				UniqueBlobs:    cacheStats.UniqueBlobs,
				DuplicateCount: cacheStats.DedupHits,
				SavedBytes:     cacheStats.SavedBytes,
			},
		},
	}

	cache.LogSummary(logger)
	if err := cache.Cleanup(); err != nil {
		// Eviction failure costs disk space, not correctness.
		logger.Warn("compression cache cleanup failed", "error", err)
	}

	return result, nil
}

// embedPackages embeds every resolved package directory and assembles
// the nested namespace/name/version tree. The input is sorted, so the
// grouped tree is already in lexicographic order at every level.
func embedPackages(resolved []typstpkg.ResolvedPackage, cache *blobcache.Cache) (*dirembed.Result, stats.PackageStats, error) {
	combined := &dirembed.Result{}
	var packageStats stats.PackageStats

	var namespaces []dirembed.Entry
	var currentNamespace *dirembed.Dir
	var currentName *dirembed.Dir

	for _, pkg := range resolved {
		embedded, err := dirembed.Embed(pkg.Path, dirembed.AllFiles, cache)
		if err != nil {
			return nil, stats.PackageStats{}, fmt.Errorf("embedding package %s: %w", pkg.Spec, err)
		}

		packageStats.Packages = append(packageStats.Packages, stats.PackageInfo{
			Name:           pkg.Spec.String(),
			OriginalSize:   embedded.OriginalSize,
			CompressedSize: embedded.CompressedSize,
			FileCount:      embedded.FileCount,
		})
		packageStats.TotalOriginal += embedded.OriginalSize
		packageStats.TotalCompressed += embedded.CompressedSize
		combined.OriginalSize += embedded.OriginalSize
		combined.CompressedSize += embedded.CompressedSize
		combined.FileCount += embedded.FileCount

		if currentNamespace == nil || currentNamespace.Name != pkg.Spec.Namespace {
			// Flush the pending name group into its namespace before
			// the namespace itself is copied out.
			if currentName != nil {
				currentNamespace.Entries = append(currentNamespace.Entries, *currentName)
			}
			if currentNamespace != nil {
				namespaces = append(namespaces, *currentNamespace)
			}
			currentNamespace = &dirembed.Dir{Name: pkg.Spec.Namespace}
			currentName = nil
		}
		if currentName == nil || currentName.Name != pkg.Spec.Name {
			if currentName != nil {
				currentNamespace.Entries = append(currentNamespace.Entries, *currentName)
			}
			currentName = &dirembed.Dir{Name: pkg.Spec.Name}
		}
		currentName.Entries = append(currentName.Entries, dirembed.Dir{
			Name:    pkg.Spec.Version,
			Entries: embedded.Entries,
		})
	}
	if currentName != nil {
		currentNamespace.Entries = append(currentNamespace.Entries, *currentName)
	}
	if currentNamespace != nil {
		namespaces = append(namespaces, *currentNamespace)
	}

	combined.Entries = namespaces
	return combined, packageStats, nil
}

func categoryStats(result *dirembed.Result) stats.CategoryStats {
	return stats.CategoryStats{
		OriginalSize:   result.OriginalSize,
		CompressedSize: result.CompressedSize,
		FileCount:      result.FileCount,
	}
}

// BuildTree converts an embeddable entry tree into the runtime
// representation the generated code constructs statically. Useful for
// consuming a pipeline result in-process without code generation.
func BuildTree(name string, result *dirembed.Result) baked.Dir {
	return buildDir(name, result.Entries)
}

func buildDir(name string, entries []dirembed.Entry) baked.Dir {
	dir := baked.Dir{Name: name}
	for _, entry := range entries {
		switch node := entry.(type) {
		case dirembed.File:
			dir.Files = append(dir.Files, baked.File{
				Name: node.Name,
				Data: node.Blob.Compressed,
			})
		case dirembed.Dir:
			dir.Dirs = append(dir.Dirs, buildDir(node.Name, node.Entries))
		}
	}
	return dir
}
