// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package typstpkg

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRegistryURL is the base URL of the typst package registry.
const DefaultRegistryURL = "https://packages.typst.org"

// NotFoundError indicates that a package was absent from every
// searched location and its namespace is not downloadable.
type NotFoundError struct {
	Spec     PackageSpec
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("package %s not found (searched: %s)",
		e.Spec, strings.Join(e.Searched, ", "))
}

// Failure records one package that could not be resolved, with the
// provoking error.
type Failure struct {
	Spec PackageSpec
	Err  error
}

// ResolveError aggregates every per-package failure from one
// resolution pass. Failures are collected rather than short-circuited
// so the caller sees the complete problem set in a single build.
type ResolveError struct {
	Failures []Failure
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to resolve %d package(s):", len(e.Failures))
	for _, failure := range e.Failures {
		fmt.Fprintf(&b, "\n  - %s: %v", failure.Spec, failure.Err)
	}
	return b.String()
}

// Resolver walks the package dependency graph and materializes every
// reachable package on disk.
type Resolver struct {
	// LocalDir, when non-empty, is searched before the cache and the
	// registry. Packages found here are used in place with no cache
	// write and no network access.
	LocalDir string

	// CacheDir is the durable package cache. Downloads land here
	// under namespace/name/version.
	CacheDir string

	// RegistryURL overrides DefaultRegistryURL (used by tests).
	RegistryURL string

	// Refresh forces re-download of downloadable packages even when a
	// cached copy exists.
	Refresh bool

	// Downloader performs the network fetch. A zero Downloader is
	// used when nil.
	Downloader *Downloader

	// Logger receives per-package progress. nil means slog.Default().
	Logger *slog.Logger
}

// Resolve traverses the dependency graph breadth-first from the direct
// specs, resolving each distinct spec exactly once (diamond
// dependencies collapse). For every resolved package it expands both
// explicit manifest dependencies and implicit source imports.
//
// Per-package failures do not abort the traversal; independent
// packages still resolve. If any package failed, Resolve returns a
// *ResolveError enumerating all of them and no package list. The order
// of the returned packages is unspecified — consumers sort.
func (r *Resolver) Resolve(direct []PackageSpec) ([]ResolvedPackage, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	downloader := r.Downloader
	if downloader == nil {
		downloader = &Downloader{Logger: logger}
	}
	registry := r.RegistryURL
	if registry == "" {
		registry = DefaultRegistryURL
	}

	queue := make([]PackageSpec, len(direct))
	copy(queue, direct)
	visited := make(map[PackageSpec]struct{})

	var resolved []ResolvedPackage
	var failures []Failure

	for len(queue) > 0 {
		spec := queue[0]
		queue = queue[1:]

		if _, ok := visited[spec]; ok {
			continue
		}
		visited[spec] = struct{}{}

		var searched []string

		// Priority 1: local package directory, used in place.
		if r.LocalDir != "" {
			localPath := filepath.Join(r.LocalDir, spec.Subpath())
			if isDir(localPath) {
				logger.Info("using local package", "package", spec.String(), "path", localPath)
				resolved = append(resolved, ResolvedPackage{Spec: spec, Path: localPath})
				queue = append(queue, packageDependencies(localPath, logger)...)
				continue
			}
			searched = append(searched, localPath)
		}

		cachePath := filepath.Join(r.CacheDir, spec.Subpath())

		// Priority 2: the on-disk cache. Refresh bypasses it only for
		// downloadable packages; a re-download cannot improve a package
		// the registry does not serve.
		if (!r.Refresh || !spec.Downloadable()) && isDir(cachePath) {
			logger.Info("using cached package", "package", spec.String())
			resolved = append(resolved, ResolvedPackage{Spec: spec, Path: cachePath})
			queue = append(queue, packageDependencies(cachePath, logger)...)
			continue
		}

		// Priority 3: registry download for downloadable namespaces.
		if spec.Downloadable() {
			url := fmt.Sprintf("%s/%s/%s-%s.tar.gz",
				registry, spec.Namespace, spec.Name, spec.Version)
			logger.Info("downloading package", "package", spec.String(), "url", url)

			if err := downloader.Fetch(url, cachePath, r.Refresh); err != nil {
				logger.Warn("package download failed", "package", spec.String(), "error", err)
				failures = append(failures, Failure{Spec: spec, Err: err})
				continue
			}
			resolved = append(resolved, ResolvedPackage{Spec: spec, Path: cachePath})
			queue = append(queue, packageDependencies(cachePath, logger)...)
			continue
		}

		// Not local, not cached, not downloadable.
		searched = append(searched, cachePath)
		failures = append(failures, Failure{
			Spec: spec,
			Err:  &NotFoundError{Spec: spec, Searched: searched},
		})
	}

	if len(failures) > 0 {
		return nil, &ResolveError{Failures: failures}
	}
	return resolved, nil
}

// packageDependencies returns a resolved package's further dependency
// edges: explicit manifest declarations plus implicit imports found by
// scanning its own sources.
func packageDependencies(dir string, logger *slog.Logger) []PackageSpec {
	deps := manifestDependencies(dir, logger)
	return append(deps, ScanImports(dir, logger)...)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
