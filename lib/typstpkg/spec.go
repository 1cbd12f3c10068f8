// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package typstpkg discovers, resolves, and fetches typst packages.
//
// A package is identified by an exact namespace/name/version triple.
// References enter the system two ways: implicitly, as quoted import
// paths in .typ source files ("@preview/cetz:0.3.2"), and explicitly,
// as dependency declarations in a package's typst.toml manifest. The
// resolver walks both edge kinds breadth-first, preferring a local
// package directory, then the on-disk cache, then a registry download.
package typstpkg

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DownloadNamespace is the only namespace served by the package
// registry. Specs in any other namespace must be present locally.
const DownloadNamespace = "preview"

// PackageSpec identifies a package by exact namespace, name, and
// version. Specs are immutable values; equality is structural, so a
// PackageSpec is usable as a map key.
type PackageSpec struct {
	Namespace string
	Name      string
	Version   string
}

// String renders the spec in import-path form: @namespace/name:version.
func (s PackageSpec) String() string {
	return fmt.Sprintf("@%s/%s:%s", s.Namespace, s.Name, s.Version)
}

// Subpath returns the spec's directory path relative to a package
// root: namespace/name/version.
func (s PackageSpec) Subpath() string {
	return filepath.Join(s.Namespace, s.Name, s.Version)
}

// Downloadable reports whether the spec's namespace is served by the
// remote registry.
func (s PackageSpec) Downloadable() bool {
	return s.Namespace == DownloadNamespace
}

// ResolvedPackage pairs a spec with the directory it was resolved to:
// the local package directory, the cache, or a fresh download. Created
// only by [Resolver.Resolve].
type ResolvedPackage struct {
	Spec PackageSpec
	Path string
}

// ParseImportPath parses a quoted import path of the form
// @namespace/name:version. It returns false for anything that is not a
// well-formed package reference — such strings are ordinary file
// imports, not errors.
func ParseImportPath(path string) (PackageSpec, bool) {
	rest, ok := strings.CutPrefix(path, "@")
	if !ok {
		return PackageSpec{}, false
	}

	namespace, nameVersion, ok := strings.Cut(rest, "/")
	if !ok {
		return PackageSpec{}, false
	}
	name, version, ok := strings.Cut(nameVersion, ":")
	if !ok {
		return PackageSpec{}, false
	}

	if !isIdentifier(namespace) || !isIdentifier(name) || !isVersion(version) {
		return PackageSpec{}, false
	}
	return PackageSpec{Namespace: namespace, Name: name, Version: version}, true
}

// parseDependency parses a manifest dependency: the package name keys
// a "namespace:version" value. Malformed declarations are skipped.
func parseDependency(name, value string) (PackageSpec, bool) {
	namespace, version, ok := strings.Cut(value, ":")
	if !ok {
		return PackageSpec{}, false
	}
	spec := PackageSpec{
		Namespace: namespace,
		Name:      name,
		Version:   version,
	}
	if !isIdentifier(spec.Namespace) || !isIdentifier(spec.Name) || !isVersion(spec.Version) {
		return PackageSpec{}, false
	}
	return spec, true
}

// isIdentifier reports whether s is a non-empty run of alphanumerics,
// hyphens, and underscores.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// isVersion reports whether s is a non-empty run of digits and dots.
func isVersion(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
