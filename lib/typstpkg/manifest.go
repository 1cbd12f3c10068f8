// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package typstpkg

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// manifestName is the package manifest file at a package's root.
const manifestName = "typst.toml"

// manifest models the subset of typst.toml this package reads:
// explicit dependency declarations keyed by package name, with
// "namespace:version" values.
type manifest struct {
	Package struct {
		Dependencies map[string]string `toml:"dependencies"`
	} `toml:"package"`
}

// manifestDependencies returns the explicit dependencies declared in
// dir's manifest, sorted for deterministic traversal. A missing or
// malformed manifest contributes no dependencies — manifests are
// optional and scanning their absence is not an error.
func manifestDependencies(dir string, logger *slog.Logger) []PackageSpec {
	if logger == nil {
		logger = slog.Default()
	}

	content, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil
	}

	var parsed manifest
	if err := toml.Unmarshal(content, &parsed); err != nil {
		logger.Warn("skipping malformed package manifest", "dir", dir, "error", err)
		return nil
	}

	var specs []PackageSpec
	for name, value := range parsed.Package.Dependencies {
		spec, ok := parseDependency(name, value)
		if !ok {
			logger.Warn("skipping malformed dependency declaration",
				"dir", dir, "name", name, "value", value)
			continue
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].String() < specs[j].String()
	})
	return specs
}
