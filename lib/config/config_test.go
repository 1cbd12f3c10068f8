// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elgar328/typst-bake/lib/blobcache"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "bake.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvTemplateDir, EnvFontsDir, EnvCacheDir, EnvCompressionLevel, EnvRefresh} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.CompressionLevel != blobcache.DefaultLevel {
		t.Errorf("CompressionLevel = %d, want %d", cfg.CompressionLevel, blobcache.DefaultLevel)
	}
	if cfg.Output != "baked_assets.go" {
		t.Errorf("Output = %q", cfg.Output)
	}
	if cfg.PackageName != "main" {
		t.Errorf("PackageName = %q", cfg.PackageName)
	}
	if cfg.CacheDir != "" && !strings.HasSuffix(cfg.CacheDir, "typst-bake") {
		t.Errorf("CacheDir = %q, want a typst-bake subdirectory", cfg.CacheDir)
	}
}

func TestLoadFileResolvesRelativePaths(t *testing.T) {
	clearEnvironment(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, `
template_dir: templates
fonts_dir: /absolute/fonts
cache_dir: .cache
compression_level: 7
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if want := filepath.Join(dir, "templates"); cfg.TemplateDir != want {
		t.Errorf("TemplateDir = %q, want %q", cfg.TemplateDir, want)
	}
	// Absolute paths pass through untouched.
	if cfg.FontsDir != "/absolute/fonts" {
		t.Errorf("FontsDir = %q", cfg.FontsDir)
	}
	if want := filepath.Join(dir, ".cache"); cfg.CacheDir != want {
		t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, want)
	}
	if cfg.CompressionLevel != 7 {
		t.Errorf("CompressionLevel = %d, want 7", cfg.CompressionLevel)
	}
}

func TestLoadFileKeepsDefaultsForOmittedFields(t *testing.T) {
	clearEnvironment(t)
	path := writeConfig(t, t.TempDir(), "template_dir: /srv/templates\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CompressionLevel != blobcache.DefaultLevel {
		t.Errorf("CompressionLevel = %d, want default %d", cfg.CompressionLevel, blobcache.DefaultLevel)
	}
	if cfg.PackageName != "main" {
		t.Errorf("PackageName = %q, want main", cfg.PackageName)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnvironment(t)
	t.Setenv(EnvTemplateDir, "/env/templates")
	t.Setenv(EnvFontsDir, "/env/fonts")
	t.Setenv(EnvCacheDir, "/env/cache")
	t.Setenv(EnvCompressionLevel, "3")
	t.Setenv(EnvRefresh, "true")

	path := writeConfig(t, t.TempDir(), `
template_dir: /file/templates
compression_level: 15
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TemplateDir != "/env/templates" {
		t.Errorf("TemplateDir = %q", cfg.TemplateDir)
	}
	if cfg.FontsDir != "/env/fonts" {
		t.Errorf("FontsDir = %q", cfg.FontsDir)
	}
	if cfg.CacheDir != "/env/cache" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.CompressionLevel != 3 {
		t.Errorf("CompressionLevel = %d, want 3", cfg.CompressionLevel)
	}
	if !cfg.Refresh {
		t.Error("Refresh not applied from environment")
	}
}

func TestEnvironmentBadValues(t *testing.T) {
	clearEnvironment(t)
	path := writeConfig(t, t.TempDir(), "template_dir: /srv/templates\n")

	t.Setenv(EnvCompressionLevel, "fast")
	if _, err := LoadFile(path); err == nil {
		t.Errorf("LoadFile accepted %s=fast", EnvCompressionLevel)
	}
	os.Unsetenv(EnvCompressionLevel)

	t.Setenv(EnvRefresh, "maybe")
	if _, err := LoadFile(path); err == nil {
		t.Errorf("LoadFile accepted %s=maybe", EnvRefresh)
	}
}

func TestLoadFileMalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "template_dir: [unclosed\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile accepted malformed YAML")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile accepted a missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.TemplateDir = "/srv/templates"
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing template dir", func(c *Config) { c.TemplateDir = "" }},
		{"level too low", func(c *Config) { c.CompressionLevel = 0 }},
		{"level too high", func(c *Config) { c.CompressionLevel = 23 }},
		{"missing output", func(c *Config) { c.Output = "" }},
		{"missing package name", func(c *Config) { c.PackageName = "" }},
	}
	for _, test := range tests {
		cfg := Default()
		cfg.TemplateDir = "/srv/templates"
		test.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted the config", test.name)
		}
	}
}

func TestCacheSubdirectories(t *testing.T) {
	cfg := &Config{CacheDir: "/var/cache/typst-bake"}
	if got := cfg.PackageCacheDir(); got != "/var/cache/typst-bake/packages" {
		t.Errorf("PackageCacheDir = %q", got)
	}
	if got := cfg.CompressionCacheDir(); got != "/var/cache/typst-bake/compression" {
		t.Errorf("CompressionCacheDir = %q", got)
	}

	empty := &Config{}
	if empty.PackageCacheDir() != "" || empty.CompressionCacheDir() != "" {
		t.Error("empty CacheDir should yield empty subdirectories")
	}
}
