// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for typst-bake.
//
// Configuration is loaded from a single file passed via the --config
// flag. Relative paths in the file are resolved against the directory
// containing the file, so a project-local bake.yaml keeps working no
// matter where the tool is invoked from.
//
// A small set of environment variables overrides file values after
// loading (TYPST_TEMPLATE_DIR, TYPST_FONTS_DIR, TYPST_BAKE_CACHE_DIR,
// TYPST_BAKE_COMPRESSION_LEVEL, TYPST_BAKE_REFRESH). These exist so CI
// can retarget a build without editing files; everything else comes
// from the file or the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/elgar328/typst-bake/lib/blobcache"
)

// Environment variable overrides recognized by ApplyEnvironment.
const (
	EnvTemplateDir      = "TYPST_TEMPLATE_DIR"
	EnvFontsDir         = "TYPST_FONTS_DIR"
	EnvCacheDir         = "TYPST_BAKE_CACHE_DIR"
	EnvCompressionLevel = "TYPST_BAKE_COMPRESSION_LEVEL"
	EnvRefresh          = "TYPST_BAKE_REFRESH"
)

// Config is the full configuration for one bake run.
type Config struct {
	// TemplateDir is the root template directory. Required.
	TemplateDir string `yaml:"template_dir"`

	// FontsDir is an optional fonts directory. Only font files
	// (ttf, otf, ttc) are embedded from it.
	FontsDir string `yaml:"fonts_dir"`

	// LocalPackageDir is an optional directory of local packages,
	// searched before the cache and the registry.
	LocalPackageDir string `yaml:"local_package_dir"`

	// CacheDir is the root cache directory. Packages are cached under
	// <cache_dir>/packages and compressed blobs under
	// <cache_dir>/compression. Default: <user cache dir>/typst-bake.
	CacheDir string `yaml:"cache_dir"`

	// CompressionLevel is the zstd level. Default: blobcache.DefaultLevel.
	CompressionLevel int `yaml:"compression_level"`

	// Refresh forces re-download of cached packages and recompression
	// of cached blobs.
	Refresh bool `yaml:"refresh"`

	// Output is the path the generated Go source is written to.
	// Default: baked_assets.go in the working directory.
	Output string `yaml:"output"`

	// PackageName is the package clause of the generated file.
	// Default: main.
	PackageName string `yaml:"package_name"`

	// RegistryURL overrides the default package registry. Intended for
	// tests and mirrors.
	RegistryURL string `yaml:"registry_url"`
}

// Default returns a Config with the built-in defaults. The template
// directory has no default; it must come from the file, a flag, or the
// environment.
func Default() *Config {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "typst-bake")
	}

	return &Config{
		CacheDir:         cacheDir,
		CompressionLevel: blobcache.DefaultLevel,
		Output:           "baked_assets.go",
		PackageName:      "main",
	}
}

// LoadFile loads configuration from a YAML file, merging it over the
// defaults. Relative paths in the file are resolved against the file's
// directory. Environment overrides are applied last.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving config file directory: %w", err)
	}
	cfg.resolvePaths(base)

	if err := cfg.ApplyEnvironment(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths makes relative path fields absolute against base. The
// output path is left alone: it is relative to the invocation, not to
// the config file.
func (c *Config) resolvePaths(base string) {
	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(base, path)
	}
	c.TemplateDir = resolve(c.TemplateDir)
	c.FontsDir = resolve(c.FontsDir)
	c.LocalPackageDir = resolve(c.LocalPackageDir)
	c.CacheDir = resolve(c.CacheDir)
}

// ApplyEnvironment applies the TYPST_* environment overrides on top of
// the current values. Unset variables leave fields unchanged.
func (c *Config) ApplyEnvironment() error {
	if dir := os.Getenv(EnvTemplateDir); dir != "" {
		c.TemplateDir = dir
	}
	if dir := os.Getenv(EnvFontsDir); dir != "" {
		c.FontsDir = dir
	}
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		c.CacheDir = dir
	}
	if value := os.Getenv(EnvCompressionLevel); value != "" {
		level, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing %s=%q: %w", EnvCompressionLevel, value, err)
		}
		c.CompressionLevel = level
	}
	if value := os.Getenv(EnvRefresh); value != "" {
		refresh, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing %s=%q: %w", EnvRefresh, value, err)
		}
		c.Refresh = refresh
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TemplateDir == "" {
		return fmt.Errorf("template_dir is required (set it in the config file, via --template-dir, or via %s)", EnvTemplateDir)
	}
	if c.CompressionLevel < blobcache.MinLevel || c.CompressionLevel > blobcache.MaxLevel {
		return fmt.Errorf("compression_level %d out of range [%d, %d]",
			c.CompressionLevel, blobcache.MinLevel, blobcache.MaxLevel)
	}
	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	if c.PackageName == "" {
		return fmt.Errorf("package_name is required")
	}
	return nil
}

// PackageCacheDir returns the package cache directory under CacheDir,
// or empty when no cache directory is configured.
func (c *Config) PackageCacheDir() string {
	if c.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.CacheDir, "packages")
}

// CompressionCacheDir returns the compression cache directory under
// CacheDir, or empty when no cache directory is configured.
func (c *Config) CompressionCacheDir() string {
	if c.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.CacheDir, "compression")
}
