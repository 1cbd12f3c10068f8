// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// typst-bake prepares typst resources for embedding in a Go binary.
//
// It scans a template directory for package imports, resolves and
// downloads the package dependency graph from the typst registry,
// compresses every file through a content-addressed cache, and writes
// a generated Go source file holding the compressed trees as static
// data. The generated file depends only on the baked runtime package.
//
// Configuration comes from an optional YAML file (--config), overlaid
// by TYPST_* environment variables and then by command-line flags.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/elgar328/typst-bake/lib/bake"
	"github.com/elgar328/typst-bake/lib/config"
	"github.com/elgar328/typst-bake/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath       string
		templateDir      string
		fontsDir         string
		localPackageDir  string
		cacheDir         string
		compressionLevel int
		refresh          bool
		output           string
		packageName      string
		verbose          bool
	)

	flagSet := pflag.NewFlagSet("typst-bake", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&templateDir, "template-dir", "", "root template directory")
	flagSet.StringVar(&fontsDir, "fonts-dir", "", "fonts directory (only ttf/otf/ttc files are embedded)")
	flagSet.StringVar(&localPackageDir, "local-package-dir", "", "directory of local packages, searched before the cache and registry")
	flagSet.StringVar(&cacheDir, "cache-dir", "", "root cache directory for packages and compressed blobs")
	flagSet.IntVar(&compressionLevel, "compression-level", 0, "zstd compression level (1-22)")
	flagSet.BoolVar(&refresh, "refresh", false, "re-download cached packages and recompress cached blobs")
	flagSet.StringVarP(&output, "out", "o", "", "output path for the generated Go file")
	flagSet.StringVar(&packageName, "package", "", "package clause of the generated file")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		for _, argument := range os.Args[2:] {
			if argument == "--verbose" || argument == "-v" {
				fmt.Printf("typst-bake %s\n", version.Full())
				return 0
			}
		}
		fmt.Printf("typst-bake %s\n", version.Info())
		return 0
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return 0
	}
	if args := flagSet.Args(); len(args) > 0 {
		fmt.Fprintf(os.Stderr, "error: unexpected argument: %s\n", args[0])
		return 2
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	// Flags win over both the file and the environment.
	if templateDir != "" {
		cfg.TemplateDir = templateDir
	}
	if fontsDir != "" {
		cfg.FontsDir = fontsDir
	}
	if localPackageDir != "" {
		cfg.LocalPackageDir = localPackageDir
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if compressionLevel != 0 {
		cfg.CompressionLevel = compressionLevel
	}
	if refresh {
		cfg.Refresh = true
	}
	if output != "" {
		cfg.Output = output
	}
	if packageName != "" {
		cfg.PackageName = packageName
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	result, err := bake.Run(bake.Options{
		TemplateDir:         cfg.TemplateDir,
		FontsDir:            cfg.FontsDir,
		LocalPackageDir:     cfg.LocalPackageDir,
		PackageCacheDir:     cfg.PackageCacheDir(),
		CompressionCacheDir: cfg.CompressionCacheDir(),
		Level:               cfg.CompressionLevel,
		Refresh:             cfg.Refresh,
		RegistryURL:         cfg.RegistryURL,
		Logger:              logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	source, err := Generate(cfg.PackageName, result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := writeFileAtomic(cfg.Output, source); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("generated embedded assets", "path", cfg.Output, "bytes", len(source))

	fmt.Print(result.Stats.Report())
	return 0
}

// loadConfig loads the config file when one is given, otherwise the
// defaults plus environment overrides.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg := config.Default()
	if err := cfg.ApplyEnvironment(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeFileAtomic writes the generated source via a sibling temp file
// and rename, so a failed run never truncates an existing output.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.tmp_%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing %s: %w", path, err)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `typst-bake — compress typst templates, fonts, and packages into Go source.

Scans the template directory for @namespace/name:version imports,
resolves the full package graph (local directory, then cache, then the
typst registry), compresses every file with zstd through a
content-addressed cache, and writes a generated Go file with the
embedded trees.

Usage:
  typst-bake [flags]

Flags:
%s
Environment:
  %s         template directory
  %s            fonts directory
  %s        cache directory
  %s   zstd level (1-22)
  %s           force re-download and recompression
`,
		flagSet.FlagUsages(),
		config.EnvTemplateDir, config.EnvFontsDir, config.EnvCacheDir,
		config.EnvCompressionLevel, config.EnvRefresh)
}
