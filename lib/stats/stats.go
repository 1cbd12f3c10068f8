// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package stats holds the size and deduplication statistics produced
// by one embedding run. All types here are pure derived data: computed
// once by the pipeline, never mutated, exposed read-only for
// diagnostics.
package stats

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// CategoryStats aggregates one category of embedded files (templates
// or fonts).
type CategoryStats struct {
	OriginalSize   int64
	CompressedSize int64
	FileCount      int
}

// Ratio returns the compression reduction for this category:
// 1 - compressed/original, or 0 when nothing was embedded.
func (s CategoryStats) Ratio() float64 {
	return ratio(s.OriginalSize, s.CompressedSize)
}

// PackageInfo aggregates one embedded package.
type PackageInfo struct {
	// Name is the package in import-path form, e.g. "@preview/cetz:0.3.2".
	Name           string
	OriginalSize   int64
	CompressedSize int64
	FileCount      int
}

// Ratio returns the compression reduction for this package.
func (p PackageInfo) Ratio() float64 {
	return ratio(p.OriginalSize, p.CompressedSize)
}

// PackageStats aggregates all embedded packages.
type PackageStats struct {
	Packages        []PackageInfo
	TotalOriginal   int64
	TotalCompressed int64
}

// Ratio returns the compression reduction across all packages.
func (s PackageStats) Ratio() float64 {
	return ratio(s.TotalOriginal, s.TotalCompressed)
}

// DedupStats summarizes content deduplication across the whole run.
type DedupStats struct {
	// TotalFiles is the number of files fed through the cache.
	TotalFiles int

	// UniqueBlobs is the number of distinct content hashes stored.
	UniqueBlobs int

	// DuplicateCount is TotalFiles minus UniqueBlobs: references
	// satisfied by an existing blob.
	DuplicateCount int

	// SavedBytes is the compressed bytes deduplication kept out of
	// the build artifact.
	SavedBytes int64
}

// EmbedStats combines per-category, per-package, and dedup statistics
// for one pipeline run.
type EmbedStats struct {
	Templates CategoryStats
	Fonts     CategoryStats
	Packages  PackageStats
	Dedup     DedupStats
}

// TotalOriginal returns the uncompressed size across all categories.
func (s EmbedStats) TotalOriginal() int64 {
	return s.Templates.OriginalSize + s.Fonts.OriginalSize + s.Packages.TotalOriginal
}

// TotalCompressed returns the compressed size across all categories,
// counting every file reference (duplicates included).
func (s EmbedStats) TotalCompressed() int64 {
	return s.Templates.CompressedSize + s.Fonts.CompressedSize + s.Packages.TotalCompressed
}

// TotalAfterDedup returns the compressed size actually stored once
// duplicate content collapses to single blobs.
func (s EmbedStats) TotalAfterDedup() int64 {
	return s.TotalCompressed() - s.Dedup.SavedBytes
}

// Ratio returns the overall compression reduction, 0 when nothing was
// embedded.
func (s EmbedStats) Ratio() float64 {
	return ratio(s.TotalOriginal(), s.TotalCompressed())
}

// FileCount returns the total number of embedded file references.
func (s EmbedStats) FileCount() int {
	count := s.Templates.FileCount + s.Fonts.FileCount
	for _, pkg := range s.Packages.Packages {
		count += pkg.FileCount
	}
	return count
}

// Report renders a human-readable table of the statistics, suitable
// for build logs. Empty categories are omitted.
func (s EmbedStats) Report() string {
	var b strings.Builder
	b.WriteString("Compression statistics\n")
	b.WriteString("======================\n")

	table := tabwriter.NewWriter(&b, 2, 0, 2, ' ', 0)

	if s.Templates.FileCount > 0 {
		fmt.Fprintf(table, "Templates\t%s\t->\t%s\t(%5.1f%% reduced, %d files)\n",
			size(s.Templates.OriginalSize), size(s.Templates.CompressedSize),
			s.Templates.Ratio()*100, s.Templates.FileCount)
	}
	if s.Fonts.FileCount > 0 {
		fmt.Fprintf(table, "Fonts\t%s\t->\t%s\t(%5.1f%% reduced, %d files)\n",
			size(s.Fonts.OriginalSize), size(s.Fonts.CompressedSize),
			s.Fonts.Ratio()*100, s.Fonts.FileCount)
	}
	for _, pkg := range s.Packages.Packages {
		fmt.Fprintf(table, "  %s\t%s\t->\t%s\t(%5.1f%% reduced, %d files)\n",
			pkg.Name, size(pkg.OriginalSize), size(pkg.CompressedSize),
			pkg.Ratio()*100, pkg.FileCount)
	}
	table.Flush()

	if s.Dedup.DuplicateCount > 0 {
		fmt.Fprintf(&b, "Dedup: %d files -> %d unique blobs (%d duplicates, %s saved)\n",
			s.Dedup.TotalFiles, s.Dedup.UniqueBlobs,
			s.Dedup.DuplicateCount, size(s.Dedup.SavedBytes))
	}

	b.WriteString("----------------------\n")
	fmt.Fprintf(&b, "Total: %s -> %s (%.1f%% reduced, %s after dedup)\n",
		size(s.TotalOriginal()), size(s.TotalCompressed()),
		s.Ratio()*100, size(s.TotalAfterDedup()))
	return b.String()
}

func ratio(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	return 1 - float64(compressed)/float64(original)
}

func size(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
