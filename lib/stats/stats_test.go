// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package stats

import (
	"strings"
	"testing"
)

func sampleStats() EmbedStats {
	return EmbedStats{
		Templates: CategoryStats{OriginalSize: 1000, CompressedSize: 250, FileCount: 3},
		Fonts:     CategoryStats{OriginalSize: 4096, CompressedSize: 4000, FileCount: 1},
		Packages: PackageStats{
			Packages: []PackageInfo{
				{Name: "@preview/cetz:0.3.2", OriginalSize: 2000, CompressedSize: 500, FileCount: 10},
				{Name: "@preview/gentle-clues:1.2.0", OriginalSize: 300, CompressedSize: 150, FileCount: 2},
			},
			TotalOriginal:   2300,
			TotalCompressed: 650,
		},
		Dedup: DedupStats{TotalFiles: 16, UniqueBlobs: 14, DuplicateCount: 2, SavedBytes: 120},
	}
}

func TestTotals(t *testing.T) {
	s := sampleStats()

	if got := s.TotalOriginal(); got != 1000+4096+2300 {
		t.Errorf("TotalOriginal = %d", got)
	}
	if got := s.TotalCompressed(); got != 250+4000+650 {
		t.Errorf("TotalCompressed = %d", got)
	}
	if got := s.TotalAfterDedup(); got != 250+4000+650-120 {
		t.Errorf("TotalAfterDedup = %d", got)
	}
	if got := s.FileCount(); got != 16 {
		t.Errorf("FileCount = %d, want 16", got)
	}
}

func TestRatioZeroOriginal(t *testing.T) {
	var empty EmbedStats
	if got := empty.Ratio(); got != 0 {
		t.Errorf("Ratio of empty stats = %v, want 0", got)
	}
	if got := (CategoryStats{}).Ratio(); got != 0 {
		t.Errorf("CategoryStats zero Ratio = %v, want 0", got)
	}
}

func TestRatio(t *testing.T) {
	category := CategoryStats{OriginalSize: 1000, CompressedSize: 250}
	if got := category.Ratio(); got != 0.75 {
		t.Errorf("Ratio = %v, want 0.75", got)
	}
}

func TestReportContents(t *testing.T) {
	report := sampleStats().Report()

	for _, want := range []string{
		"Templates",
		"Fonts",
		"@preview/cetz:0.3.2",
		"@preview/gentle-clues:1.2.0",
		"Dedup: 16 files -> 14 unique blobs",
		"Total:",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestReportOmitsEmptyCategories(t *testing.T) {
	s := EmbedStats{
		Templates: CategoryStats{OriginalSize: 100, CompressedSize: 50, FileCount: 1},
	}
	report := s.Report()

	if strings.Contains(report, "Fonts") {
		t.Errorf("report mentions empty fonts category:\n%s", report)
	}
	if strings.Contains(report, "Dedup:") {
		t.Errorf("report mentions dedup with no duplicates:\n%s", report)
	}
	if !strings.Contains(report, "Templates") {
		t.Errorf("report missing templates:\n%s", report)
	}
}
