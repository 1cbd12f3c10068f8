// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package typstpkg

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestFetchExistingDestinationSkipsDownload(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "should not be reached", http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "preview", "cetz", "0.3.2")
	writeFile(t, filepath.Join(dest, "lib.typ"), []byte("already here"))

	downloader := &Downloader{Logger: discardLogger()}
	if err := downloader.Fetch(server.URL, dest, false); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("Fetch made %d requests for an existing destination, want 0", got)
	}
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "preview", "gone", "1.0.0")
	downloader := &Downloader{Logger: discardLogger()}

	err := downloader.Fetch(server.URL+"/preview/gone-1.0.0.tar.gz", dest, false)
	if err == nil {
		t.Fatal("Fetch succeeded on HTTP 404")
	}
	var downloadError *DownloadError
	if !errors.As(err, &downloadError) {
		t.Fatalf("error is %T, want *DownloadError", err)
	}
	if downloadError.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", downloadError.Status)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("failed download left a destination directory behind")
	}
}

func TestFetchMalformedArchiveLeavesNoPartialState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a tar.gz archive"))
	}))
	defer server.Close()

	parent := t.TempDir()
	dest := filepath.Join(parent, "0.3.2")
	downloader := &Downloader{Logger: discardLogger()}

	err := downloader.Fetch(server.URL, dest, false)
	if err == nil {
		t.Fatal("Fetch accepted a malformed archive")
	}
	var extractionError *ExtractionError
	if !errors.As(err, &extractionError) {
		t.Fatalf("error is %T, want *ExtractionError", err)
	}

	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("malformed archive produced a destination directory")
	}
	// The temp extraction directory must be cleaned up on failure.
	entries, readErr := os.ReadDir(parent)
	if readErr != nil {
		t.Fatal(readErr)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp_extract_") {
			t.Errorf("temp directory %s left behind", entry.Name())
		}
	}
}

func TestFetchRejectsPathTraversal(t *testing.T) {
	archive := makeArchive(t, map[string]string{
		"../evil.typ": "escaped the package directory",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	parent := t.TempDir()
	dest := filepath.Join(parent, "pkg", "0.1.0")
	downloader := &Downloader{Logger: discardLogger()}

	err := downloader.Fetch(server.URL, dest, false)
	if err == nil {
		t.Fatal("Fetch accepted an archive with path traversal")
	}
	if _, statErr := os.Stat(filepath.Join(parent, "evil.typ")); !os.IsNotExist(statErr) {
		t.Error("traversal entry was written outside the package directory")
	}
}

func TestFetchForceReplacesDestination(t *testing.T) {
	archive := makeArchive(t, map[string]string{"lib.typ": "fresh"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "0.3.2")
	writeFile(t, filepath.Join(dest, "lib.typ"), []byte("stale"))
	writeFile(t, filepath.Join(dest, "leftover.typ"), []byte("should disappear"))

	downloader := &Downloader{Logger: discardLogger()}
	if err := downloader.Fetch(server.URL, dest, true); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dest, "lib.typ"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "fresh" {
		t.Errorf("lib.typ = %q, want %q", content, "fresh")
	}
	// Replacement is whole-directory, not a merge.
	if _, err := os.Stat(filepath.Join(dest, "leftover.typ")); !os.IsNotExist(err) {
		t.Error("forced fetch merged into the old directory instead of replacing it")
	}
}

func TestFetchCreatesLockFile(t *testing.T) {
	archive := makeArchive(t, map[string]string{"lib.typ": "x"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "0.3.2")
	downloader := &Downloader{Logger: discardLogger()}
	if err := downloader.Fetch(server.URL, dest, false); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(dest + ".lock"); err != nil {
		t.Errorf("sibling lock file missing: %v", err)
	}
}
