// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

package typstpkg

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/elgar328/typst-bake/lib/lockfile"
)

// DownloadError indicates that fetching a package archive from the
// registry failed: a network error or a non-success HTTP status.
type DownloadError struct {
	URL    string
	Status int // 0 when the request never got a response
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("downloading %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ExtractionError indicates a malformed or unsafe package archive.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "extracting package archive: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Downloader fetches package archives and unpacks them atomically.
// The zero value is usable; a nil Client falls back to a client with a
// sane timeout.
type Downloader struct {
	Client *http.Client
	Logger *slog.Logger
}

// defaultClient bounds a hung registry connection. There is no
// cancellation plumbing by design — a build step either finishes or
// fails; the timeout is the only backstop.
var defaultClient = &http.Client{Timeout: 5 * time.Minute}

// Fetch downloads the gzip-compressed tar archive at url and unpacks
// it at dest, publishing the directory atomically.
//
// The whole operation holds an exclusive flock on a sibling lock file,
// serializing concurrent builds racing for the same package. After the
// lock is acquired, an already-present destination means another
// process completed the same download while this one waited, and Fetch
// returns immediately — unless force is set, in which case the
// destination is re-downloaded regardless.
func (d *Downloader) Fetch(url, dest string, force bool) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating package directory %s: %w", parent, err)
	}

	lock, err := lockfile.Acquire(dest + ".lock")
	if err != nil {
		return err
	}
	defer lock.Release()

	if !force {
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			logger.Debug("package appeared while waiting for lock", "dest", dest)
			return nil
		}
	}

	client := d.Client
	if client == nil {
		client = defaultClient
	}

	response, err := client.Get(url)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		io.Copy(io.Discard, response.Body)
		return &DownloadError{URL: url, Status: response.StatusCode}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}

	return extractArchive(body, dest)
}

// extractArchive unpacks a tar.gz archive body at dest. The archive is
// unpacked into a process-unique temporary directory next to dest
// (same parent, so the final rename stays on one filesystem), then
// renamed onto dest in a single operation. No other process ever
// observes a half-extracted package.
func extractArchive(body []byte, dest string) error {
	parent := filepath.Dir(dest)
	tmpDir := filepath.Join(parent, fmt.Sprintf(".tmp_extract_%d", os.Getpid()))

	// A leftover from a crashed run with the same PID; overwrite it.
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("clearing stale temp directory %s: %w", tmpDir, err)
	}
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("creating temp directory %s: %w", tmpDir, err)
	}

	if err := untar(body, tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return &ExtractionError{Err: err}
	}

	// Refresh case: the destination may already exist.
	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("removing stale package directory %s: %w", dest, err)
	}
	if err := os.Rename(tmpDir, dest); err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("publishing package directory %s: %w", dest, err)
	}
	return nil
}

// untar unpacks a gzip-compressed tar stream into dir. Entry paths are
// validated against traversal outside dir. Only regular files and
// directories are materialized; other entry types are skipped.
func untar(body []byte, dir string) error {
	gzReader, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar stream: %w", err)
		}

		target, err := safeJoin(dir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", header.Name, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", header.Name, err)
			}
			content, err := io.ReadAll(tarReader)
			if err != nil {
				return fmt.Errorf("reading archive entry %s: %w", header.Name, err)
			}
			if err := os.WriteFile(target, content, os.FileMode(header.Mode)&0o777|0o400); err != nil {
				return fmt.Errorf("writing %s: %w", header.Name, err)
			}
		}
	}
}

// safeJoin joins name under dir, rejecting absolute paths and parent
// traversal so a hostile archive cannot write outside its package
// directory.
func safeJoin(dir, name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry escapes package directory: %s", name)
	}
	return filepath.Join(dir, cleaned), nil
}
