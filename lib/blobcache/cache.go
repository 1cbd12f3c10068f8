// Copyright 2026 The typst-bake Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobcache provides a content-addressed compression cache.
//
// Input bytes are hashed with BLAKE3 and compressed with zstd. Identical
// content seen during one run is deduplicated in memory: the second and
// later occurrences return the already-compressed blob without touching
// disk. Across runs, compressed results are cached on disk keyed by
// (content hash, compression level), so unchanged files are never
// recompressed. Disk writes are published atomically (temp file plus
// rename) so a concurrent reader never observes a partial cache entry.
package blobcache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Compression level bounds. Levels are the zstd scale; values outside
// the range are clamped by New.
const (
	MinLevel     = 1
	MaxLevel     = 22
	DefaultLevel = 19
)

// cacheExt marks on-disk cache entries. Cleanup only ever deletes files
// with this extension, so lock files and foreign files in the cache
// directory are left alone.
const cacheExt = ".zst"

// Blob is a compressed, content-addressed unit. Blobs are created only
// by [Cache.Compress] and never mutated; multiple files with identical
// content share one Blob.
type Blob struct {
	// Hash is the BLAKE3 digest of the uncompressed content.
	Hash Hash

	// Compressed is the zstd-compressed content.
	Compressed []byte

	// OriginalSize is the uncompressed content length in bytes.
	OriginalSize int64
}

// HexHash returns the hex form of the blob's content hash.
func (b *Blob) HexHash() string {
	return FormatHash(b.Hash)
}

// Stats summarizes cache behavior over one run.
type Stats struct {
	// Hits counts disk-cache reads that avoided recompression.
	Hits int

	// Misses counts fresh compressions (content not on disk, or
	// caching disabled).
	Misses int

	// DedupHits counts lookups satisfied from the in-memory table
	// because identical content was already processed this run.
	DedupHits int

	// UniqueBlobs is the number of distinct content hashes seen.
	UniqueBlobs int

	// SavedBytes is the compressed bytes that deduplication avoided
	// storing again.
	SavedBytes int64
}

// TotalFiles returns the number of Compress calls the stats cover.
func (s Stats) TotalFiles() int {
	return s.Hits + s.Misses + s.DedupHits
}

// Cache deduplicates and compresses content, optionally persisting
// compressed results to a disk directory. A Cache is confined to one
// pipeline invocation and is not safe for concurrent use; cross-process
// safety on the shared disk directory comes from atomic publication.
type Cache struct {
	dir     string // empty means caching disabled
	level   int
	refresh bool
	encoder *zstd.Encoder

	blobs map[Hash]*Blob
	used  map[string]struct{}

	hits       int
	misses     int
	dedupHits  int
	savedBytes int64
}

// New creates a Cache writing disk entries under dir at the given zstd
// level. An empty dir disables disk caching: every miss recompresses
// and Cleanup is a no-op. The level is clamped to [MinLevel, MaxLevel].
func New(dir string, level int) (*Cache, error) {
	if level < MinLevel {
		level = MinLevel
	}
	if level > MaxLevel {
		level = MaxLevel
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating compression cache directory %s: %w", dir, err)
		}
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("initializing zstd encoder at level %d: %w", level, err)
	}

	return &Cache{
		dir:     dir,
		level:   level,
		encoder: encoder,
		blobs:   make(map[Hash]*Blob),
		used:    make(map[string]struct{}),
	}, nil
}

// SetRefresh makes subsequent lookups skip the disk cache read,
// forcing recompression even for content cached by earlier runs.
// Fresh results are still persisted, so the cache ends up rebuilt
// rather than bypassed. In-memory deduplication is unaffected.
func (c *Cache) SetRefresh(refresh bool) {
	c.refresh = refresh
}

// Level returns the effective (clamped) compression level.
func (c *Cache) Level() int {
	return c.level
}

// Compress returns the blob for data, deduplicating identical content
// within this run and consulting the disk cache across runs. The result
// is a pure function of the content bytes and the level: file identity
// and path play no part.
func (c *Cache) Compress(data []byte) (*Blob, error) {
	hash := HashBytes(data)
	filename := c.entryName(hash)

	if c.dir != "" {
		// Mark the entry as referenced by this run even when the
		// lookup is satisfied in memory, so Cleanup keeps it.
		c.used[filename] = struct{}{}
	}

	if blob, ok := c.blobs[hash]; ok {
		c.dedupHits++
		c.savedBytes += int64(len(blob.Compressed))
		return blob, nil
	}

	blob := &Blob{Hash: hash, OriginalSize: int64(len(data))}

	if c.dir != "" && !c.refresh {
		path := filepath.Join(c.dir, filename)
		if cached, err := os.ReadFile(path); err == nil {
			c.hits++
			blob.Compressed = cached
			c.blobs[hash] = blob
			return blob, nil
		}
	}

	c.misses++
	blob.Compressed = c.encoder.EncodeAll(data, nil)

	if c.dir != "" {
		if err := c.persist(filename, blob.Compressed); err != nil {
			return nil, err
		}
	}

	c.blobs[hash] = blob
	return blob, nil
}

// persist publishes a cache entry atomically: write to a process-unique
// temp file in the cache directory, then rename onto the final name.
// A concurrent reader of the final path never sees partial bytes.
func (c *Cache) persist(filename string, compressed []byte) error {
	tmpPath := filepath.Join(c.dir, fmt.Sprintf(".tmp_%d", os.Getpid()))
	if err := os.WriteFile(tmpPath, compressed, 0o644); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", filename, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(c.dir, filename)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing cache entry %s: %w", filename, err)
	}
	return nil
}

// Cleanup deletes disk entries that were not referenced during this
// run, bounding cache growth when template or package content churns.
// A no-op when caching is disabled.
func (c *Cache) Cleanup() error {
	if c.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("listing compression cache directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, cacheExt) {
			continue
		}
		if _, ok := c.used[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			return fmt.Errorf("evicting stale cache entry %s: %w", name, err)
		}
	}
	return nil
}

// Stats returns the hit/miss/dedup counters accumulated so far.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		DedupHits:   c.dedupHits,
		UniqueBlobs: len(c.blobs),
		SavedBytes:  c.savedBytes,
	}
}

// LogSummary logs a one-line compression summary.
func (c *Cache) LogSummary(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	stats := c.Stats()
	if c.dir == "" {
		logger.Info("compression finished (cache disabled)",
			"level", c.level,
			"files", stats.TotalFiles(),
			"dedup_hits", stats.DedupHits)
		return
	}
	logger.Info("compression finished",
		"level", c.level,
		"files", stats.TotalFiles(),
		"cached", stats.Hits,
		"compressed", stats.Misses,
		"dedup_hits", stats.DedupHits)
}

// entryName returns the disk filename for a content hash at the cache's
// level. The level is part of the key: the same content cached at two
// levels yields two entries.
func (c *Cache) entryName(hash Hash) string {
	return fmt.Sprintf("%s_%d%s", FormatHash(hash), c.level, cacheExt)
}
