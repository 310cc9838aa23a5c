// Package cache derives and manages the "<footage>.d" sidecar directory
// that holds a previously-computed synchronization script plus a manifest
// recording the inputs it was computed from, so a second run against the
// same footage and slide deck can skip the tracker entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	syncFileName     = "raw.sync"
	manifestFileName = "manifest.yaml"
)

// Manifest records the inputs a cached sync script was computed from, so a
// cache hit can be invalidated when the slide deck changes even though the
// cached script still parses successfully.
type Manifest struct {
	NSlides       int    `yaml:"nslides"`
	SourceWidth   int    `yaml:"source_width"`
	SourceHeight  int    `yaml:"source_height"`
	SlideContentHash string `yaml:"slide_content_hash"`
}

// Dir returns the derived cache directory for a footage path: the footage
// path with ".d" appended, per spec.md §6.
func Dir(footagePath string) string {
	return footagePath + ".d"
}

// Manager reads and writes a footage's cache directory.
type Manager struct {
	dir string
}

// New returns a Manager for the cache directory derived from footagePath.
func New(footagePath string) *Manager {
	return &Manager{dir: Dir(footagePath)}
}

// NewWithDir returns a Manager for an explicit cache directory, overriding
// the footage-derived default (spec.md's --cache-dir flag).
func NewWithDir(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the manager's cache directory path.
func (m *Manager) Dir() string { return m.dir }

// SyncPath returns the path of the cached synchronization script.
func (m *Manager) SyncPath() string { return filepath.Join(m.dir, syncFileName) }

// ManifestPath returns the path of the cache manifest.
func (m *Manager) ManifestPath() string { return filepath.Join(m.dir, manifestFileName) }

// Exists reports whether both the cached script and its manifest are
// present on disk.
func (m *Manager) Exists() bool {
	if _, err := os.Stat(m.SyncPath()); err != nil {
		return false
	}
	if _, err := os.Stat(m.ManifestPath()); err != nil {
		return false
	}
	return true
}

// ReadManifest loads the cache manifest.
func (m *Manager) ReadManifest() (Manifest, error) {
	data, err := os.ReadFile(m.ManifestPath()) //nolint:gosec // derived path under operator control
	if err != nil {
		return Manifest{}, fmt.Errorf("cache: read manifest: %w", err)
	}
	var man Manifest
	if err := yaml.Unmarshal(data, &man); err != nil {
		return Manifest{}, fmt.Errorf("cache: parse manifest: %w", err)
	}
	return man, nil
}

// ReadSync loads the cached synchronization script's raw text.
func (m *Manager) ReadSync() (string, error) {
	data, err := os.ReadFile(m.SyncPath()) //nolint:gosec // derived path under operator control
	if err != nil {
		return "", fmt.Errorf("cache: read sync script: %w", err)
	}
	return string(data), nil
}

// Valid reports whether the cached manifest matches the slide deck
// currently on disk (slide count, source dimensions, content hash),
// supplementing the "cached but malformed" failure case with a "cached but
// stale" case the original format never modeled.
func (m *Manager) Valid(current Manifest) bool {
	cached, err := m.ReadManifest()
	if err != nil {
		return false
	}
	return cached == current
}

// Write persists the synchronization script text and its manifest,
// creating the cache directory if needed.
func (m *Manager) Write(syncText string, man Manifest) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("cache: create dir %s: %w", m.dir, err)
	}
	if err := os.WriteFile(m.SyncPath(), []byte(syncText), 0o644); err != nil { //nolint:gosec // not secret content
		return fmt.Errorf("cache: write sync script: %w", err)
	}
	data, err := yaml.Marshal(man)
	if err != nil {
		return fmt.Errorf("cache: marshal manifest: %w", err)
	}
	if err := os.WriteFile(m.ManifestPath(), data, 0o644); err != nil { //nolint:gosec // not secret content
		return fmt.Errorf("cache: write manifest: %w", err)
	}
	return nil
}

// HashSlideFiles computes a stable content hash over a slide deck
// directory by hashing every regular file's name and byte length in
// lexicographic name order. It is a cheap fingerprint, not a cryptographic
// proof of content equality, but is sufficient to detect a swapped deck.
func HashSlideFiles(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("cache: read slide dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		info, err := fs.Stat(os.DirFS(dir), name)
		if err != nil {
			return "", fmt.Errorf("cache: stat %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s:%d\n", name, info.Size())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
