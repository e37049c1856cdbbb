// Package catalog resolves and inventories the notification sound library.
package catalog

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// wavHeaderLen is the number of bytes needed for the RIFF/WAVE check.
const wavHeaderLen = 12

// Entry describes one WAV file found under the sound directory.
type Entry struct {
	Name  string   `json:"name"`  // Path relative to the sound directory
	Path  string   `json:"path"`  // Absolute path
	Valid bool     `json:"valid"` // Passed the RIFF/WAVE verification
	Size  int64    `json:"size"`
	Info  *WavInfo `json:"info,omitempty"` // Probed metadata, nil when invalid
}

// Catalog resolves user-supplied sound specs to verified WAV files and
// scans the sound directory.
type Catalog struct {
	mu     sync.RWMutex
	logger *slog.Logger

	dir        string
	predefined map[string]string

	// Name (file stem) -> path cache, refreshed by Scan.
	cache map[string]string

	// Invoked after every successful Scan with the fresh cache.
	onUpdate func(map[string]string)
}

// New creates a Catalog over the given sound directory.
// predefined maps sound names to absolute paths and takes precedence over
// path construction during Resolve.
func New(dir string, predefined map[string]string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if predefined == nil {
		predefined = make(map[string]string)
	}
	return &Catalog{
		logger:     logger,
		dir:        dir,
		predefined: predefined,
		cache:      make(map[string]string),
	}
}

// Dir returns the sound directory root.
func (c *Catalog) Dir() string {
	return c.dir
}

// SetUpdateCallback sets the callback invoked after every successful Scan.
func (c *Catalog) SetUpdateCallback(fn func(map[string]string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Resolve maps a sound spec to a verified WAV file path.
// Lookup order: predefined name table, then <dir>/<spec>, then
// <dir>/<spec>.wav. Every candidate must pass verification.
func (c *Catalog) Resolve(spec string) (string, error) {
	if spec == "" {
		return "", fmt.Errorf("no sound specified")
	}

	if path, ok := c.predefined[spec]; ok {
		if !c.Verify(path) {
			return "", fmt.Errorf("predefined sound %q is not accessible: %s", spec, path)
		}
		return path, nil
	}

	candidates := []string{filepath.Join(c.dir, spec)}
	if !strings.HasSuffix(spec, ".wav") {
		candidates = append(candidates, filepath.Join(c.dir, spec+".wav"))
	}

	for _, path := range candidates {
		if c.Verify(path) {
			return path, nil
		}
	}

	c.logger.Warn("no valid sound file found", "spec", spec)
	return "", fmt.Errorf("could not find sound %q: neither a predefined sound nor a valid WAV file", spec)
}

// Verify reports whether path is a regular readable file with a RIFF/WAVE
// header (bytes 0-3 "RIFF", bytes 8-11 "WAVE").
func (c *Catalog) Verify(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, wavHeaderLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE"))
}

// List returns every *.wav file under the sound directory, recursively,
// sorted lexicographically by relative name. A missing directory yields an
// empty listing and a warning, not an error.
func (c *Catalog) List() ([]Entry, error) {
	if _, err := os.Stat(c.dir); err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn("sound directory not found", "dir", c.dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat sound directory: %w", err)
	}

	var entries []Entry
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".wav") {
			return nil
		}

		rel, relErr := filepath.Rel(c.dir, path)
		if relErr != nil {
			rel = d.Name()
		}

		entry := Entry{
			Name:  rel,
			Path:  path,
			Valid: c.Verify(path),
		}
		if info, infoErr := d.Info(); infoErr == nil {
			entry.Size = info.Size()
		}
		if entry.Valid {
			if wavInfo, probeErr := Probe(path); probeErr == nil {
				entry.Info = wavInfo
			} else {
				c.logger.Debug("failed to probe wav file", "path", path, "error", probeErr)
			}
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sound directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Scan refreshes the name -> path cache from the directory listing and fires
// the update callback. Only verified files enter the cache, keyed by file
// stem.
func (c *Catalog) Scan() (map[string]string, error) {
	entries, err := c.List()
	if err != nil {
		return nil, err
	}

	sounds := make(map[string]string)
	for _, e := range entries {
		if !e.Valid {
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(e.Name), filepath.Ext(e.Name))
		sounds[stem] = e.Path
	}

	c.mu.Lock()
	c.cache = sounds
	fn := c.onUpdate
	c.mu.Unlock()

	if fn != nil {
		fn(sounds)
	}

	c.logger.Debug("sound directory scanned", "dir", c.dir, "count", len(sounds))
	return sounds, nil
}

// Cached returns a copy of the last scanned name -> path cache.
func (c *Catalog) Cached() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.cache))
	for k, v := range c.cache {
		out[k] = v
	}
	return out
}

// Predefined returns the predefined name -> path table.
func (c *Catalog) Predefined() map[string]string {
	out := make(map[string]string, len(c.predefined))
	for k, v := range c.predefined {
		out[k] = v
	}
	return out
}
