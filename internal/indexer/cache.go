package indexer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

const cacheIndexVersion = 1

type cacheEntry struct {
	ContentHash      string `json:"content_hash"`
	ModulePath       string `json:"module_path"`
	ExtractorVersion string `json:"extractor_version"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// moduleCache maps a file's content hash to its last parsed Module
type moduleCache struct {
	fs               afero.Fs
	dir              string
	extractorVersion string
	mu               sync.Mutex
	index            cacheIndex
}

func newModuleCache(fs afero.Fs, dir, extractorVersion string) *moduleCache {
	return &moduleCache{
		fs:               fs,
		dir:              dir,
		extractorVersion: extractorVersion,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *moduleCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *moduleCache) modulePathForFile(filePath string) string {
	return filepath.Join(c.dir, "modules", hashBytes([]byte(filePath))+".json")
}

func (c *moduleCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := afero.ReadFile(c.fs, c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *moduleCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.fs, c.indexPath(), c.index)
}

func (c *moduleCache) Get(filePath, contentHash string) (*symbols.Module, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[filePath]
	c.mu.Unlock()
	if !ok || entry.ContentHash != contentHash || entry.ExtractorVersion != c.extractorVersion {
		return nil, false, nil
	}

	data, err := afero.ReadFile(c.fs, entry.ModulePath)
	if err != nil {
		return nil, false, fmt.Errorf("read cached module: %w", err)
	}
	var mod symbols.Module
	if err := json.Unmarshal(data, &mod); err != nil {
		return nil, false, fmt.Errorf("parse cached module: %w", err)
	}
	return &mod, true, nil
}

func (c *moduleCache) Put(filePath, contentHash string, mod *symbols.Module) error {
	modulePath := c.modulePathForFile(filePath)
	if err := writeJSONAtomic(c.fs, modulePath, mod); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[filePath] = cacheEntry{
		ContentHash:      contentHash,
		ModulePath:       modulePath,
		ExtractorVersion: c.extractorVersion,
	}
	c.mu.Unlock()
	return nil
}

func (c *moduleCache) Forget(filePath string) {
	c.mu.Lock()
	delete(c.index.Entries, filePath)
	c.mu.Unlock()
}

func writeJSONAtomic(fs afero.Fs, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := fs.Rename(tmp.Name(), path); err != nil {
		_ = fs.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func hashBytes(data []byte) string {
	h := xxh3.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
