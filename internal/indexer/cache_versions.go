package indexer

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/extractor"
)

func resolveCacheDir(fs afero.Fs, rootPath string, cfg *config.Config) string {
	baseDir := rootPath
	if info, err := fs.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	cacheDir := cfg.Analysis.Cache.Dir
	if cacheDir == "" {
		cacheDir = ".hdlkit_cache"
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(baseDir, cacheDir)
	}
	return cacheDir
}

// cacheVersion changes whenever a cached Module could differ from a fresh
// parse of the same bytes.
func cacheVersion(cfg *config.Config) string {
	limit := cfg.Analysis.MaxHeaderBytes
	if limit <= 0 {
		limit = extractor.DefaultMaxHeaderBytes
	}
	return fmt.Sprintf("%s/h%d", extractor.Version, limit)
}
