package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// SourceSet is the result of walking a project for discovery
type SourceSet struct {
	// Sources are files with a recognized HDL extension
	Sources []string
	// Filelists are files whose base name matches FilelistPattern
	Filelists []string
}

// IsSource reports whether path has a configured HDL extension
func (c *Config) IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Discovery.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// IsFilelist reports whether the base name of path matches FilelistPattern
func (c *Config) IsFilelist(path string) bool {
	matched, _ := filepath.Match(c.Discovery.FilelistPattern, filepath.Base(path))
	return matched
}

// IsExcludedDir reports whether a directory should not be descended into
func (c *Config) IsExcludedDir(path string) bool {
	base := filepath.Base(path)
	for _, d := range c.Discovery.ExcludeDirs {
		if base == d {
			return true
		}
	}
	return false
}

// Discover walks rootPath once and returns sources and filelists, sorted.
// When Include patterns are configured they replace the walk for sources.
func (c *Config) Discover(fs afero.Fs, rootPath string) (SourceSet, error) {
	var set SourceSet
	err := afero.Walk(fs, rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if info.IsDir() {
			if path != rootPath && c.IsExcludedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.IsFilelist(path) {
			set.Filelists = append(set.Filelists, path)
		}
		if len(c.Discovery.Include) == 0 && c.IsSource(path) {
			set.Sources = append(set.Sources, path)
		}
		return nil
	})
	if err != nil {
		return set, err
	}

	if len(c.Discovery.Include) > 0 {
		fileSet := make(map[string]bool)
		for _, pattern := range c.Discovery.Include {
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(rootPath, pattern)
			}
			matches, err := expandGlob(fs, pattern)
			if err != nil {
				// Silently skip invalid patterns
				continue
			}
			for _, match := range matches {
				if c.IsSource(match) && !fileSet[match] {
					fileSet[match] = true
					set.Sources = append(set.Sources, match)
				}
			}
		}
	}

	sort.Strings(set.Sources)
	sort.Strings(set.Filelists)
	return set, nil
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(fs afero.Fs, pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(fs, pattern)
	}
	return afero.Glob(fs, pattern)
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree
func expandDoubleStarGlob(fs afero.Fs, pattern string) ([]string, error) {
	var results []string

	parts := strings.SplitN(pattern, "**", 2)
	if len(parts) != 2 {
		return afero.Glob(fs, pattern)
	}

	baseDir := filepath.Clean(parts[0])
	if baseDir == "" {
		baseDir = "."
	}
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	err := afero.Walk(fs, baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}
		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(relPath, suffix) {
			results = append(results, path)
		}
		return nil
	})

	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	// If pattern has no directory component, match against filename
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	matched, _ := filepath.Match(pattern, path)
	if matched {
		return true
	}

	// Also try matching the trailing path components
	segs := strings.Count(pattern, string(filepath.Separator)) + 1
	parts := strings.Split(path, string(filepath.Separator))
	if len(parts) > segs {
		tail := filepath.Join(parts[len(parts)-segs:]...)
		matched, _ = filepath.Match(pattern, tail)
		return matched
	}

	return false
}
