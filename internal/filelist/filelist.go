package filelist

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Extensions are the recognized HDL source and header suffixes
var Extensions = []string{".v", ".sv", ".vh", ".svh"}

// IsHDLFile reports whether path has one of the recognized extensions
func IsHDLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Warning is a skipped filelist line worth reporting
type Warning struct {
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s (%s)", w.Line, w.Message, w.Text)
}

// Result is the outcome of resolving one filelist
type Result struct {
	Files    []string  `json:"files"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Resolve returns the existing HDL files listed in a filelist, in first-seen
// order without duplicates.
func Resolve(fs afero.Fs, path string) ([]string, error) {
	res, err := ResolveDetailed(fs, path)
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// ResolveDetailed is Resolve that also reports skipped lines
func ResolveDetailed(fs afero.Fs, path string) (Result, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Result{}, fmt.Errorf("read filelist: %w", err)
	}

	baseDir := filepath.Dir(path)
	res := Result{Files: []string{}}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		entry, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if strings.Contains(entry, "$") {
			w := Warning{Line: lineNo, Text: entry, Message: "environment variables are not expanded"}
			res.Warnings = append(res.Warnings, w)
			slog.Warn("filelist.unresolved_variable", "filelist", path, "line", lineNo, "entry", entry)
			continue
		}

		resolved := entry
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, resolved)
		}
		resolved = filepath.Clean(resolved)

		if seen[resolved] || !IsHDLFile(resolved) {
			continue
		}
		info, err := fs.Stat(resolved)
		if err != nil || info.IsDir() {
			slog.Debug("filelist.missing_file", "filelist", path, "line", lineNo, "path", resolved)
			continue
		}
		seen[resolved] = true
		res.Files = append(res.Files, resolved)
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan filelist: %w", err)
	}
	return res, nil
}

// parseLine returns the path entry on a line, or false for blank lines,
// comments and tool flags.
func parseLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "*") {
		return "", false
	}
	if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
		return "", false
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return "", false
	}
	return line, true
}
