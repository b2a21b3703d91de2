package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/indexer"
	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

type globalOptions struct {
	root       string
	configPath string
	verbose    bool
	json       bool
}

var (
	colorSecondary = lipgloss.Color("241")
	colorSuccess   = lipgloss.Color("42")
	colorError     = lipgloss.Color("160")
	colorWarning   = lipgloss.Color("214")
	colorInfo      = lipgloss.Color("75")

	styleSubtle  = lipgloss.NewStyle().Foreground(colorSecondary)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleInfo    = lipgloss.NewStyle().Foreground(colorInfo)
	styleTitle   = lipgloss.NewStyle().Bold(true)
)

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (o *globalOptions) absRoot() (string, error) {
	root, err := filepath.Abs(o.root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	return root, nil
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		cfg, err := config.LoadFile(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", o.configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(o.root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openIndex loads config and runs a full scan. quiet suppresses the scan
// summary for commands whose stdout is generated text.
func (o *globalOptions) openIndex(cmd *cobra.Command, quiet bool) (*indexer.Index, indexer.ScanStats, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, indexer.ScanStats{}, err
	}
	root, err := o.absRoot()
	if err != nil {
		return nil, indexer.ScanStats{}, err
	}

	idx := indexer.New(root, cfg)
	idx.JSONOutput = quiet || o.json
	stats, err := idx.RescanAll(cmd.Context())
	if err != nil {
		return nil, stats, err
	}
	for _, e := range stats.Errors {
		slog.Warn("index.file_error", "error", e)
	}
	slog.Debug("index.ready", "mode", stats.Mode, "files", stats.Files, "modules", stats.Modules, "duration", stats.Duration)
	return idx, stats, nil
}

func requireModule(idx *indexer.Index, name string) (*symbols.Module, error) {
	if m, ok := idx.GetModule(name); ok {
		return m, nil
	}
	if hint := suggest(idx, name); hint != "" {
		return nil, fmt.Errorf("module %q not found (did you mean %s?)", name, hint)
	}
	return nil, fmt.Errorf("module %q not found", name)
}

// suggest returns up to three indexed names sharing a case-insensitive
// substring with name
func suggest(idx *indexer.Index, name string) string {
	needle := strings.ToLower(name)
	var hits []string
	for _, m := range idx.GetAllModules() {
		candidate := strings.ToLower(m.Name)
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			hits = append(hits, m.Name)
		}
	}
	sort.Strings(hits)
	if len(hits) > 3 {
		hits = hits[:3]
	}
	return strings.Join(hits, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
