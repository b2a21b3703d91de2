package indexer

// The Index owns four tables that must always agree with each other:
//
//	modules  name -> winning Module
//	winners  path -> names that path currently wins
//	parsed   path -> Module last parsed from that path
//	claims   name -> paths that define it, oldest claim first
//
// Every mutation goes through install/remove on a tables value, under idx.mu.
// Per-path tickets order UpdateFile/RemoveFile for the same path; different
// paths proceed in parallel.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/extractor"
	"github.com/robert-at-pretension-io/hdlkit/internal/filelist"
	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// Index is the in-memory project symbol graph
type Index struct {
	// Root is the project directory that discovery walks
	Root string

	// Config holds discovery, analysis and cache options
	Config *config.Config

	// Progress prints per-file progress lines during RescanAll
	Progress bool

	// JSONOutput suppresses all text output. Set it whenever stdout carries
	// JSON or generated HDL.
	JSONOutput bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	fs     afero.Fs
	parser ModuleExtractor
	cache  *moduleCache

	mu     sync.RWMutex
	tables *tables

	seqMu sync.Mutex
	paths map[string]*pathState
}

// ModuleExtractor parses file contents into a Module
type ModuleExtractor interface {
	ExtractBytes(ctx context.Context, path string, data []byte) (*symbols.Module, error)
}

// Mode is the discovery strategy chosen by the last RescanAll
type Mode string

const (
	ModeGlob     Mode = "glob"
	ModeFilelist Mode = "filelist"
)

// ScanStats summarizes a RescanAll
type ScanStats struct {
	Mode      Mode          `json:"mode"`
	Filelists []string      `json:"filelists,omitempty"`
	Files     int           `json:"files"`
	Modules   int           `json:"modules"`
	NoModule  []string      `json:"no_module,omitempty"`
	CacheHits int           `json:"cache_hits"`
	Errors    []error       `json:"-"`
	Duration  time.Duration `json:"duration_ns"`
}

// Err joins the per-file failures, or returns nil
func (s ScanStats) Err() error {
	return errors.Join(s.Errors...)
}

// Outcome reports what UpdateFile or RemoveFile did
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeRemoved
	OutcomeNoModule
	OutcomeFailed
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeRemoved:
		return "removed"
	case OutcomeNoModule:
		return "no module"
	case OutcomeFailed:
		return "failed"
	case OutcomeSuperseded:
		return "superseded"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// EventKind is a file system change kind
type EventKind int

const (
	EventCreate EventKind = iota
	EventChange
	EventDelete
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventChange:
		return "change"
	case EventDelete:
		return "delete"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one file system change for the index to apply
type Event struct {
	Kind EventKind
	Path string
}

type pathState struct {
	mu     sync.Mutex
	issued atomic.Uint64
}

type tables struct {
	modules map[string]*symbols.Module
	winners map[string][]string
	parsed  map[string]*symbols.Module
	claims  map[string][]string
	mode    Mode
}

func newTables() *tables {
	return &tables{
		modules: make(map[string]*symbols.Module),
		winners: make(map[string][]string),
		parsed:  make(map[string]*symbols.Module),
		claims:  make(map[string][]string),
		mode:    ModeGlob,
	}
}

// New creates an Index over the OS filesystem
func New(root string, cfg *config.Config) *Index {
	return NewWithFs(root, cfg, afero.NewOsFs())
}

// NewWithFs creates an Index that reads through fs
func NewWithFs(root string, cfg *config.Config, fs afero.Fs) *Index {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	idx := &Index{
		Root:   root,
		Config: cfg,
		fs:     fs,
		parser: extractor.NewWithOptions(fs, extractor.Options{MaxHeaderBytes: cfg.Analysis.MaxHeaderBytes}),
		tables: newTables(),
		paths:  make(map[string]*pathState),
	}
	if cfg.CacheEnabled() {
		cache := newModuleCache(fs, resolveCacheDir(fs, root, cfg), cacheVersion(cfg))
		if err := cache.Load(); err != nil {
			slog.Warn("index.cache_disabled", "error", err)
		} else {
			idx.cache = cache
		}
	}
	return idx
}

// RescanAll discards all state, rediscovers the file set and parses it
func (idx *Index) RescanAll(ctx context.Context) (ScanStats, error) {
	runStart := time.Now()
	timing := newTimingRecorder(idx.fs, runStart, idx.resolveTimingPath())
	if err := timing.Err(); err != nil {
		slog.Warn("index.timing_disabled", "error", err)
	}
	defer timing.Close()

	stepStart := time.Now()
	files, stats, err := idx.discover()
	if err != nil {
		return stats, err
	}
	stats.Files = len(files)
	if !idx.JSONOutput {
		fmt.Printf("Found %d HDL files (%s mode)\n", len(files), stats.Mode)
	}
	timing.RecordStage("scan", stepStart, time.Since(stepStart), string(stats.Mode))

	stepStart = time.Now()
	limit := idx.Config.Analysis.MaxParallelFiles
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	progressEnabled := idx.Progress && !idx.JSONOutput
	var progressMu sync.Mutex
	progress := 0

	type parseResult struct {
		mod      *symbols.Module
		cacheHit bool
		err      error
	}
	results := make([]parseResult, len(files))

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			fileStart := time.Now()
			mod, hit, err := idx.parseFile(ctx, file)
			results[i] = parseResult{mod: mod, cacheHit: hit, err: err}

			status := "parsed"
			switch {
			case hit:
				status = "cache hit"
			case errors.Is(err, extractor.ErrNoModule):
				status = "no module"
			case err != nil:
				status = "failed"
			}
			fileDuration := time.Since(fileStart)
			timing.RecordFile("parse", file, status, fileStart, fileDuration)
			if progressEnabled {
				emitProgress(&progressMu, &progress, len(files), file, status, fileDuration)
			}
			return nil
		})
	}
	_ = g.Wait()
	timing.RecordStage("parse", stepStart, time.Since(stepStart), "")

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("rescan: %w", err)
	}

	stepStart = time.Now()
	fresh := newTables()
	fresh.mode = stats.Mode
	for i, res := range results {
		switch {
		case res.err == nil:
			fresh.install(files[i], res.mod)
			if res.cacheHit {
				stats.CacheHits++
			}
		case errors.Is(res.err, extractor.ErrNoModule):
			stats.NoModule = append(stats.NoModule, files[i])
		default:
			slog.Warn("index.parse_failed", "file", files[i], "error", res.err)
			stats.Errors = append(stats.Errors, fmt.Errorf("%s: %w", files[i], res.err))
		}
	}
	stats.Modules = len(fresh.modules)

	idx.mu.Lock()
	idx.tables = fresh
	idx.mu.Unlock()
	timing.RecordStage("link", stepStart, time.Since(stepStart), "")

	idx.saveCache()
	stats.Duration = time.Since(runStart)
	timing.RecordStage("total", runStart, stats.Duration, "")
	return stats, nil
}

// discover picks filelist mode when any filelist exists under Root
func (idx *Index) discover() ([]string, ScanStats, error) {
	stats := ScanStats{Mode: ModeGlob}
	set, err := idx.Config.Discover(idx.fs, idx.Root)
	if err != nil {
		return nil, stats, fmt.Errorf("scanning files: %w", err)
	}
	if len(set.Filelists) == 0 {
		return set.Sources, stats, nil
	}

	stats.Mode = ModeFilelist
	stats.Filelists = set.Filelists
	seen := make(map[string]bool)
	var files []string
	for _, fl := range set.Filelists {
		res, err := filelist.ResolveDetailed(idx.fs, fl)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			continue
		}
		if !idx.JSONOutput && len(res.Warnings) > 0 {
			for _, w := range res.Warnings {
				fmt.Printf("  %s: %s\n", fl, w)
			}
		}
		for _, f := range res.Files {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files, stats, nil
}

// parseFile reads and parses one file, consulting the cache when enabled
func (idx *Index) parseFile(ctx context.Context, path string) (*symbols.Module, bool, error) {
	data, err := afero.ReadFile(idx.fs, path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	var contentHash string
	if idx.cache != nil {
		contentHash = hashBytes(data)
		if mod, ok, err := idx.cache.Get(path, contentHash); err == nil && ok {
			return mod, true, nil
		} else if err != nil {
			slog.Debug("index.cache_read_failed", "file", path, "error", err)
		}
	}

	if timeout := idx.Config.ParseTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	mod, err := idx.parser.ExtractBytes(ctx, path, data)
	if err != nil {
		return nil, false, err
	}

	if idx.cache != nil {
		if err := idx.cache.Put(path, contentHash, mod); err != nil {
			slog.Debug("index.cache_write_failed", "file", path, "error", err)
		}
	}
	return mod, false, nil
}

func (idx *Index) saveCache() {
	if idx.cache == nil {
		return
	}
	if err := idx.cache.Save(); err != nil {
		slog.Warn("index.cache_save_failed", "error", err)
	}
}

// ticket issues the next sequence number for path
func (idx *Index) ticket(path string) (*pathState, uint64) {
	idx.seqMu.Lock()
	st, ok := idx.paths[path]
	if !ok {
		st = &pathState{}
		idx.paths[path] = st
	}
	idx.seqMu.Unlock()
	return st, st.issued.Add(1)
}

// UpdateFile re-parses path and swaps its Module into the index. Nothing is
// mutated when the file cannot be read or holds no module.
func (idx *Index) UpdateFile(ctx context.Context, path string) (Outcome, error) {
	st, t := idx.ticket(path)

	mod, _, err := idx.parseFile(ctx, path)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.issued.Load() != t {
		return OutcomeSuperseded, nil
	}
	if errors.Is(err, extractor.ErrNoModule) {
		slog.Debug("index.no_module", "file", path)
		return OutcomeNoModule, nil
	}
	if err != nil {
		slog.Warn("index.parse_failed", "file", path, "error", err)
		return OutcomeFailed, err
	}

	idx.mu.Lock()
	idx.tables.install(path, mod)
	idx.mu.Unlock()
	idx.saveCache()
	return OutcomeUpdated, nil
}

// RemoveFile drops every name the path defines
func (idx *Index) RemoveFile(path string) Outcome {
	st, t := idx.ticket(path)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.issued.Load() != t {
		return OutcomeSuperseded
	}

	idx.mu.Lock()
	idx.tables.remove(path)
	idx.mu.Unlock()
	if idx.cache != nil {
		idx.cache.Forget(path)
	}
	return OutcomeRemoved
}

// Apply routes a file system event to UpdateFile or RemoveFile
func (idx *Index) Apply(ctx context.Context, ev Event) (Outcome, error) {
	switch ev.Kind {
	case EventCreate, EventChange:
		return idx.UpdateFile(ctx, ev.Path)
	case EventDelete:
		return idx.RemoveFile(ev.Path), nil
	}
	return OutcomeFailed, fmt.Errorf("unknown event kind %v", ev.Kind)
}

// GetModule returns the winning Module for name. The result is shared and
// must not be modified.
func (idx *Index) GetModule(name string) (*symbols.Module, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.tables.modules[name]
	return m, ok
}

// GetAllModules returns every winning Module sorted by name
func (idx *Index) GetAllModules() []*symbols.Module {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tables.sortedModules()
}

// ModulesInFile returns the names path currently wins
func (idx *Index) ModulesInFile(path string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := append([]string(nil), idx.tables.winners[path]...)
	sort.Strings(names)
	return names
}

// Files returns every path with a parsed Module, sorted
func (idx *Index) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	files := make([]string, 0, len(idx.tables.parsed))
	for f := range idx.tables.parsed {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Mode returns the discovery mode of the last RescanAll
func (idx *Index) Mode() Mode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tables.mode
}

// Duplicates lists every name defined by more than one file
func (idx *Index) Duplicates() []symbols.Duplicate {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tables.duplicates()
}

// Snapshot returns modules and duplicates read under one lock
func (idx *Index) Snapshot() ([]*symbols.Module, []symbols.Duplicate) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tables.sortedModules(), idx.tables.duplicates()
}

// Dependents returns the modules that directly instantiate name, sorted
func (idx *Index) Dependents(name string) []string {
	graph := buildDependentsGraph(idx.GetAllModules())
	out := make([]string, 0, len(graph[name]))
	for dep := range graph[name] {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

// Impact returns the transitive instantiators of name by level
func (idx *Index) Impact(name string) ImpactReport {
	return computeImpact(name, buildDependentsGraph(idx.GetAllModules()))
}

func (t *tables) install(path string, mod *symbols.Module) {
	if mod.SourceFile != path {
		mod = mod.Clone()
		mod.SourceFile = path
	}
	old := t.parsed[path]
	t.parsed[path] = mod
	if old != nil && old.Name != mod.Name {
		t.unclaim(old.Name, path)
	}

	claimants := removeString(t.claims[mod.Name], path)
	t.claims[mod.Name] = append(claimants, path)

	if prev, ok := t.modules[mod.Name]; ok && prev.SourceFile != path {
		slog.Warn("index.duplicate_module", "module", mod.Name, "file", path, "shadowed", prev.SourceFile)
	}
	t.setWinner(mod.Name, path)
}

func (t *tables) remove(path string) {
	old, ok := t.parsed[path]
	if !ok {
		return
	}
	delete(t.parsed, path)
	t.unclaim(old.Name, path)
	delete(t.winners, path)
}

// unclaim withdraws path's claim on name, promoting the most recent surviving
// claimant when path was the winner.
func (t *tables) unclaim(name, path string) {
	claimants := removeString(t.claims[name], path)
	if len(claimants) == 0 {
		delete(t.claims, name)
	} else {
		t.claims[name] = claimants
	}

	winner, ok := t.modules[name]
	if !ok || winner.SourceFile != path {
		return
	}
	if len(claimants) == 0 {
		t.dropWinner(name)
		return
	}
	t.setWinner(name, claimants[len(claimants)-1])
}

func (t *tables) setWinner(name, path string) {
	t.dropWinner(name)
	t.modules[name] = t.parsed[path]
	t.winners[path] = append(removeString(t.winners[path], name), name)
}

func (t *tables) dropWinner(name string) {
	prev, ok := t.modules[name]
	if !ok {
		return
	}
	delete(t.modules, name)
	names := removeString(t.winners[prev.SourceFile], name)
	if len(names) == 0 {
		delete(t.winners, prev.SourceFile)
	} else {
		t.winners[prev.SourceFile] = names
	}
}

func (t *tables) sortedModules() []*symbols.Module {
	out := make([]*symbols.Module, 0, len(t.modules))
	for _, m := range t.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *tables) duplicates() []symbols.Duplicate {
	var out []symbols.Duplicate
	for name, claimants := range t.claims {
		if len(claimants) < 2 {
			continue
		}
		winner := t.modules[name].SourceFile
		var shadowed []string
		for _, c := range claimants {
			if c != winner {
				shadowed = append(shadowed, c)
			}
		}
		sort.Strings(shadowed)
		out = append(out, symbols.Duplicate{Name: name, Winner: winner, Shadowed: shadowed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.2fm", d.Minutes())
	}
}

func emitProgress(mu *sync.Mutex, progress *int, total int, file, status string, duration time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	*progress = *progress + 1
	fmt.Printf("  [%d/%d] %s (%s, %s)\n", *progress, total, file, status, formatDuration(duration))
}
