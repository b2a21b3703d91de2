package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. HDLKIT_ANALYSIS_MAXPARALLELFILES
const EnvPrefix = "HDLKIT"

// FileName is the project configuration file written by `hdlkit init`
const FileName = "hdlkit.json"

// Config is the top-level configuration for hdlkit
type Config struct {
	// Discovery controls which files the index parses
	Discovery DiscoveryConfig `json:"discovery" mapstructure:"discovery"`

	// Generate holds generator defaults
	Generate GenerateConfig `json:"generate" mapstructure:"generate"`

	// Checks maps design check names to severity: "off", "info", "warning", "error"
	Checks CheckConfig `json:"checks" mapstructure:"checks"`

	// Analysis contains indexing options
	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis"`

	// Watch contains file watching options
	Watch WatchConfig `json:"watch" mapstructure:"watch"`
}

// DiscoveryConfig controls source discovery
type DiscoveryConfig struct {
	// Extensions lists the HDL suffixes that are indexed
	Extensions []string `json:"extensions" mapstructure:"extensions" validate:"min=1,dive,startswith=."`

	// FilelistPattern matches filelist base names; any match switches the
	// index to filelist mode
	FilelistPattern string `json:"filelistPattern" mapstructure:"filelistPattern" validate:"required"`

	// Include is an optional list of glob patterns (** allowed) used instead
	// of a full directory walk in glob mode
	Include []string `json:"include,omitempty" mapstructure:"include"`

	// ExcludeDirs are directory base names never descended into
	ExcludeDirs []string `json:"excludeDirs" mapstructure:"excludeDirs"`
}

// GenerateConfig holds generator defaults
type GenerateConfig struct {
	// SignalKeyword is the storage keyword used for generated declarations
	SignalKeyword string `json:"signalKeyword" mapstructure:"signalKeyword" validate:"required"`

	// Ignore lists signal names that are never declared
	Ignore []string `json:"ignore" mapstructure:"ignore"`

	// CommentColumn is the minimum column of instantiation port comments
	CommentColumn int `json:"commentColumn" mapstructure:"commentColumn" validate:"gte=0,lte=200"`

	// InstancePrefix is prepended to the module name for instance names
	InstancePrefix string `json:"instancePrefix" mapstructure:"instancePrefix"`

	// ClockPattern and ResetPattern are regular expressions used by the
	// testbench and documentation generators
	ClockPattern string `json:"clockPattern" mapstructure:"clockPattern" validate:"required"`
	ResetPattern string `json:"resetPattern" mapstructure:"resetPattern" validate:"required"`

	Testbench TestbenchConfig `json:"testbench" mapstructure:"testbench"`
}

// TestbenchConfig holds testbench template values
type TestbenchConfig struct {
	Timescale     string  `json:"timescale" mapstructure:"timescale" validate:"required"`
	ClockPeriod   float64 `json:"clockPeriod" mapstructure:"clockPeriod" validate:"gt=0"`
	ResetCycles   int     `json:"resetCycles" mapstructure:"resetCycles" validate:"gte=1"`
	TimeoutCycles int     `json:"timeoutCycles" mapstructure:"timeoutCycles" validate:"gte=1"`
}

// CheckConfig contains design check configuration
type CheckConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty" mapstructure:"rules" validate:"dive,oneof=off info warning error"`
}

// CacheConfig controls incremental indexing cache behavior
type CacheConfig struct {
	// Enabled turns on the parse cache
	Enabled *bool `json:"enabled,omitempty" mapstructure:"enabled"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty" mapstructure:"dir"`
}

// AnalysisConfig contains indexing options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file parsing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles" mapstructure:"maxParallelFiles" validate:"gte=0"`

	// ParseTimeoutMS bounds the parse of a single file
	ParseTimeoutMS int `json:"parseTimeoutMs" mapstructure:"parseTimeoutMs" validate:"gte=0"`

	// MaxHeaderBytes bounds the module header scan (0 = parser default)
	MaxHeaderBytes int `json:"maxHeaderBytes" mapstructure:"maxHeaderBytes" validate:"gte=0"`

	// Cache controls the parse cache
	Cache CacheConfig `json:"cache" mapstructure:"cache"`
}

// WatchConfig contains file watching options
type WatchConfig struct {
	// DebounceMS coalesces events for one path arriving within this window
	DebounceMS int `json:"debounceMs" mapstructure:"debounceMs" validate:"gte=0"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Extensions:      []string{".v", ".sv", ".vh", ".svh"},
			FilelistPattern: "*.f",
			ExcludeDirs:     []string{".git", "node_modules", ".hdlkit_cache"},
		},
		Generate: GenerateConfig{
			SignalKeyword:  "logic",
			Ignore:         []string{"clk", "rst_n", "rst", "clock", "reset"},
			CommentColumn:  30,
			InstancePrefix: "u_",
			ClockPattern:   `(?i)clk|clock`,
			ResetPattern:   `(?i)rst|reset`,
			Testbench: TestbenchConfig{
				Timescale:     "1ns/1ps",
				ClockPeriod:   10.0,
				ResetCycles:   10,
				TimeoutCycles: 50000,
			},
		},
		Checks: CheckConfig{
			Rules: map[string]string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0, // auto
			ParseTimeoutMS:   2000,
			Cache: CacheConfig{
				Enabled: boolPtr(false),
				Dir:     ".hdlkit_cache",
			},
		},
		Watch: WatchConfig{
			DebounceMS: 150,
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./hdlkit.json (current working directory)
//  2. ./.hdlkit.json (current working directory)
//  3. <rootPath>/hdlkit.json (if different from cwd)
//  4. ~/.config/hdlkit/config.json
//
// Environment overrides apply even when no file is found.
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, FileName),
		filepath.Join(cwd, "."+FileName),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, FileName),
				filepath.Join(rootPath, "."+FileName),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "hdlkit", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return load("")
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// register every key so AutomaticEnv can override it
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers the flattened default values with viper
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("flattening defaults: %w", err)
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]any); ok && len(child) > 0 {
				walk(key, child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if len(c.Discovery.Extensions) == 0 {
		c.Discovery.Extensions = def.Discovery.Extensions
	}
	if c.Discovery.FilelistPattern == "" {
		c.Discovery.FilelistPattern = def.Discovery.FilelistPattern
	}
	if c.Generate.SignalKeyword == "" {
		c.Generate.SignalKeyword = def.Generate.SignalKeyword
	}
	if c.Generate.Ignore == nil {
		c.Generate.Ignore = def.Generate.Ignore
	}
	if c.Generate.ClockPattern == "" {
		c.Generate.ClockPattern = def.Generate.ClockPattern
	}
	if c.Generate.ResetPattern == "" {
		c.Generate.ResetPattern = def.Generate.ResetPattern
	}
	if c.Generate.Testbench.Timescale == "" {
		c.Generate.Testbench.Timescale = def.Generate.Testbench.Timescale
	}
	if c.Checks.Rules == nil {
		c.Checks.Rules = make(map[string]string)
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = def.Analysis.Cache.Dir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(false)
	}
}

var validate = validator.New()

// Validate checks field constraints declared in struct tags
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validating config: %w", err)
	}
	var msgs []string
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: rule '%s' (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Checks.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Checks.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// ParseTimeout returns the per-file parse bound, or 0 for none
func (c *Config) ParseTimeout() time.Duration {
	return time.Duration(c.Analysis.ParseTimeoutMS) * time.Millisecond
}

// Debounce returns the watch coalescing window
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// CacheEnabled reports whether the parse cache is on
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled != nil && *c.Analysis.Cache.Enabled
}
