package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 2*time.Second, cfg.ParseTimeout())
	assert.False(t, cfg.CacheEnabled())
}

func TestLoadFileMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	data := `{
  "generate": {"signalKeyword": "wire", "commentColumn": 40},
  "checks": {"rules": {"black_box_instance": "off", "duplicate_module": "error"}},
  "analysis": {"cache": {"enabled": true}}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wire", cfg.Generate.SignalKeyword)
	assert.Equal(t, 40, cfg.Generate.CommentColumn)
	assert.Equal(t, "u_", cfg.Generate.InstancePrefix)
	assert.Equal(t, "1ns/1ps", cfg.Generate.Testbench.Timescale)
	assert.Equal(t, []string{".v", ".sv", ".vh", ".svh"}, cfg.Discovery.Extensions)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, ".hdlkit_cache", cfg.Analysis.Cache.Dir)

	assert.False(t, cfg.IsRuleEnabled("black_box_instance"))
	assert.True(t, cfg.IsRuleEnabled("empty_port_list"))
	assert.Equal(t, "error", cfg.GetRuleSeverity("duplicate_module", "warning"))
	assert.Equal(t, "info", cfg.GetRuleSeverity("empty_port_list", "info"))
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"watch": {"debounceMs": 300}}`), 0o644))

	t.Setenv("HDLKIT_WATCH_DEBOUNCEMS", "75")
	t.Setenv("HDLKIT_ANALYSIS_MAXPARALLELFILES", "3")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 75*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 3, cfg.Analysis.MaxParallelFiles)
}

func TestLoadFileRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"checks": {"rules": {"duplicate_module": "fatal"}}}`), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "oneof")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Generate.Ignore = []string{"clk_i"}
	cfg.Checks.Rules["self_instantiation"] = "warning"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"clk_i"}, loaded.Generate.Ignore)
	assert.Equal(t, "warning", loaded.GetRuleSeverity("self_instantiation", "error"))
	assert.Equal(t, cfg.Watch, loaded.Watch)
}
