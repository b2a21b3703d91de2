package filelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFiltersCommentsAndExtensions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.sv", "b.sv", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("module x; endmodule"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	list := filepath.Join(dir, "files.f")
	if err := os.WriteFile(list, []byte("a.sv\n// b.sv\nc.txt\n"), 0o644); err != nil {
		t.Fatalf("write filelist: %v", err)
	}

	files, err := Resolve(afero.NewOsFs(), list)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.sv")}, files)
}

func TestResolveRules(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{
		"/proj/rtl/top.sv",
		"/proj/rtl/sub.v",
		"/proj/rtl/defs.svh",
		"/proj/rtl/UPPER.V",
		"/abs/ip.vh",
	} {
		require.NoError(t, afero.WriteFile(fs, p, []byte(""), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/proj/rtl/dir.sv", 0o755))

	content := `
# hash comment
* star comment
+incdir+rtl
-v lib.v
-f nested.f
rtl/top.sv   // trailing comment
rtl/sub.v
rtl/top.sv
./rtl/../rtl/sub.v
$PROJ/rtl/env.sv
rtl/missing.sv
rtl/defs.svh
rtl/UPPER.V
rtl/dir.sv
/abs/ip.vh
`
	require.NoError(t, afero.WriteFile(fs, "/proj/files.f", []byte(content), 0o644))

	res, err := ResolveDetailed(fs, "/proj/files.f")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/proj/rtl/top.sv",
		"/proj/rtl/sub.v",
		"/proj/rtl/defs.svh",
		"/proj/rtl/UPPER.V",
		"/abs/ip.vh",
	}, res.Files)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 11, res.Warnings[0].Line)
	assert.Equal(t, "$PROJ/rtl/env.sv", res.Warnings[0].Text)
}

func TestResolveMissingFilelist(t *testing.T) {
	_, err := Resolve(afero.NewMemMapFs(), "/nope.f")
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "", false},
		{"   ", "", false},
		{"// c", "", false},
		{"# c", "", false},
		{"* c", "", false},
		{"+define+X", "", false},
		{"-y lib", "", false},
		{"a.sv", "a.sv", true},
		{"  a.sv // note", "a.sv", true},
		{"a.sv//note", "a.sv", true},
	}
	for _, tt := range tests {
		got, ok := parseLine(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("parseLine(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsHDLFile(t *testing.T) {
	for _, p := range []string{"a.v", "a.sv", "a.vh", "a.svh", "A.SV"} {
		assert.True(t, IsHDLFile(p), p)
	}
	for _, p := range []string{"a.vhd", "a.f", "a", "a.txt"} {
		assert.False(t, IsHDLFile(p), p)
	}
}
