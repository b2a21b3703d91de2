package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/policy"
)

const topSrc = `module top (
    input  logic       clk,
    input  logic       rst_n,
    output logic [7:0] q
);
    counter #(.W(8)) u_cnt (.clk(clk), .rst_n(rst_n), .q(q));
    pll u_pll (.clk(clk));
endmodule
`

const counterSrc = `module counter #(parameter W = 8) (
    input  logic         clk,
    input  logic         rst_n,
    output logic [W-1:0] q
);
endmodule
`

// newProject writes a small design and a default config into a temp dir
func newProject(t *testing.T, extra map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"rtl/top.sv":     topSrc,
		"rtl/counter.sv": counterSrc,
	}
	for name, src := range extra {
		files[name] = src
	}
	for name, src := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	}
	require.NoError(t, config.DefaultConfig().Save(filepath.Join(root, config.FileName)))
	return root
}

func run(t *testing.T, root, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--root", root, "--config", filepath.Join(root, config.FileName)}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "", "version")
	require.NoError(t, err)
	assert.Equal(t, "hdlkit test\n", out)
}

func TestInstantiateAndDeclare(t *testing.T) {
	root := newProject(t, nil)

	inst, err := run(t, root, "", "instantiate", "counter", "--comments")
	require.NoError(t, err)
	assert.Contains(t, inst, "counter #(")
	assert.Contains(t, inst, "u_counter (")
	assert.Contains(t, inst, ".q")
	assert.Contains(t, inst, "// output")

	decl, err := run(t, root, inst, "declare")
	require.NoError(t, err)
	assert.Contains(t, decl, "logic [W-1:0] q;")
	assert.NotContains(t, decl, "clk")
	assert.NotContains(t, decl, "rst_n")

	wires, err := run(t, root, inst, "declare", "--keyword", "wire", "--ignore", "")
	require.NoError(t, err)
	assert.Contains(t, wires, "wire")
	assert.Contains(t, wires, "clk;")
}

func TestInstantiateUnknownModuleSuggests(t *testing.T) {
	root := newProject(t, nil)
	_, err := run(t, root, "", "instantiate", "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `module "count" not found`)
	assert.Contains(t, err.Error(), "counter")
}

func TestTestbenchWriteForceAndDiff(t *testing.T) {
	root := newProject(t, nil)
	tbPath := filepath.Join(root, "rtl", "tb_counter.sv")

	out, err := run(t, root, "", "tb", "counter")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
	written, err := os.ReadFile(tbPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "module tb_counter")

	_, err = run(t, root, "", "tb", "counter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(tbPath, []byte("// edited\n"), 0644))
	diff, err := run(t, root, "", "tb", "counter", "--diff")
	require.NoError(t, err)
	assert.Contains(t, diff, "-// edited")
	assert.Contains(t, diff, "+module tb_counter")
	edited, err := os.ReadFile(tbPath)
	require.NoError(t, err)
	assert.Equal(t, "// edited\n", string(edited), "--diff must not write")

	_, err = run(t, root, "", "tb", "counter", "--force")
	require.NoError(t, err)
	forced, err := os.ReadFile(tbPath)
	require.NoError(t, err)
	assert.Equal(t, string(written), string(forced))
}

func TestDocCheck(t *testing.T) {
	root := newProject(t, nil)
	docPath := filepath.Join(root, "docs", "counter.md")

	_, err := run(t, root, "", "doc", "counter", "--out", docPath)
	require.NoError(t, err)

	out, err := run(t, root, "", "doc", "counter", "--out", docPath, "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "is up to date")

	data, err := os.ReadFile(docPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(docPath, append(data, []byte("stale\n")...), 0644))

	out, err = run(t, root, "", "doc", "counter", "--out", docPath, "--check")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errOutdated))
	assert.Contains(t, out, "-stale")
}

func TestTreeAndNavigation(t *testing.T) {
	root := newProject(t, nil)

	out, err := run(t, root, "", "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "top")
	assert.Contains(t, out, "u_cnt : counter")
	assert.Contains(t, out, "u_pll : pll (black box)")
	assert.Contains(t, out, "2 instances")

	_, err = run(t, root, "", "tree", "--top", "nope")
	require.Error(t, err)

	out, err = run(t, root, "", "def", "counter")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "rtl", "counter.sv")+":1:8\n", out)

	at := filepath.Join(root, "rtl", "top.sv") + ":6:7"
	out, err = run(t, root, "", "def", "--at", at)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "counter.sv:1:8\n"), out)

	out, err = run(t, root, "", "hover", "--at", at)
	require.NoError(t, err)
	assert.Contains(t, out, "Module: counter")
	assert.Contains(t, out, "W = 8")

	out, err = run(t, root, "", "impact", "counter")
	require.NoError(t, err)
	assert.Contains(t, out, "level 1 (1): top")
	assert.Contains(t, out, "1 affected modules")
}

func TestCheckFailsOnSelfInstantiation(t *testing.T) {
	clean := newProject(t, nil)
	out, err := run(t, clean, "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "[black_box_instance]")

	root := newProject(t, map[string]string{
		"rtl/loop.v": "module loop(input a);\n  loop u_again (.a(a));\nendmodule\n",
	})
	out, err = run(t, root, "", "--json", "check")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errCheckFailed))

	var result policy.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Summary.Errors)
	var rules []string
	for _, v := range result.Violations {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, "self_instantiation")
}

func TestExport(t *testing.T) {
	root := newProject(t, nil)

	out, err := run(t, root, "", "export")
	require.NoError(t, err)
	var tables struct {
		Modules []struct {
			Name string `json:"name"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	assert.Len(t, tables.Modules, 2)

	yamlOut, err := run(t, root, "", "export", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, yamlOut, "modules:")
	assert.Contains(t, yamlOut, "name: counter")

	only, err := run(t, root, "", "export", "--file", filepath.Join(root, "rtl", "counter.sv"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(only), &tables))
	require.Len(t, tables.Modules, 1)
	assert.Equal(t, "counter", tables.Modules[0].Name)

	dbPath := filepath.Join(root, "out", "facts.db")
	_, err = run(t, root, "", "export", "--format", "sqlite", "--out", dbPath)
	require.NoError(t, err)
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM instances").Scan(&n))
	assert.Equal(t, 2, n)

	_, err = run(t, root, "", "export", "--format", "sqlite")
	require.Error(t, err)
	_, err = run(t, root, "", "export", "--format", "xml")
	require.Error(t, err)
}

func TestExportDeltaFrom(t *testing.T) {
	root := newProject(t, nil)
	prevPath := filepath.Join(root, "prev.json")
	_, err := run(t, root, "", "export", "--out", prevPath)
	require.NoError(t, err)

	widened := strings.Replace(counterSrc, "    output logic [W-1:0] q\n", "    output logic [W-1:0] q,\n    output logic         wrap\n", 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "rtl", "counter.sv"), []byte(widened), 0644))

	out, err := run(t, root, "", "export", "--delta-from", prevPath)
	require.NoError(t, err)
	var delta struct {
		Added struct {
			Ports []struct {
				Name string `json:"name"`
			} `json:"ports"`
		} `json:"added"`
		Removed struct {
			Ports []struct {
				Name string `json:"name"`
			} `json:"ports"`
		} `json:"removed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &delta))
	require.Len(t, delta.Added.Ports, 1)
	assert.Equal(t, "wrap", delta.Added.Ports[0].Name)
	assert.Empty(t, delta.Removed.Ports)

	require.NoError(t, os.WriteFile(prevPath, []byte(`{"modules": 3}`), 0644))
	_, err = run(t, root, "", "export", "--delta-from", prevPath)
	require.Error(t, err)
}

func TestParseSingleFile(t *testing.T) {
	root := newProject(t, map[string]string{"rtl/pkg.sv": "package p;\nendpackage\n"})

	out, err := run(t, root, "", "parse", filepath.Join(root, "rtl", "top.sv"))
	require.NoError(t, err)
	assert.Contains(t, out, "Module: top")
	assert.Contains(t, out, "Instances:")
	assert.Contains(t, out, "u_pll : pll")

	_, err = run(t, root, "", "parse", filepath.Join(root, "rtl", "pkg.sv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no module declaration")
}

func TestInitRefusesToOverwrite(t *testing.T) {
	root := t.TempDir()
	cmd := NewRootCommand("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", root, "init"})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, filepath.Join(root, config.FileName))

	_, err := run(t, root, "", "init")
	require.Error(t, err)
	_, err = run(t, root, "", "init", "--force")
	require.NoError(t, err)
}
