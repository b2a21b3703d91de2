package generate

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdlkit/internal/extractor"
	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

func port(name string, dir symbols.Direction, typ string) symbols.Port {
	return symbols.Port{Name: name, Direction: dir, Type: typ}
}

func minimalModule(t *testing.T) *symbols.Module {
	t.Helper()
	m := extractor.Parse("module m(input clk, input [7:0] d, output [7:0] q); endmodule", "m.sv")
	require.NotNil(t, m)
	return m
}

func TestInstantiationWithoutComments(t *testing.T) {
	got := Instantiation(minimalModule(t), InstanceOptions{})
	assert.Equal(t, "m u_m (\n    .clk (clk),\n    .d   (d),\n    .q   (q)\n);", got)
}

func TestInstantiationWithComments(t *testing.T) {
	got := Instantiation(minimalModule(t), InstanceOptions{WithComments: true})
	want := strings.Join([]string{
		"m u_m (",
		fmt.Sprintf("%-30s // input", "    .clk ( clk ),"),
		fmt.Sprintf("%-30s // input [7:0]", "    .d   ( d   ),"),
		fmt.Sprintf("%-30s // output [7:0]", "    .q   ( q   )"),
		");",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestInstantiationParametersAndName(t *testing.T) {
	m := &symbols.Module{
		Name: "fifo",
		Parameters: []symbols.Parameter{
			{Name: "WIDTH", DefaultValue: "8"},
			{Name: "D", DefaultValue: "2**4"},
		},
		Ports: []symbols.Port{port("clk", symbols.Input, "")},
	}
	got := Instantiation(m, InstanceOptions{InstanceName: "u_rx_fifo"})
	assert.Equal(t, "fifo #(\n    .WIDTH (8),\n    .D     (2**4)\n) u_rx_fifo (\n    .clk (clk)\n);", got)
}

func TestInstantiationZeroPorts(t *testing.T) {
	assert.Equal(t, "top u_top ();", Instantiation(&symbols.Module{Name: "top"}, InstanceOptions{WithComments: true}))
	assert.Equal(t, "", Instantiation(nil, InstanceOptions{}))
}

func TestCommentColumnGrowsWithLongNames(t *testing.T) {
	m := &symbols.Module{Name: "x", Ports: []symbols.Port{port("a_very_long_port_name_indeed", symbols.Output, "logic")}}
	got := Instantiation(m, InstanceOptions{WithComments: true, CommentColumn: 10})
	assert.Contains(t, got, "    .a_very_long_port_name_indeed ( a_very_long_port_name_indeed ) // output logic")
}

func TestReadSignalsRoundTrip(t *testing.T) {
	modules := []*symbols.Module{
		minimalModule(t),
		{
			Name:       "fifo",
			Parameters: []symbols.Parameter{{Name: "WIDTH", DefaultValue: "8"}},
			Ports: []symbols.Port{
				port("clk_i", symbols.Input, "wire"),
				port("rst_ni", symbols.Input, "logic"),
				port("din", symbols.Input, "logic [WIDTH-1:0]"),
				port("dout", symbols.Output, "reg signed [WIDTH-1:0]"),
				port("level", symbols.Output, "[$clog2(DEPTH):0]"),
				port("sda", symbols.Inout, "tri"),
				port("mem_arr", symbols.Output, "logic [3:0][7:0]"),
			},
		},
	}
	for _, m := range modules {
		t.Run(m.Name, func(t *testing.T) {
			signals := ReadSignals(Instantiation(m, InstanceOptions{WithComments: true}))
			require.Len(t, signals, len(m.Ports))
			for i, p := range m.Ports {
				assert.Equal(t, p.Name, signals[i].Name)
				assert.Equal(t, p.Direction, signals[i].Direction)
				assert.Equal(t, p.Range(), signals[i].Range)
			}
		})
	}
}

func TestReadSignalsFiltersConstantsAndDuplicates(t *testing.T) {
	text := `u_a (
    .clk   ( clk   ),  // input
    .tie   ( 1'b0  ),  // input
    .hex   ( 'h0   ),  // input [3:0]
    .d     ( bus   ),  // input logic [7:0]
    .d2    ( bus   ),  // input logic [15:0]
    .nc    ( open  ),
    .q     ( q_out )   // output reg [7:0]
);`
	got := ReadSignals(text)
	assert.Equal(t, []Signal{
		{Name: "clk", Direction: symbols.Input},
		{Name: "bus", Direction: symbols.Input, Storage: "logic", Range: "[7:0]"},
		{Name: "q_out", Direction: symbols.Output, Storage: "reg", Range: "[7:0]"},
	}, got)
}

func TestDeclarations(t *testing.T) {
	signals := []Signal{
		{Name: "clk", Range: ""},
		{Name: "d", Range: "[7:0]"},
		{Name: "q", Range: "[7:0]"},
		{Name: "valid"},
	}
	got := Declarations(signals, DeclareOptions{Ignore: DefaultIgnore})
	assert.Equal(t, "logic [7:0] d;\nlogic [7:0] q;\nlogic       valid;\n", got)

	got = Declarations(signals, DeclareOptions{Keyword: "wire"})
	assert.Equal(t, "wire       clk;\nwire [7:0] d;\nwire [7:0] q;\nwire       valid;\n", got)

	assert.Equal(t, "", Declarations(nil, DeclareOptions{}))
}

func TestAutoDeclareFromGeneratedInstance(t *testing.T) {
	text := Instantiation(minimalModule(t), InstanceOptions{WithComments: true})
	got := AutoDeclare(text, DeclareOptions{Keyword: "logic", Ignore: DefaultIgnore})
	assert.Equal(t, "logic [7:0] d;\nlogic [7:0] q;\n", got)
}

func fifoModule() *symbols.Module {
	return &symbols.Module{
		Name:       "fifo",
		SourceFile: "/proj/rtl/fifo.sv",
		Parameters: []symbols.Parameter{
			{Name: "WIDTH", DefaultValue: "8"},
			{Name: "DEPTH", DefaultValue: "16"},
		},
		Ports: []symbols.Port{
			port("clk_i", symbols.Input, ""),
			port("rst", symbols.Input, ""),
			port("din", symbols.Input, "[WIDTH-1:0]"),
			port("dout", symbols.Output, "logic [WIDTH-1:0]"),
			port("full", symbols.Output, ""),
		},
		Instances: []symbols.Instance{
			{Type: "ram", Name: "u_ram"},
			{Type: "vendor_ip", Name: "u_ip"},
		},
	}
}

func TestTestbench(t *testing.T) {
	got, err := Testbench(fifoModule(), TestbenchOptions{})
	require.NoError(t, err)

	for _, want := range []string{
		"`timescale 1ns/1ps\n\nmodule tb_fifo;\n",
		"    localparam real CLK_PERIOD = 10.0;\n",
		"    localparam int  TIMEOUT    = 50000;\n    localparam WIDTH = 8;\n    localparam DEPTH = 16;\n\n",
		"    logic clk;\n    logic rst_n;\n    logic [WIDTH-1:0] din;\n    logic [WIDTH-1:0] dout;\n    logic full;\n\n",
		"    fifo #(\n        .WIDTH(WIDTH),\n        .DEPTH(DEPTH)\n    ) u_dut (\n" +
			"        .clk_i (clk),\n" +
			"        .rst   (~rst_n),\n" +
			"        .din   (din),\n" +
			"        .dout  (dout),\n" +
			"        .full  (full)\n" +
			"    );\n",
		"repeat (10) @(posedge clk);\n        @(negedge clk);\n        rst_n = 1'b1;",
		"`ifdef DUMP_VCD",
		"`ifdef DUMP_FSDB",
		"$dumpfile(\"tb_fifo.vcd\");",
		"$finish;",
		"repeat (TIMEOUT) @(posedge clk);",
		"$fatal(1);",
		"endmodule\n",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "logic clk_i;")
	assert.NotContains(t, got, "logic rst;")
}

func TestTestbenchRenamesPortsNamedLikeTestbenchSignals(t *testing.T) {
	m := &symbols.Module{
		Name: "clkgen",
		Ports: []symbols.Port{
			port("ref_clk", symbols.Input, ""),
			port("rst_n", symbols.Input, ""),
			port("clk", symbols.Output, ""),
		},
	}
	got, err := Testbench(m, TestbenchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(got, "logic clk;"))
	assert.Equal(t, 1, strings.Count(got, "logic rst_n;"))
	assert.Contains(t, got, "    logic dut_clk;\n")
	assert.Contains(t, got, "        .ref_clk (clk),\n")
	assert.Contains(t, got, "        .rst_n   (rst_n),\n")
	assert.Contains(t, got, "        .clk    (dut_clk)\n")

	taken := &symbols.Module{
		Name: "mux",
		Ports: []symbols.Port{
			port("ref_clk", symbols.Input, ""),
			port("dut_clk", symbols.Input, ""),
			port("clk", symbols.Output, "[1:0]"),
		},
	}
	got, err = Testbench(taken, TestbenchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(got, "logic clk;"))
	assert.Contains(t, got, "    logic dut_clk;\n")
	assert.Contains(t, got, "    logic [1:0] dut_clk_2;\n")
	assert.Contains(t, got, "(dut_clk_2)")
}

func TestTestbenchDefaultsAndOptions(t *testing.T) {
	m := &symbols.Module{
		Name: "alu",
		Ports: []symbols.Port{
			port("clock", symbols.Input, ""),
			port("reset_n", symbols.Input, ""),
			port("y", symbols.Output, "[3:0]"),
		},
	}
	got, err := Testbench(m, TestbenchOptions{Timescale: "1ps/1ps", ClockPeriod: 2.5, ResetCycles: 3, TimeoutCycles: 100})
	require.NoError(t, err)
	assert.Contains(t, got, "`timescale 1ps/1ps")
	assert.Contains(t, got, "CLK_PERIOD = 2.5;")
	assert.Contains(t, got, "TIMEOUT    = 100;")
	assert.Contains(t, got, "repeat (3) @(posedge clk);")
	assert.Contains(t, got, "        .clock   (clk),\n        .reset_n (rst_n),\n        .y       (y)\n")
	assert.Contains(t, got, "    alu u_dut (\n")

	noClock := &symbols.Module{Name: "comb", Ports: []symbols.Port{port("a", symbols.Input, "")}}
	got, err = Testbench(noClock, TestbenchOptions{})
	require.NoError(t, err)
	assert.Contains(t, got, "    logic clk;\n    logic rst_n;\n    logic a;\n")
	assert.Contains(t, got, "        .a (a)\n")

	_, err = Testbench(m, TestbenchOptions{ClockPattern: "("})
	assert.Error(t, err)
	_, err = Testbench(nil, TestbenchOptions{})
	assert.Error(t, err)

	assert.Equal(t, "tb_alu.sv", TestbenchFileName(m))
}

type mapResolver map[string]*symbols.Module

func (r mapResolver) GetModule(name string) (*symbols.Module, bool) {
	m, ok := r[name]
	return m, ok
}

func TestMarkdown(t *testing.T) {
	m := fifoModule()
	m.Ports = append([]symbols.Port{port("sda", symbols.Inout, "")}, m.Ports...)
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	got := Markdown(m, DocOptions{Date: date, Resolver: mapResolver{"ram": {Name: "ram"}}})
	want := "# Module: fifo\n\n" +
		"**File:** `fifo.sv`  \n**Date:** 2026-10-19\n\n" +
		"## Parameters\n\n" +
		"| Name | Default |\n| :--- | :--- |\n| `WIDTH` | `8` |\n| `DEPTH` | `16` |\n\n" +
		"## Interface\n\n" +
		"| Port | Direction | Type |\n| :--- | :--- | :--- |\n" +
		"| **clk_i** | input | - |\n" +
		"| **rst** | input | - |\n" +
		"| **din** | input | `[WIDTH-1:0]` |\n" +
		"| **dout** | output | `logic [WIDTH-1:0]` |\n" +
		"| **full** | output | - |\n" +
		"| **sda** | inout | - |\n\n" +
		"## Instances\n\n" +
		"- `u_ram` : `ram` (resolved)\n" +
		"- `u_ip` : `vendor_ip` (black box)\n\n" +
		"## Example Instantiation\n\n```verilog\n" +
		Instantiation(m, InstanceOptions{}) +
		"\n```\n"
	assert.Equal(t, want, got)
}

func TestMarkdownEmptyModule(t *testing.T) {
	got := Markdown(&symbols.Module{Name: "top", SourceFile: "top.v"}, DocOptions{})
	assert.Contains(t, got, "**File:** `top.v`\n\n")
	assert.Contains(t, got, "*(No parameters)*")
	assert.Contains(t, got, "*(No ports detected)*")
	assert.NotContains(t, got, "**Date:**")
	assert.Contains(t, got, "```verilog\ntop u_top ();\n```\n")
}
