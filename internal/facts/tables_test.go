package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

func TestBuildTablesPopulatesCoreRelations(t *testing.T) {
	modules := []*symbols.Module{
		{
			Name:       "top",
			SourceFile: "rtl/top.sv",
			Location:   symbols.Location{File: "rtl/top.sv", Line: 1, Column: 8},
			Parameters: []symbols.Parameter{{Name: "W", DefaultValue: "8", Location: symbols.Location{Line: 1}}},
			Ports: []symbols.Port{
				{Name: "clk", Direction: symbols.Input, Location: symbols.Location{Line: 2}},
				{Name: "q", Direction: symbols.Output, Type: "logic [W-1:0]", Location: symbols.Location{Line: 3}},
			},
			Instances: []symbols.Instance{
				{Type: "sub", Name: "u_sub", Location: symbols.Location{Line: 5}},
				{Type: "pll", Name: "u_pll", Location: symbols.Location{Line: 6}},
			},
		},
		{Name: "sub", SourceFile: "rtl/sub.v", Location: symbols.Location{Line: 1, Column: 8}},
	}
	dups := []symbols.Duplicate{{Name: "sub", Winner: "rtl/sub.v", Shadowed: []string{"old/sub.v"}}}

	tables := BuildTables(modules, dups)

	if len(tables.Files) != 3 {
		t.Fatalf("expected 3 file rows, got %#v", tables.Files)
	}
	if tables.Files[0].Path != "old/sub.v" || tables.Files[0].Language != "verilog" {
		t.Fatalf("expected sorted file rows, got %#v", tables.Files)
	}
	if tables.Files[2].Language != "systemverilog" {
		t.Fatalf("expected top.sv classified as systemverilog, got %#v", tables.Files[2])
	}
	if len(tables.Modules) != 2 || tables.Modules[0].Column != 8 {
		t.Fatalf("expected 2 module rows, got %#v", tables.Modules)
	}
	if len(tables.Ports) != 2 || tables.Ports[1].Range != "[W-1:0]" || tables.Ports[1].Direction != "output" {
		t.Fatalf("unexpected port rows %#v", tables.Ports)
	}
	if len(tables.Parameters) != 1 || tables.Parameters[0].Default != "8" {
		t.Fatalf("unexpected parameter rows %#v", tables.Parameters)
	}
	if len(tables.Instances) != 2 || !tables.Instances[0].Resolved || tables.Instances[1].Resolved {
		t.Fatalf("expected u_sub resolved and u_pll black box, got %#v", tables.Instances)
	}
	if len(tables.Duplicates) != 1 || tables.Duplicates[0].Winner != "rtl/sub.v" {
		t.Fatalf("unexpected duplicate rows %#v", tables.Duplicates)
	}
	if tables.Count() != 11 {
		t.Fatalf("expected 11 rows, got %d", tables.Count())
	}
}

func TestBuildTablesEmpty(t *testing.T) {
	tables := BuildTables(nil, nil)
	if tables.Modules == nil || tables.Duplicates == nil {
		t.Fatalf("expected empty non-nil relations")
	}
}
