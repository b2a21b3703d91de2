package facts

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// Tables is the relational fact model of an indexed project.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Files      []FileRow      `json:"files" yaml:"files"`
	Modules    []ModuleRow    `json:"modules" yaml:"modules"`
	Ports      []PortRow      `json:"ports" yaml:"ports"`
	Parameters []ParameterRow `json:"parameters" yaml:"parameters"`
	Instances  []InstanceRow  `json:"instances" yaml:"instances"`
	Duplicates []DuplicateRow `json:"duplicates" yaml:"duplicates"`
}

type FileRow struct {
	Path     string `json:"path" yaml:"path"`
	Language string `json:"language" yaml:"language"`
}

type ModuleRow struct {
	Name   string `json:"name" yaml:"name"`
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

type PortRow struct {
	Module    string `json:"module" yaml:"module"`
	Name      string `json:"name" yaml:"name"`
	Direction string `json:"direction" yaml:"direction"`
	Type      string `json:"type" yaml:"type"`
	Range     string `json:"range" yaml:"range"`
	File      string `json:"file" yaml:"file"`
	Line      int    `json:"line" yaml:"line"`
}

type ParameterRow struct {
	Module  string `json:"module" yaml:"module"`
	Name    string `json:"name" yaml:"name"`
	Default string `json:"default" yaml:"default"`
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`
}

// InstanceRow is one instantiation. Resolved is false for black boxes.
type InstanceRow struct {
	Module   string `json:"module" yaml:"module"`
	Name     string `json:"name" yaml:"name"`
	Target   string `json:"target" yaml:"target"`
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Resolved bool   `json:"resolved" yaml:"resolved"`
}

// DuplicateRow records one file whose definition of Name is shadowed by Winner
type DuplicateRow struct {
	Name   string `json:"name" yaml:"name"`
	File   string `json:"file" yaml:"file"`
	Winner string `json:"winner" yaml:"winner"`
}

// Language classifies a source path by extension
func Language(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sv", ".svh":
		return "systemverilog"
	case ".v", ".vh":
		return "verilog"
	default:
		return "unknown"
	}
}

// BuildTables flattens the indexed modules and duplicate claims into rows.
// Files covers every file that contributes a module or a shadowed claim.
func BuildTables(modules []*symbols.Module, duplicates []symbols.Duplicate) Tables {
	tables := emptyTables()

	defined := make(map[string]bool, len(modules))
	for _, m := range modules {
		defined[m.Name] = true
	}

	seenFiles := make(map[string]bool)
	addFile := func(path string) {
		if path == "" || seenFiles[path] {
			return
		}
		seenFiles[path] = true
		tables.Files = append(tables.Files, FileRow{Path: path, Language: Language(path)})
	}

	for _, m := range modules {
		addFile(m.SourceFile)
		tables.Modules = append(tables.Modules, ModuleRow{
			Name:   m.Name,
			File:   m.SourceFile,
			Line:   m.Location.Line,
			Column: m.Location.Column,
		})

		for _, p := range m.Ports {
			tables.Ports = append(tables.Ports, PortRow{
				Module:    m.Name,
				Name:      p.Name,
				Direction: p.Direction.String(),
				Type:      p.Type,
				Range:     p.Range(),
				File:      m.SourceFile,
				Line:      p.Location.Line,
			})
		}

		for _, p := range m.Parameters {
			tables.Parameters = append(tables.Parameters, ParameterRow{
				Module:  m.Name,
				Name:    p.Name,
				Default: p.DefaultValue,
				File:    m.SourceFile,
				Line:    p.Location.Line,
			})
		}

		for _, inst := range m.Instances {
			tables.Instances = append(tables.Instances, InstanceRow{
				Module:   m.Name,
				Name:     inst.Name,
				Target:   inst.Type,
				File:     m.SourceFile,
				Line:     inst.Location.Line,
				Resolved: defined[inst.Type],
			})
		}
	}

	for _, d := range duplicates {
		for _, file := range d.Shadowed {
			addFile(file)
			tables.Duplicates = append(tables.Duplicates, DuplicateRow{
				Name:   d.Name,
				File:   file,
				Winner: d.Winner,
			})
		}
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

// Count returns the total number of rows across all relations
func (t Tables) Count() int {
	return len(t.Files) + len(t.Modules) + len(t.Ports) + len(t.Parameters) + len(t.Instances) + len(t.Duplicates)
}

func emptyTables() Tables {
	return Tables{
		Files:      []FileRow{},
		Modules:    []ModuleRow{},
		Ports:      []PortRow{},
		Parameters: []ParameterRow{},
		Instances:  []InstanceRow{},
		Duplicates: []DuplicateRow{},
	}
}
