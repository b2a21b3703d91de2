package symbols

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is the direction of a module port
type Direction int

const (
	Input Direction = iota
	Output
	Inout
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case Inout:
		return "inout"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection maps input/output/inout to a Direction
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input":
		return Input, true
	case "output":
		return Output, true
	case "inout":
		return Inout, true
	}
	return Input, false
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseDirection(s)
	if !ok {
		return fmt.Errorf("unknown port direction %q", s)
	}
	*d = parsed
	return nil
}

// Location is a 1-based position in a source file
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Parameter is a module parameter with its raw default expression
type Parameter struct {
	Name         string   `json:"name"`
	DefaultValue string   `json:"default_value"`
	Location     Location `json:"location"`
}

// Port is a module port. Type combines storage class and bit range,
// e.g. "logic [7:0]", "[7:0]" or "".
type Port struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Type      string    `json:"type"`
	Location  Location  `json:"location"`
}

// Range returns the bracketed bit range of the port type, or "".
func (p Port) Range() string {
	return TypeRange(p.Type)
}

// Storage returns the type text before the bit range, e.g. "logic signed".
func (p Port) Storage() string {
	t := strings.TrimSpace(p.Type)
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// TypeRange extracts the leading balanced [..] groups from a type string.
// Adjacent packed dimensions such as "[3:0][7:0]" are kept together.
func TypeRange(t string) string {
	start := strings.IndexByte(t, '[')
	if start < 0 {
		return ""
	}
	end, depth := -1, 0
	for i := start; i < len(t); i++ {
		switch t[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				end = i + 1
			}
		case ' ', '\t':
		default:
			if depth == 0 {
				i = len(t)
			}
		}
	}
	if end < 0 {
		return ""
	}
	return t[start:end]
}

// Instance is a sub-module instantiation found inside a module body.
// Type is resolved lazily against the index; an unknown Type is a black box.
type Instance struct {
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	Location  Location `json:"location"`
	OwnerFile string   `json:"owner_file"`
}

// Module is the fact record produced by one successful parse of a file
type Module struct {
	Name       string      `json:"name"`
	SourceFile string      `json:"source_file"`
	Location   Location    `json:"location"`
	Ports      []Port      `json:"ports"`
	Parameters []Parameter `json:"parameters"`
	Instances  []Instance  `json:"instances"`
}

// Clone returns a deep copy of the module
func (m *Module) Clone() *Module {
	if m == nil {
		return nil
	}
	out := *m
	out.Ports = append([]Port(nil), m.Ports...)
	out.Parameters = append([]Parameter(nil), m.Parameters...)
	out.Instances = append([]Instance(nil), m.Instances...)
	return &out
}

// Port looks up a port by name
func (m *Module) Port(name string) (Port, bool) {
	for _, p := range m.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// PortsByDirection returns the ports with the given direction, in order
func (m *Module) PortsByDirection(d Direction) []Port {
	var out []Port
	for _, p := range m.Ports {
		if p.Direction == d {
			out = append(out, p)
		}
	}
	return out
}

// Duplicate records a module name claimed by more than one file. Winner is
// the file whose definition the index currently serves.
type Duplicate struct {
	Name     string   `json:"name"`
	Winner   string   `json:"winner"`
	Shadowed []string `json:"shadowed"`
}
