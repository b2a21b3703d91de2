// Package generate renders HDL text from indexed modules: instantiation
// templates, signal declarations, testbenches and Markdown documentation.
package generate

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// DefaultCommentColumn is the minimum column of port comments
const DefaultCommentColumn = 30

// InstanceOptions controls Instantiation output
type InstanceOptions struct {
	// WithComments appends "// direction type" to every port line. The
	// comment shape is read back by ReadSignals.
	WithComments bool
	// InstanceName defaults to "u_" + module name
	InstanceName string
	// CommentColumn defaults to DefaultCommentColumn
	CommentColumn int
}

// Instantiation renders a self-connected instance of m
func Instantiation(m *symbols.Module, opts InstanceOptions) string {
	if m == nil {
		return ""
	}
	instName := opts.InstanceName
	if instName == "" {
		instName = "u_" + m.Name
	}
	column := opts.CommentColumn
	if column <= 0 {
		column = DefaultCommentColumn
	}

	var b strings.Builder
	b.WriteString(m.Name)
	if len(m.Parameters) > 0 {
		width := 0
		for _, p := range m.Parameters {
			width = max(width, len(p.Name))
		}
		b.WriteString(" #(\n")
		for i, p := range m.Parameters {
			fmt.Fprintf(&b, "    .%s%s (%s)%s\n", p.Name, pad(p.Name, width), p.DefaultValue, comma(i, len(m.Parameters)))
		}
		b.WriteString(")")
	}
	b.WriteString(" " + instName)

	if len(m.Ports) == 0 {
		b.WriteString(" ();")
		return b.String()
	}

	width := 0
	for _, p := range m.Ports {
		width = max(width, len(p.Name))
	}
	b.WriteString(" (\n")
	for i, p := range m.Ports {
		padding := pad(p.Name, width)
		var line string
		if opts.WithComments {
			line = fmt.Sprintf("    .%s%s ( %s%s )%s", p.Name, padding, p.Name, padding, comma(i, len(m.Ports)))
			line += strings.Repeat(" ", max(0, column-len(line)))
			line = strings.TrimRight(fmt.Sprintf("%s // %s %s", line, p.Direction, p.Type), " ")
		} else {
			line = fmt.Sprintf("    .%s%s (%s)%s", p.Name, padding, p.Name, comma(i, len(m.Ports)))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(");")
	return b.String()
}

func pad(name string, width int) string {
	return strings.Repeat(" ", max(0, width-len(name)))
}

func comma(i, n int) string {
	if i == n-1 {
		return ""
	}
	return ","
}
