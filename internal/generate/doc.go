package generate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// Resolver looks up modules by name
type Resolver interface {
	GetModule(name string) (*symbols.Module, bool)
}

// DocOptions controls Markdown output
type DocOptions struct {
	// Date is printed under the title when non-zero
	Date time.Time
	// Resolver, when set, adds an instance list with black-box flags
	Resolver Resolver
}

var clockResetName = regexp.MustCompile(`(?i)clk|rst|clock|reset`)

// Markdown renders reference documentation for m
func Markdown(m *symbols.Module, opts DocOptions) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Module: %s\n\n", m.Name)
	fmt.Fprintf(&b, "**File:** `%s`", filepath.Base(m.SourceFile))
	if !opts.Date.IsZero() {
		fmt.Fprintf(&b, "  \n**Date:** %s", opts.Date.Format("2006-01-02"))
	}
	b.WriteString("\n\n")

	b.WriteString("## Parameters\n\n")
	if len(m.Parameters) == 0 {
		b.WriteString("*(No parameters)*\n\n")
	} else {
		b.WriteString("| Name | Default |\n")
		b.WriteString("| :--- | :--- |\n")
		for _, p := range m.Parameters {
			fmt.Fprintf(&b, "| `%s` | `%s` |\n", p.Name, p.DefaultValue)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Interface\n\n")
	if len(m.Ports) == 0 {
		b.WriteString("*(No ports detected)*\n\n")
	} else {
		b.WriteString("| Port | Direction | Type |\n")
		b.WriteString("| :--- | :--- | :--- |\n")
		for _, p := range sortPortsForDoc(m.Ports) {
			typ := "-"
			if p.Type != "" {
				typ = "`" + p.Type + "`"
			}
			fmt.Fprintf(&b, "| **%s** | %s | %s |\n", p.Name, p.Direction, typ)
		}
		b.WriteString("\n")
	}

	if opts.Resolver != nil && len(m.Instances) > 0 {
		b.WriteString("## Instances\n\n")
		for _, inst := range m.Instances {
			status := "resolved"
			if _, ok := opts.Resolver.GetModule(inst.Type); !ok {
				status = "black box"
			}
			fmt.Fprintf(&b, "- `%s` : `%s` (%s)\n", inst.Name, inst.Type, status)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Example Instantiation\n\n")
	b.WriteString("```verilog\n")
	b.WriteString(Instantiation(m, InstanceOptions{}))
	b.WriteString("\n```\n")
	return b.String()
}

// sortPortsForDoc puts clock/reset-like names first, then inputs, outputs
// and inouts; order is otherwise preserved.
func sortPortsForDoc(ports []symbols.Port) []symbols.Port {
	out := append([]symbols.Port(nil), ports...)
	group := func(p symbols.Port) int {
		if clockResetName.MatchString(p.Name) {
			return 0
		}
		return 1
	}
	sort.SliceStable(out, func(i, j int) bool {
		gi, gj := group(out[i]), group(out[j])
		if gi != gj {
			return gi < gj
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}
