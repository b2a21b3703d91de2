package nav

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// Definition returns where the module named word is declared
func Definition(src Source, word string) (symbols.Location, bool) {
	m, ok := src.GetModule(word)
	if !ok {
		return symbols.Location{}, false
	}
	loc := m.Location
	if loc.File == "" {
		loc.File = m.SourceFile
	}
	return loc, true
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// WordAt returns the identifier under the 1-based line and column of text.
// A cursor placed just past the end of a word selects that word.
func WordAt(text string, line, col int) string {
	lines := strings.Split(text, "\n")
	if line < 1 || line > len(lines) || col < 1 {
		return ""
	}
	s := strings.TrimRight(lines[line-1], "\r")
	i := col - 1
	if i >= len(s) || !isIdentByte(s[i]) {
		if i-1 >= 0 && i-1 < len(s) && isIdentByte(s[i-1]) {
			i--
		} else {
			return ""
		}
	}
	start, end := i, i
	for start > 0 && isIdentByte(s[start-1]) {
		start--
	}
	for end < len(s) && isIdentByte(s[end]) {
		end++
	}
	return s[start:end]
}

// ParsePosition splits "file:line:col" into its parts
func ParsePosition(pos string) (file string, line, col int, err error) {
	colIdx := strings.LastIndexByte(pos, ':')
	if colIdx < 0 {
		return "", 0, 0, fmt.Errorf("position %q: want file:line:col", pos)
	}
	lineIdx := strings.LastIndexByte(pos[:colIdx], ':')
	if lineIdx <= 0 {
		return "", 0, 0, fmt.Errorf("position %q: want file:line:col", pos)
	}
	line, err = strconv.Atoi(pos[lineIdx+1 : colIdx])
	if err != nil || line < 1 {
		return "", 0, 0, fmt.Errorf("position %q: bad line", pos)
	}
	col, err = strconv.Atoi(pos[colIdx+1:])
	if err != nil || col < 1 {
		return "", 0, 0, fmt.Errorf("position %q: bad column", pos)
	}
	return pos[:lineIdx], line, col, nil
}

// Hover summarises a module for a tooltip-sized view
func Hover(m *symbols.Module) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n", m.Name)
	fmt.Fprintf(&b, "File: %s\n", filepath.Base(m.SourceFile))

	if len(m.Parameters) > 0 {
		b.WriteString("\nParameters:\n")
		for _, p := range m.Parameters {
			fmt.Fprintf(&b, "%s = %s\n", p.Name, p.DefaultValue)
		}
	}

	if len(m.Ports) == 0 {
		b.WriteString("\n(No ports detected)\n")
		return b.String()
	}
	b.WriteString("\nPorts:\n")
	groups := []struct {
		title string
		dir   symbols.Direction
	}{
		{"Inputs", symbols.Input},
		{"Outputs", symbols.Output},
		{"Inouts", symbols.Inout},
	}
	for _, g := range groups {
		ports := m.PortsByDirection(g.dir)
		if len(ports) == 0 {
			continue
		}
		fmt.Fprintf(&b, "// %s\n", g.title)
		for _, p := range ports {
			fields := []string{fmt.Sprintf("%-6s", p.Direction)}
			if p.Type != "" {
				fields = append(fields, p.Type)
			}
			fields = append(fields, p.Name)
			b.WriteString(strings.Join(fields, " ") + "\n")
		}
	}
	return b.String()
}
