package generate

import (
	"regexp"
	"strings"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// Signal is a connection read back from instantiation text
type Signal struct {
	Name      string            `json:"name"`
	Direction symbols.Direction `json:"direction"`
	Storage   string            `json:"storage,omitempty"`
	Range     string            `json:"range,omitempty"`
}

// DeclareOptions controls Declarations output
type DeclareOptions struct {
	// Keyword is the storage keyword, "logic" when empty
	Keyword string
	// Ignore lists signal names that are never declared
	Ignore []string
}

// DefaultIgnore holds the clock and reset spellings skipped by default
var DefaultIgnore = []string{"clk", "rst_n", "rst", "clock", "reset"}

var signalLinePattern = regexp.MustCompile(`\(\s*([\w']+)\s*\).*?//\s*(input|output|inout)\b\s*(.*)$`)

// ReadSignals extracts connected signals from lines carrying the
// "( name ) ... // direction type" comment protocol. Constant connections
// (names starting with a digit or a tick) are dropped; the first occurrence
// of a name wins.
func ReadSignals(text string) []Signal {
	var out []Signal
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		m := signalLinePattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		name := m[1]
		if name[0] == '\'' || (name[0] >= '0' && name[0] <= '9') {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		dir, _ := symbols.ParseDirection(m[2])
		rest := strings.TrimSpace(m[3])
		rng := symbols.TypeRange(rest)
		storage := rest
		if i := strings.IndexByte(storage, '['); i >= 0 {
			storage = storage[:i]
		}
		out = append(out, Signal{
			Name:      name,
			Direction: dir,
			Storage:   strings.Join(strings.Fields(storage), " "),
			Range:     rng,
		})
	}
	return out
}

// Declarations renders one declaration per signal not in the ignore set,
// aligned on the name column.
func Declarations(signals []Signal, opts DeclareOptions) string {
	keyword := opts.Keyword
	if keyword == "" {
		keyword = "logic"
	}
	ignore := make(map[string]bool, len(opts.Ignore))
	for _, name := range opts.Ignore {
		ignore[name] = true
	}

	var prefixes, names []string
	width := 0
	for _, s := range signals {
		if ignore[s.Name] {
			continue
		}
		prefix := keyword
		if s.Range != "" {
			prefix += " " + s.Range
		}
		width = max(width, len(prefix))
		prefixes = append(prefixes, prefix)
		names = append(names, s.Name)
	}

	var b strings.Builder
	for i, prefix := range prefixes {
		b.WriteString(prefix + pad(prefix, width) + " " + names[i] + ";\n")
	}
	return b.String()
}

// AutoDeclare reads signals from instantiation text and renders their
// declarations.
func AutoDeclare(text string, opts DeclareOptions) string {
	return Declarations(ReadSignals(text), opts)
}
