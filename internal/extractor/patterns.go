package extractor

import (
	"regexp"
	"strings"
)

var (
	// Pattern: module [automatic|static] <name>
	modulePattern = regexp.MustCompile(`\b(?:macro)?module\s+(?:(?:automatic|static)\s+)?([A-Za-z_]\w*)`)

	// Pattern: endmodule
	endModulePattern = regexp.MustCompile(`\bendmodule\b`)

	// Pattern: <type> [#( ... )] <name> (
	instancePattern = regexp.MustCompile(`\b([A-Za-z_]\w*)\s+(?:#\s*\([^;]*?\)\s*)?([A-Za-z_]\w*)\s*\(`)

	// Pattern: input|output|inout ... ;  (non-ANSI body declarations)
	portDeclPattern = regexp.MustCompile(`\b(input|output|inout)\b([^;]*);`)

	// Pattern: parameter ... ;  (body parameters, Verilog-1995 style)
	paramDeclPattern = regexp.MustCompile(`\bparameter\b([^;]*);`)

	// Pattern: leading direction keyword of a port segment
	directionPattern = regexp.MustCompile(`^\s*(input|output|inout)\b`)
)

// moduleHeader is the position of a module declaration's name
type moduleHeader struct {
	name      string
	start     int // offset of the module keyword
	nameStart int
	nameEnd   int
}

// matchModuleHeader finds the first module declaration
func matchModuleHeader(s string) (moduleHeader, bool) {
	m := modulePattern.FindStringSubmatchIndex(s)
	if m == nil {
		return moduleHeader{}, false
	}
	return moduleHeader{
		name:      s[m[2]:m[3]],
		start:     m[0],
		nameStart: m[2],
		nameEnd:   m[3],
	}, true
}

// headerBlocks holds the parameter and port list groups of a module header.
// Start/end offsets are exclusive of the parentheses; -1 means absent.
type headerBlocks struct {
	paramStart, paramEnd int
	portStart, portEnd   int
	end                  int // offset just past the header terminator
}

func (h headerBlocks) hasParams() bool { return h.paramStart >= 0 }
func (h headerBlocks) hasPorts() bool  { return h.portStart >= 0 }

// scanHeader walks `#( ... ) ( ... ) ;` starting right after the module name.
// Groups longer than limit bytes are treated as absent.
func scanHeader(s string, pos, limit int) headerBlocks {
	h := headerBlocks{paramStart: -1, paramEnd: -1, portStart: -1, portEnd: -1, end: pos}

	i := skipSpace(s, pos)
	i = skipImports(s, i)
	if i < len(s) && s[i] == '#' {
		j := skipSpace(s, i+1)
		if close := matchParen(s, j, limit); close >= 0 {
			h.paramStart, h.paramEnd = j+1, close
			i = skipSpace(s, close+1)
		} else {
			return h
		}
	}
	if i < len(s) && s[i] == '(' {
		close := matchParen(s, i, limit)
		if close < 0 {
			return h
		}
		h.portStart, h.portEnd = i+1, close
		i = skipSpace(s, close+1)
	}
	if i < len(s) && s[i] == ';' {
		i++
	}
	h.end = i
	return h
}

// skipImports skips SystemVerilog package imports placed in a module header
func skipImports(s string, i int) int {
	for strings.HasPrefix(s[i:], "import") && i+6 < len(s) && isSpace(s[i+6]) {
		semi := strings.IndexByte(s[i:], ';')
		if semi < 0 {
			return i
		}
		i = skipSpace(s, i+semi+1)
	}
	return i
}

// matchBodyEnd returns the offset of the first endmodule at or after from,
// or len(s) when the module is unterminated.
func matchBodyEnd(s string, from int) int {
	if from > len(s) {
		return len(s)
	}
	if m := endModulePattern.FindStringIndex(s[from:]); m != nil {
		return from + m[0]
	}
	return len(s)
}

// matchDirection returns the direction keyword a port segment starts with
func matchDirection(seg string) (string, int) {
	if m := directionPattern.FindStringSubmatchIndex(seg); m != nil {
		return seg[m[2]:m[3]], m[1]
	}
	return "", 0
}

// instanceMatch is one hit of the instance scanner
type instanceMatch struct {
	typ       string
	name      string
	nameStart int
}

// scanInstances finds `type [#(...)] name (` occurrences in s[from:to],
// rejecting reserved words in either position.
func scanInstances(s string, from, to int) []instanceMatch {
	var out []instanceMatch
	if to > len(s) {
		to = len(s)
	}
	pos := from
	for pos < to {
		m := instancePattern.FindStringSubmatchIndex(s[pos:to])
		if m == nil {
			break
		}
		typ := s[pos+m[2] : pos+m[3]]
		name := s[pos+m[4] : pos+m[5]]
		if reserved[typ] || reserved[name] || !wordBoundaryBefore(s, pos+m[2]) {
			// resume at the second identifier so a rejected keyword
			// does not swallow a real instance that follows it
			pos += m[4]
			continue
		}
		out = append(out, instanceMatch{typ: typ, name: name, nameStart: pos + m[4]})
		pos += m[1]
	}
	return out
}

// wordBoundaryBefore guards against matches that start mid-token in the full text,
// e.g. the tail of a system task name such as $display.
func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	c := s[i-1]
	return !isIdentChar(c) && c != '`' && c != '.' && c != '\''
}
