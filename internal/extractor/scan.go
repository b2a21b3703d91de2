package extractor

import "strings"

// maskedSource holds two length-preserving copies of a source text.
// code has comments blanked; structure additionally blanks string literal
// contents so parens and keywords inside strings are invisible to the scanners.
// Offsets in either copy are offsets in the original text.
type maskedSource struct {
	original  string
	code      string
	structure string
}

func maskSource(text string) maskedSource {
	code := []byte(text)
	structure := []byte(text)

	const (
		stNormal = iota
		stLine
		stBlock
		stString
	)
	state := stNormal
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch state {
		case stNormal:
			switch {
			case c == '/' && i+1 < len(text) && text[i+1] == '/':
				state = stLine
				code[i], structure[i] = ' ', ' '
			case c == '/' && i+1 < len(text) && text[i+1] == '*':
				state = stBlock
				code[i], structure[i] = ' ', ' '
				i++
				code[i], structure[i] = ' ', ' '
			case c == '"':
				state = stString
			}
		case stLine:
			if c == '\n' {
				state = stNormal
				continue
			}
			code[i], structure[i] = ' ', ' '
		case stBlock:
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				code[i], structure[i] = ' ', ' '
				i++
				code[i], structure[i] = ' ', ' '
				state = stNormal
				continue
			}
			if c != '\n' {
				code[i], structure[i] = ' ', ' '
			}
		case stString:
			switch c {
			case '\\':
				structure[i] = ' '
				if i+1 < len(text) && text[i+1] != '\n' {
					i++
					structure[i] = ' '
				}
			case '"':
				state = stNormal
			case '\n':
				// unterminated string literal
				state = stNormal
			default:
				structure[i] = ' '
			}
		}
	}

	return maskedSource{original: text, code: string(code), structure: string(structure)}
}

// matchParen returns the index of the ')' closing the '(' at open, or -1 when
// the group is unbalanced or longer than limit bytes.
func matchParen(s string, open, limit int) int {
	if open < 0 || open >= len(s) || s[open] != '(' {
		return -1
	}
	end := len(s)
	if limit > 0 && open+limit < end {
		end = open + limit
	}
	depth := 0
	for i := open; i < end; i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// segment is a slice of a larger text with its absolute offset
type segment struct {
	text   string
	offset int
}

// splitTopLevel splits s on commas that are not nested inside (), [] or {}.
// base is the absolute offset of s in the source.
func splitTopLevel(s string, base int) []segment {
	var out []segment
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, segment{text: s[start:i], offset: base + start})
				start = i + 1
			}
		}
	}
	out = append(out, segment{text: s[start:], offset: base + start})
	return out
}

// topLevelIndex returns the first index of b in s outside any bracket group.
func topLevelIndex(s string, b byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		default:
			if s[i] == b && depth == 0 {
				return i
			}
		}
	}
	return -1
}

// declTokens splits a declaration into words and bracket groups, in order.
// "logic signed [7:0] data [4]" -> [logic signed [7:0] data [4]]
func declTokens(s string) []string {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '[':
			depth := 0
			j := i
			for ; j < len(s); j++ {
				if s[j] == '[' {
					depth++
				} else if s[j] == ']' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if j >= len(s) {
				toks = append(toks, strings.TrimSpace(s[i:]))
				return toks
			}
			toks = append(toks, compactRange(s[i:j+1]))
			i = j + 1
		case isIdentStart(c) || c == '\\':
			j := i + 1
			for j < len(s) && (isIdentChar(s[j]) || s[j] == ':' || s[j] == '.') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			j := i + 1
			for j < len(s) && !isSpace(s[j]) && s[j] != '[' && !isIdentStart(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

// compactRange removes whitespace inside a bracketed range: "[ 7 : 0 ]" -> "[7:0]"
func compactRange(r string) string {
	if !strings.ContainsAny(r, " \t\r\n") {
		return r
	}
	var b strings.Builder
	for i := 0; i < len(r); i++ {
		if !isSpace(r[i]) {
			b.WriteByte(r[i])
		}
	}
	return b.String()
}

// lineCol converts a byte offset into a 1-based line and column
func lineCol(text string, offset int) (int, int) {
	if offset > len(text) {
		offset = len(text)
	}
	line := 1 + strings.Count(text[:offset], "\n")
	col := offset + 1
	if nl := strings.LastIndexByte(text[:offset], '\n'); nl >= 0 {
		col = offset - nl
	}
	return line, col
}
