package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// Version identifies the extraction rules; cached parse results are
// invalidated when it changes.
const Version = "hdlkit-extractor-3"

// DefaultMaxHeaderBytes bounds the parameter and port list scans
const DefaultMaxHeaderBytes = 64 * 1024

// ErrNoModule is returned by Extract when a file has no module declaration
var ErrNoModule = errors.New("no module declaration found")

// Options tunes the structural parser
type Options struct {
	// MaxHeaderBytes bounds each parenthesized header group (0 = default)
	MaxHeaderBytes int
}

// Parse extracts the first module declared in text. It returns nil when the
// text contains no module keyword. Malformed input yields a partial module.
func Parse(text, file string) *symbols.Module {
	return ParseWithOptions(text, file, Options{})
}

// ParseWithOptions is Parse with explicit limits
func ParseWithOptions(text, file string, opts Options) *symbols.Module {
	limit := opts.MaxHeaderBytes
	if limit <= 0 {
		limit = DefaultMaxHeaderBytes
	}

	src := maskSource(text)
	hdr, ok := matchModuleHeader(src.structure)
	if !ok {
		return nil
	}

	mod := &symbols.Module{
		Name:       hdr.name,
		SourceFile: file,
		Location:   locate(text, file, hdr.name, hdr.nameStart),
		Ports:      []symbols.Port{},
		Parameters: []symbols.Parameter{},
		Instances:  []symbols.Instance{},
	}

	blocks := scanHeader(src.structure, hdr.nameEnd, limit)
	bodyEnd := matchBodyEnd(src.structure, blocks.end)

	if blocks.hasParams() {
		mod.Parameters = extractParameters(src, file, blocks.paramStart, blocks.paramEnd, true)
	} else {
		mod.Parameters = extractBodyParameters(src, file, blocks.end, bodyEnd)
	}

	if blocks.hasPorts() {
		mod.Ports = extractPorts(src, file, blocks.portStart, blocks.portEnd)
		if len(mod.Ports) == 0 {
			mod.Ports = extractNonANSIPorts(src, file, blocks.portStart, blocks.portEnd, blocks.end, bodyEnd)
		}
	}

	for _, hit := range scanInstances(src.structure, blocks.end, len(src.structure)) {
		mod.Instances = append(mod.Instances, symbols.Instance{
			Type:      hit.typ,
			Name:      hit.name,
			Location:  locate(text, file, hit.name, hit.nameStart),
			OwnerFile: file,
		})
	}

	return mod
}

// locate finds the first occurrence of name at or after offset in the
// original text and reports its position.
func locate(original, file, name string, offset int) symbols.Location {
	if offset < 0 {
		offset = 0
	}
	if offset > len(original) {
		offset = len(original)
	}
	pos := offset
	if i := strings.Index(original[offset:], name); i >= 0 {
		pos = offset + i
	}
	line, col := lineCol(original, pos)
	return symbols.Location{File: file, Line: line, Column: col}
}

// extractParameters reads `parameter [type] NAME = value` entries from a
// comma separated list. In a #( ) header list the keyword is optional;
// a bare `NAME = value` after a parameter entry continues that declaration.
func extractParameters(src maskedSource, file string, start, end int, header bool) []symbols.Parameter {
	params := []symbols.Parameter{}
	inParam := header
	for _, seg := range splitTopLevel(src.structure[start:end], start) {
		body := strings.TrimSpace(seg.text)
		if body == "" {
			continue
		}
		switch firstWord(body) {
		case "localparam":
			inParam = false
			continue
		case "parameter":
			inParam = true
			body = strings.TrimSpace(body[len("parameter"):])
		default:
			if !inParam {
				continue
			}
		}

		lhs, value := body, ""
		hasValue := false
		if eq := topLevelIndex(body, '='); eq >= 0 {
			lhs = body[:eq]
			hasValue = true
		}
		name := lastIdentifier(lhs)
		if name == "" || reserved[name] {
			continue
		}
		if hasValue {
			// slice the value from the comment-free copy so string literals survive
			segStart := seg.offset + strings.Index(seg.text, strings.TrimSpace(seg.text))
			raw := src.code[segStart : segStart+len(strings.TrimSpace(seg.text))]
			if eq := topLevelIndex(raw, '='); eq >= 0 {
				value = collapseSpace(raw[eq+1:])
			}
		}
		params = append(params, symbols.Parameter{
			Name:         name,
			DefaultValue: value,
			Location:     locate(src.original, file, name, nameOffset(seg.offset, lhsText(seg.text), name)),
		})
	}
	return params
}

// extractBodyParameters collects `parameter ...;` statements from the body
func extractBodyParameters(src maskedSource, file string, from, to int) []symbols.Parameter {
	params := []symbols.Parameter{}
	if from >= to {
		return params
	}
	for _, m := range paramDeclPattern.FindAllStringSubmatchIndex(src.structure[from:to], -1) {
		params = append(params, extractParameters(src, file, from+m[2], from+m[3], true)...)
	}
	return params
}

// portDecl is the direction and type carried from one port segment to the next
type portDecl struct {
	dir symbols.Direction
	typ string
	ok  bool
}

// extractPorts reads ANSI port declarations from a port list
func extractPorts(src maskedSource, file string, start, end int) []symbols.Port {
	ports := []symbols.Port{}
	var prev portDecl
	for _, seg := range splitTopLevel(src.structure[start:end], start) {
		p, decl, ok := parsePortSegment(seg, prev, src.original, file)
		if !ok {
			if decl.ok {
				prev = decl
			}
			continue
		}
		prev = decl
		ports = append(ports, p)
	}
	return ports
}

// parsePortSegment parses `[direction] [storage] [signed] [range] name [dims] [= default]`.
// A segment without a direction inherits prev.
func parsePortSegment(seg segment, prev portDecl, original, file string) (symbols.Port, portDecl, bool) {
	raw := seg.text
	if eq := topLevelIndex(raw, '='); eq >= 0 {
		raw = raw[:eq]
	}
	text := strings.TrimSpace(stripAttributes(raw))
	if text == "" {
		return symbols.Port{}, portDecl{}, false
	}

	decl := prev
	explicitType := false
	if kw, n := matchDirection(text); kw != "" {
		d, _ := symbols.ParseDirection(kw)
		decl = portDecl{dir: d, ok: true}
		text = text[n:]
		explicitType = true
	}
	if !decl.ok {
		return symbols.Port{}, portDecl{}, false
	}

	toks := declTokens(text)
	nameIdx := -1
	for i := len(toks) - 1; i >= 0; i-- {
		if !strings.HasPrefix(toks[i], "[") {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 || !isIdentifier(toks[nameIdx]) || reserved[toks[nameIdx]] {
		return symbols.Port{}, decl, false
	}
	name := toks[nameIdx]

	if explicitType || nameIdx > 0 {
		var storage, ranges []string
		for _, tok := range toks[:nameIdx] {
			if strings.HasPrefix(tok, "[") {
				ranges = append(ranges, tok)
				continue
			}
			if !explicitType && strings.Contains(tok, ".") {
				// interface port (bus.modport name): no direction to inherit
				return symbols.Port{}, portDecl{}, false
			}
			storage = append(storage, tok)
		}
		decl.typ = strings.TrimSpace(strings.Join(storage, " ") + " " + strings.Join(ranges, ""))
	}

	return symbols.Port{
		Name:      name,
		Direction: decl.dir,
		Type:      decl.typ,
		Location:  locate(original, file, name, nameOffset(seg.offset, raw, name)),
	}, decl, true
}

// extractNonANSIPorts resolves `module m(a, b); input a; output [3:0] b;`
// style headers. Names without a body declaration are dropped.
func extractNonANSIPorts(src maskedSource, file string, start, end, bodyStart, bodyEnd int) []symbols.Port {
	ports := []symbols.Port{}
	var order []string
	for _, seg := range splitTopLevel(src.structure[start:end], start) {
		name := strings.TrimSpace(seg.text)
		if isIdentifier(name) && !reserved[name] {
			order = append(order, name)
		}
	}
	if len(order) == 0 || bodyStart >= bodyEnd {
		return ports
	}

	declared := make(map[string]symbols.Port)
	body := src.structure[bodyStart:bodyEnd]
	for _, m := range portDeclPattern.FindAllStringSubmatchIndex(body, -1) {
		stmtStart := bodyStart + m[0]
		stmt := src.structure[stmtStart : bodyStart+m[5]]
		var prev portDecl
		for _, seg := range splitTopLevel(stmt, stmtStart) {
			p, decl, ok := parsePortSegment(seg, prev, src.original, file)
			if decl.ok {
				prev = decl
			}
			if ok {
				if _, dup := declared[p.Name]; !dup {
					declared[p.Name] = p
				}
			}
		}
	}

	for _, name := range order {
		if p, ok := declared[name]; ok {
			ports = append(ports, p)
		}
	}
	return ports
}

// nameOffset is the absolute offset of the last occurrence of name in text,
// which starts at base. The declared name is the last identifier of a
// declaration, so searching backwards skips type and keyword text.
func nameOffset(base int, text, name string) int {
	if i := strings.LastIndex(text, name); i >= 0 {
		return base + i
	}
	return base
}

func lhsText(s string) string {
	if eq := topLevelIndex(s, '='); eq >= 0 {
		return s[:eq]
	}
	return s
}

// stripAttributes removes (* ... *) attribute instances
func stripAttributes(s string) string {
	for {
		open := strings.Index(s, "(*")
		if open < 0 {
			return s
		}
		close := strings.Index(s[open:], "*)")
		if close < 0 {
			return s
		}
		s = s[:open] + s[open+close+2:]
	}
}

func firstWord(s string) string {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i]
}

// lastIdentifier returns the last identifier outside bracket groups
func lastIdentifier(s string) string {
	toks := declTokens(s)
	for i := len(toks) - 1; i >= 0; i-- {
		if isIdentifier(toks[i]) {
			return toks[i]
		}
	}
	return ""
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Extractor parses HDL files read through an afero filesystem
type Extractor struct {
	fs   afero.Fs
	opts Options
}

// New creates an Extractor. A nil fs means the OS filesystem.
func New(fs afero.Fs) *Extractor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Extractor{fs: fs}
}

// NewWithOptions creates an Extractor with explicit parser limits
func NewWithOptions(fs afero.Fs, opts Options) *Extractor {
	e := New(fs)
	e.opts = opts
	return e
}

// Extract reads and parses path. It returns ErrNoModule when the file has no
// module declaration and ctx.Err() when the context ends first.
func (e *Extractor) Extract(ctx context.Context, path string) (*symbols.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return e.ExtractBytes(ctx, path, data)
}

// ExtractBytes parses already-read file contents
func (e *Extractor) ExtractBytes(ctx context.Context, path string, data []byte) (*symbols.Module, error) {
	done := make(chan *symbols.Module, 1)
	go func() {
		done <- ParseWithOptions(string(data), path, e.opts)
	}()

	select {
	case mod := <-done:
		if mod == nil {
			return nil, ErrNoModule
		}
		return mod, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("parse %s: %w", path, ctx.Err())
	}
}
