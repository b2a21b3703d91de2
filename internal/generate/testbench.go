package generate

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

//go:embed templates/testbench.sv.tmpl
var testbenchTemplate string

var tbTemplate = template.Must(template.New("testbench").Parse(testbenchTemplate))

// TestbenchOptions holds testbench template values. Zero fields take the
// defaults shown in DefaultTestbenchOptions.
type TestbenchOptions struct {
	Timescale     string
	ClockPeriod   float64
	ResetCycles   int
	TimeoutCycles int
	ClockPattern  string
	ResetPattern  string
}

// DefaultTestbenchOptions returns the stock template values
func DefaultTestbenchOptions() TestbenchOptions {
	return TestbenchOptions{
		Timescale:     "1ns/1ps",
		ClockPeriod:   10.0,
		ResetCycles:   10,
		TimeoutCycles: 50000,
		ClockPattern:  `(?i)clk|clock`,
		ResetPattern:  `(?i)rst|reset`,
	}
}

func (o TestbenchOptions) withDefaults() TestbenchOptions {
	def := DefaultTestbenchOptions()
	if o.Timescale == "" {
		o.Timescale = def.Timescale
	}
	if o.ClockPeriod <= 0 {
		o.ClockPeriod = def.ClockPeriod
	}
	if o.ResetCycles <= 0 {
		o.ResetCycles = def.ResetCycles
	}
	if o.TimeoutCycles <= 0 {
		o.TimeoutCycles = def.TimeoutCycles
	}
	if o.ClockPattern == "" {
		o.ClockPattern = def.ClockPattern
	}
	if o.ResetPattern == "" {
		o.ResetPattern = def.ResetPattern
	}
	return o
}

type testbenchData struct {
	Name          string
	Timescale     string
	ClockPeriod   string
	ResetCycles   int
	TimeoutCycles int
	Parameters    []symbols.Parameter
	Signals       []string
	ParamOverride string
	Connections   []string
}

// ClockReset picks the clock and reset ports of m. Missing ports come back
// as the canonical names "clk" and "rst_n" with found=false.
func ClockReset(m *symbols.Module, clockPattern, resetPattern *regexp.Regexp) (clock string, clockFound bool, reset string, resetFound bool) {
	clock, reset = "clk", "rst_n"
	for _, p := range m.Ports {
		if clockPattern.MatchString(p.Name) {
			clock, clockFound = p.Name, true
			break
		}
	}
	for _, p := range m.Ports {
		if clockFound && p.Name == clock {
			continue
		}
		if resetPattern.MatchString(p.Name) {
			reset, resetFound = p.Name, true
			break
		}
	}
	return clock, clockFound, reset, resetFound
}

// Testbench renders a self-checking testbench skeleton for m
func Testbench(m *symbols.Module, opts TestbenchOptions) (string, error) {
	if m == nil {
		return "", errors.New("testbench: nil module")
	}
	opts = opts.withDefaults()
	clockRe, err := regexp.Compile(opts.ClockPattern)
	if err != nil {
		return "", fmt.Errorf("clock pattern: %w", err)
	}
	resetRe, err := regexp.Compile(opts.ResetPattern)
	if err != nil {
		return "", fmt.Errorf("reset pattern: %w", err)
	}

	clock, clockFound, reset, resetFound := ClockReset(m, clockRe, resetRe)

	data := testbenchData{
		Name:          m.Name,
		Timescale:     opts.Timescale,
		ClockPeriod:   formatReal(opts.ClockPeriod),
		ResetCycles:   opts.ResetCycles,
		TimeoutCycles: opts.TimeoutCycles,
		Parameters:    m.Parameters,
	}

	width := 0
	taken := map[string]bool{"clk": true, "rst_n": true}
	for _, p := range m.Ports {
		width = max(width, len(p.Name))
		taken[p.Name] = true
	}
	for i, p := range m.Ports {
		connect := p.Name
		switch {
		case clockFound && p.Name == clock:
			connect = "clk"
		case resetFound && p.Name == reset:
			connect = "rst_n"
			if !activeLow(p.Name) {
				connect = "~rst_n"
			}
		default:
			if p.Name == "clk" || p.Name == "rst_n" {
				connect = internalName(p.Name, taken)
			}
			decl := "logic " + connect + ";"
			if r := p.Range(); r != "" {
				decl = "logic " + r + " " + connect + ";"
			}
			data.Signals = append(data.Signals, decl)
		}
		data.Connections = append(data.Connections,
			fmt.Sprintf(".%s%s (%s)%s", p.Name, pad(p.Name, width), connect, comma(i, len(m.Ports))))
	}

	if len(m.Parameters) > 0 {
		var b strings.Builder
		b.WriteString(" #(\n")
		for i, p := range m.Parameters {
			fmt.Fprintf(&b, "        .%s(%s)%s\n", p.Name, p.Name, comma(i, len(m.Parameters)))
		}
		b.WriteString("    )")
		data.ParamOverride = b.String()
	}

	var out bytes.Buffer
	if err := tbTemplate.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render testbench: %w", err)
	}
	return out.String(), nil
}

// internalName renames a port that collides with the testbench's own clk or
// rst_n signal to dut_<name>, adding a numeric suffix while taken
func internalName(name string, taken map[string]bool) string {
	candidate := "dut_" + name
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("dut_%s_%d", name, n)
	}
	taken[candidate] = true
	return candidate
}

// TestbenchFileName is the conventional file name for m's testbench
func TestbenchFileName(m *symbols.Module) string {
	return "tb_" + m.Name + ".sv"
}

func activeLow(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "n")
}

func formatReal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
