// Package policy evaluates design checks written in Rego against the fact
// tables of an indexed project.
package policy

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/facts"
)

//go:embed rules/*.rego
var rulesFS embed.FS

// Rules lists the built-in checks with their default severity
var Rules = map[string]string{
	"duplicate_module":   "warning",
	"black_box_instance": "info",
	"self_instantiation": "error",
	"empty_port_list":    "info",
}

// Engine evaluates OPA policies against HDL facts
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Input is the data structure passed to OPA
type Input struct {
	facts.Tables
	Config InputConfig `json:"config"`
}

// InputConfig carries rule overrides into the policy
type InputConfig struct {
	Severity map[string]string `json:"severity"`
	Disabled []string          `json:"disabled"`
}

// NewInput pairs fact tables with the rule settings from cfg
func NewInput(tables facts.Tables, cfg *config.Config) Input {
	in := Input{
		Tables: tables,
		Config: InputConfig{Severity: map[string]string{}, Disabled: []string{}},
	}
	if cfg == nil {
		return in
	}
	for rule, def := range Rules {
		if !cfg.IsRuleEnabled(rule) {
			in.Config.Disabled = append(in.Config.Disabled, rule)
			continue
		}
		if sev := cfg.GetRuleSeverity(rule, def); sev != def {
			in.Config.Severity[rule] = sev
		}
	}
	sort.Strings(in.Config.Disabled)
	return in
}

// New creates a policy engine from the embedded rule set
func New(ctx context.Context) (*Engine, error) {
	files, err := fs.Glob(rulesFS, "rules/*.rego")
	if err != nil {
		return nil, fmt.Errorf("finding policy files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no embedded policy files")
	}

	var modules []func(*rego.Rego)
	for _, f := range files {
		content, err := rulesFS.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		modules = append(modules, rego.Module(f, string(content)))
	}

	engine := &Engine{queries: make(map[string]rego.PreparedEvalQuery)}
	for name, query := range map[string]string{
		"violations": "data.hdlkit.checks.all_violations",
		"summary":    "data.hdlkit.checks.summary",
	} {
		opts := append(append([]func(*rego.Rego){}, modules...), rego.Query(query))
		prepared, err := rego.New(opts...).PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", name, err)
		}
		engine.queries[name] = prepared
	}

	return engine, nil
}

// Evaluate runs the policies against the input data. Violations are
// ordered by file, line and rule.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{Violations: []Violation{}}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if violations, ok := rs[0].Expressions[0].Value.([]any); ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]any)
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					File:     getString(vmap, "file"),
					Line:     getInt(vmap, "line"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	sort.SliceStable(result.Violations, func(i, j int) bool {
		a, b := result.Violations[i], result.Violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if smap, ok := rs[0].Expressions[0].Value.(map[string]any); ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

// Helper functions
func structToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
