// Package validator guards the contracts between the index and its
// consumers. Fact tables are checked against a CUE schema before design
// checks or exporters see them, so a malformed row fails loudly instead of
// silently skipping a rule.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed facts_schema.cue output_schema.cue
var schemaFS embed.FS

type schema struct {
	ctx  *cue.Context
	def  cue.Value
	name string
}

func loadSchema(file, definition string) (*schema, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", file, err)
	}

	compiled := ctx.CompileBytes(schemaBytes)
	if compiled.Err() != nil {
		return nil, fmt.Errorf("compiling %s: %w", file, compiled.Err())
	}

	def := compiled.LookupPath(cue.ParsePath(definition))
	if def.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", definition, def.Err())
	}

	return &schema{ctx: ctx, def: def, name: definition}, nil
}

func (s *schema) unify(data any) (cue.Value, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return cue.Value{}, fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return s.unifyJSON(jsonBytes)
}

func (s *schema) unifyJSON(jsonBytes []byte) (cue.Value, error) {
	dataValue := s.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling data as CUE: %w", dataValue.Err())
	}
	return s.def.Unify(dataValue), nil
}

func (s *schema) validate(data any) error {
	unified, err := s.unify(data)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("%s validation failed: %w", s.name, err)
	}
	return nil
}

// errorList flattens every CUE error into one line each
func (s *schema) errorList(data any) []string {
	unified, err := s.unify(data)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate()
	if err == nil {
		return nil
	}
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	schema *schema
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	s, err := loadSchema("facts_schema.cue", "#FactTables")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{schema: s}, nil
}

// Validate checks that the fact tables conform to the facts schema.
func (v *FactsValidator) Validate(data any) error {
	return v.schema.validate(data)
}

// ValidateJSON validates an exported facts document
func (v *FactsValidator) ValidateJSON(jsonBytes []byte) error {
	unified, err := v.schema.unifyJSON(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("#FactTables validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns one entry per schema violation, or nil
func (v *FactsValidator) ValidationErrors(data any) []string {
	return v.schema.errorList(data)
}

// OutputValidator validates check output against the output schema
type OutputValidator struct {
	schema *schema
}

// NewOutputValidator creates a validator for check output
func NewOutputValidator() (*OutputValidator, error) {
	s, err := loadSchema("output_schema.cue", "#CheckOutput")
	if err != nil {
		return nil, err
	}
	return &OutputValidator{schema: s}, nil
}

// Validate checks that the output data conforms to the output schema
func (v *OutputValidator) Validate(data any) error {
	return v.schema.validate(data)
}
