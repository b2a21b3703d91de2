package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/hdlkit/internal/facts"
	"github.com/robert-at-pretension-io/hdlkit/internal/indexer"
	"github.com/robert-at-pretension-io/hdlkit/internal/policy"
	"github.com/robert-at-pretension-io/hdlkit/internal/store"
	"github.com/robert-at-pretension-io/hdlkit/internal/validator"
)

// errCheckFailed is returned when a design check reports an error
var errCheckFailed = errors.New("design checks reported errors")

// validatedTables builds the fact tables for the current index and checks
// them against the CUE contract
func validatedTables(idx *indexer.Index, errW io.Writer) (facts.Tables, error) {
	tables := facts.BuildTables(idx.Snapshot())

	v, err := validator.NewFactsValidator()
	if err != nil {
		return facts.Tables{}, fmt.Errorf("loading fact schema: %w", err)
	}
	if err := v.Validate(tables); err != nil {
		for _, msg := range v.ValidationErrors(tables) {
			fmt.Fprintf(errW, "  %s\n", msg)
		}
		return facts.Tables{}, fmt.Errorf("fact tables violate the schema: %w", err)
	}
	return tables, nil
}

func runChecks(ctx context.Context, idx *indexer.Index, errW io.Writer) (*policy.Result, error) {
	tables, err := validatedTables(idx, errW)
	if err != nil {
		return nil, err
	}
	engine, err := policy.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading checks: %w", err)
	}
	return engine.Evaluate(ctx, policy.NewInput(tables, idx.Config))
}

func severityStyle(sev string) func(...string) string {
	switch sev {
	case "error":
		return styleError.Render
	case "warning":
		return styleWarning.Render
	default:
		return styleInfo.Render
	}
}

func printViolations(w io.Writer, root string, result *policy.Result) {
	for _, v := range result.Violations {
		loc := relPath(root, v.File)
		if v.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, v.Line)
		}
		fmt.Fprintf(w, "%s: %s [%s] %s\n", loc, severityStyle(v.Severity)(v.Severity), v.Rule, v.Message)
	}
	s := result.Summary
	if s.TotalViolations == 0 {
		fmt.Fprintln(w, styleSuccess.Render("No issues found"))
		return
	}
	fmt.Fprintf(w, "%d issues: %d errors, %d warnings, %d info\n", s.TotalViolations, s.Errors, s.Warnings, s.Info)
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run design checks over the index",
		Long: `Runs the built-in design checks over the indexed modules:

  duplicate_module     a module name defined in more than one file
  black_box_instance   an instance of a module that is not indexed
  self_instantiation   a module that instantiates itself
  empty_port_list      a port-less module that something instantiates

Severities come from the "checks" section of hdlkit.json; "off" disables a
check. The command fails when any error-severity issue is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			result, err := runChecks(cmd.Context(), idx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				ov, err := validator.NewOutputValidator()
				if err != nil {
					return err
				}
				if err := ov.Validate(result); err != nil {
					return fmt.Errorf("check output violates the schema: %w", err)
				}
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else {
				printViolations(out, idx.Root, result)
			}

			if result.Summary.Errors > 0 {
				return errCheckFailed
			}
			return nil
		},
	}
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var format, outPath, deltaFrom string
	var only []string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the index as fact tables (json, yaml or sqlite)",
		Long: `Exports the index as flat fact tables: files, modules, ports,
parameters, instances and duplicates. The tables are validated against
the built-in schema before they are written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			switch format {
			case "json", "yaml", "sqlite":
			default:
				return fmt.Errorf("unknown format %q (want json, yaml or sqlite)", format)
			}
			if format == "sqlite" && outPath == "" {
				return errors.New("sqlite export needs --out")
			}
			if format == "sqlite" && deltaFrom != "" {
				return errors.New("--delta-from works with json and yaml only")
			}

			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			tables, err := validatedTables(idx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if len(only) > 0 {
				keep := make(map[string]bool, len(only))
				for _, f := range only {
					abs, err := filepath.Abs(f)
					if err != nil {
						return err
					}
					keep[abs] = true
				}
				tables = facts.FilterTablesByFiles(tables, keep)
			}

			var payload any = tables
			if deltaFrom != "" {
				prev, err := readTables(deltaFrom)
				if err != nil {
					return err
				}
				payload = facts.ComputeDelta(prev, tables)
			}

			if format == "sqlite" {
				if err := store.ExportSQLite(cmd.Context(), outPath, tables); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d rows to %s\n", styleSuccess.Render("Exported"), tables.Count(), outPath)
				return nil
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
					return err
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}

			if format == "yaml" {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(payload); err != nil {
					return fmt.Errorf("encoding yaml: %w", err)
				}
				return enc.Close()
			}
			return writeJSON(w, payload)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, yaml or sqlite")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (required for sqlite, default stdout otherwise)")
	cmd.Flags().StringVar(&deltaFrom, "delta-from", "", "Print the rows added and removed since a previous JSON export")
	cmd.Flags().StringSliceVar(&only, "file", nil, "Only export rows from these source files (repeatable)")
	return cmd
}

// readTables loads a previous JSON export after checking it against the
// fact schema
func readTables(path string) (facts.Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return facts.Tables{}, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := validator.NewFactsValidator()
	if err != nil {
		return facts.Tables{}, fmt.Errorf("loading fact schema: %w", err)
	}
	if err := v.ValidateJSON(data); err != nil {
		return facts.Tables{}, fmt.Errorf("%s is not a fact export: %w", path, err)
	}
	var tables facts.Tables
	if err := json.Unmarshal(data, &tables); err != nil {
		return facts.Tables{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return tables, nil
}
