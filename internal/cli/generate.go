package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/hdlkit/internal/generate"
)

// errOutdated marks a --check comparison that found differences
var errOutdated = errors.New("generated output differs from file on disk")

func newInstantiateCmd(opts *globalOptions) *cobra.Command {
	var comments bool
	var name string
	cmd := &cobra.Command{
		Use:     "instantiate <module>",
		Aliases: []string{"inst"},
		Short:   "Print an instantiation template for a module",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			m, err := requireModule(idx, args[0])
			if err != nil {
				return err
			}

			gen := idx.Config.Generate
			if name == "" && gen.InstancePrefix != "" {
				name = gen.InstancePrefix + m.Name
			}
			text := generate.Instantiation(m, generate.InstanceOptions{
				WithComments:  comments,
				InstanceName:  name,
				CommentColumn: gen.CommentColumn,
			})

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, map[string]string{"module": m.Name, "text": text})
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&comments, "comments", false, "Append // direction type to every port (needed by declare)")
	cmd.Flags().StringVar(&name, "name", "", "Instance name (default: prefix + module name)")
	return cmd
}

func newDeclareCmd(opts *globalOptions) *cobra.Command {
	var keyword string
	var ignore []string
	cmd := &cobra.Command{
		Use:   "declare [file|-]",
		Short: "Print signal declarations for a commented instantiation",
		Long: `Reads instantiation text produced by "instantiate --comments" from a
file or stdin and prints one declaration per connected signal. Constant
connections and the ignore list (clock/reset names by default) are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading instantiation: %w", err)
			}

			if !cmd.Flags().Changed("keyword") {
				keyword = cfg.Generate.SignalKeyword
			}
			if !cmd.Flags().Changed("ignore") {
				ignore = cfg.Generate.Ignore
			}
			signals := generate.ReadSignals(string(data))

			out := cmd.OutOrStdout()
			if opts.json {
				if signals == nil {
					signals = []generate.Signal{}
				}
				return writeJSON(out, signals)
			}
			fmt.Fprint(out, generate.Declarations(signals, generate.DeclareOptions{Keyword: keyword, Ignore: ignore}))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyword, "keyword", "logic", "Declaration keyword (logic, wire, reg)")
	cmd.Flags().StringSliceVar(&ignore, "ignore", generate.DefaultIgnore, "Signal names never declared")
	return cmd
}

func newTestbenchCmd(opts *globalOptions) *cobra.Command {
	var outPath string
	var force, showDiff, stdout bool
	cmd := &cobra.Command{
		Use:   "tb <module>",
		Short: "Generate a testbench skeleton (tb_<module>.sv)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			m, err := requireModule(idx, args[0])
			if err != nil {
				return err
			}

			gen := idx.Config.Generate
			text, err := generate.Testbench(m, generate.TestbenchOptions{
				Timescale:     gen.Testbench.Timescale,
				ClockPeriod:   gen.Testbench.ClockPeriod,
				ResetCycles:   gen.Testbench.ResetCycles,
				TimeoutCycles: gen.Testbench.TimeoutCycles,
				ClockPattern:  gen.ClockPattern,
				ResetPattern:  gen.ResetPattern,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stdout {
				fmt.Fprint(out, text)
				return nil
			}

			path := outPath
			if path == "" {
				path = filepath.Dir(m.SourceFile)
			}
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, generate.TestbenchFileName(m))
			}

			existing, readErr := os.ReadFile(path)
			exists := readErr == nil
			if showDiff {
				if !exists {
					existing = nil
				}
				fmt.Fprint(out, unifiedDiff(path, string(existing), text))
				return nil
			}
			if exists && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite or --diff to compare)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(text), 0644); err != nil {
				return fmt.Errorf("writing testbench: %w", err)
			}
			if opts.json {
				return writeJSON(out, map[string]string{"module": m.Name, "path": path})
			}
			fmt.Fprintf(out, "%s %s\n", styleSuccess.Render("Wrote"), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file or directory (default: next to the module)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing testbench")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "Print a unified diff against the existing file instead of writing")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the testbench instead of writing it")
	return cmd
}

var docDatePattern = regexp.MustCompile(`(?m)^\*\*Date:\*\* (\d{4}-\d{2}-\d{2})$`)

func newDocCmd(opts *globalOptions) *cobra.Command {
	var outPath string
	var check, noDate bool
	cmd := &cobra.Command{
		Use:   "doc <module>",
		Short: "Generate Markdown documentation for a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			m, err := requireModule(idx, args[0])
			if err != nil {
				return err
			}

			docOpts := generate.DocOptions{Resolver: idx}
			if !noDate {
				docOpts.Date = time.Now()
			}

			if check {
				if outPath == "" {
					return errors.New("--check needs --out")
				}
				existing, err := os.ReadFile(outPath)
				if err != nil {
					return fmt.Errorf("reading %s: %w", outPath, err)
				}
				// reuse the recorded date so only content changes count
				docOpts.Date = time.Time{}
				if match := docDatePattern.FindSubmatch(existing); match != nil {
					if d, err := time.Parse("2006-01-02", string(match[1])); err == nil {
						docOpts.Date = d
					}
				}
				text := generate.Markdown(m, docOpts)
				if diff := unifiedDiff(outPath, string(existing), text); diff != "" {
					fmt.Fprint(cmd.OutOrStdout(), diff)
					return fmt.Errorf("%s: %w", outPath, errOutdated)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date\n", outPath)
				return nil
			}

			text := generate.Markdown(m, docOpts)
			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
				return fmt.Errorf("writing doc: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleSuccess.Render("Wrote"), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&check, "check", false, "Compare with --out and fail with a diff when it is stale")
	cmd.Flags().BoolVar(&noDate, "no-date", false, "Omit the generation date")
	return cmd
}

// unifiedDiff returns "" when a and b are equal
func unifiedDiff(name, a, b string) string {
	if a == b {
		return ""
	}
	s, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLinesKeepNL(a),
		B:        splitLinesKeepNL(b),
		FromFile: name,
		ToFile:   name + " (generated)",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s (generated)\n(diff unavailable: %v)\n", name, name, err)
	}
	return s
}

func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
