package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/hdlkit/internal/indexer"
	"github.com/robert-at-pretension-io/hdlkit/internal/nav"
)

func newTreeCmd(opts *globalOptions) *cobra.Command {
	var top string
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the instance hierarchy",
		Long: `Prints the instance tree under --top, or one tree per root module (a
module nothing else instantiates) when --top is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			if top != "" {
				if _, err := requireModule(idx, top); err != nil {
					return err
				}
			}

			nodes := nav.Hierarchy(idx, top)
			out := cmd.OutOrStdout()
			if opts.json {
				if nodes == nil {
					nodes = []*nav.Node{}
				}
				return writeJSON(out, nodes)
			}
			if len(nodes) == 0 {
				fmt.Fprintln(out, styleSubtle.Render("no modules indexed"))
				return nil
			}
			fmt.Fprintln(out, nav.RenderTree(nodes))
			fmt.Fprintf(out, "%d instances\n", nav.Count(nodes)-len(nodes))
			return nil
		},
	}
	cmd.Flags().StringVar(&top, "top", "", "Top module (default: every root module)")
	return cmd
}

// wordArg returns the identifier named on the command line or found under
// the --at position
func wordArg(args []string, at string) (string, error) {
	if at == "" {
		if len(args) != 1 {
			return "", errors.New("need a module name or --at file:line:col")
		}
		return args[0], nil
	}
	file, line, col, err := nav.ParsePosition(at)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	word := nav.WordAt(string(data), line, col)
	if word == "" {
		return "", fmt.Errorf("no identifier at %s", at)
	}
	return word, nil
}

func newDefCmd(opts *globalOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "def [module]",
		Short: "Print where a module is defined (file:line:col)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			word, err := wordArg(args, at)
			if err != nil {
				return err
			}
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			loc, ok := nav.Definition(idx, word)
			if !ok {
				_, err := requireModule(idx, word)
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, map[string]any{"module": word, "location": loc})
			}
			fmt.Fprintf(out, "%s:%d:%d\n", loc.File, loc.Line, loc.Column)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Resolve the identifier at file:line:col")
	return cmd
}

func newHoverCmd(opts *globalOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "hover [module]",
		Short: "Print a module summary: file, parameters and ports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			word, err := wordArg(args, at)
			if err != nil {
				return err
			}
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			m, err := requireModule(idx, word)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, m)
			}
			fmt.Fprint(out, nav.Hover(m))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Describe the identifier at file:line:col")
	return cmd
}

func newImpactCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "impact <module>",
		Short: "List the modules affected by a change to a module",
		Long: `Walks the instantiation graph upwards from a module and prints every
module that instantiates it, directly or transitively, grouped by distance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			if _, ok := idx.GetModule(args[0]); !ok && len(idx.Dependents(args[0])) == 0 {
				_, err := requireModule(idx, args[0])
				return err
			}

			report := idx.Impact(args[0])
			out := cmd.OutOrStdout()
			if opts.json {
				if report.Levels == nil {
					report.Levels = [][]string{}
				}
				return writeJSON(out, report)
			}
			fmt.Fprintln(out, styleTitle.Render("Impact of changing "+args[0]))
			fmt.Fprint(out, indexer.FormatImpact(report))
			fmt.Fprintf(out, "%d affected modules\n", len(report.Modules()))
			return nil
		},
	}
}
