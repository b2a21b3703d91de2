// Package cli wires the hdlkit commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the hdlkit command tree
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "hdlkit",
		Short: "Index Verilog/SystemVerilog projects and generate boilerplate",
		Long: `hdlkit indexes the module headers of a Verilog/SystemVerilog project
(ports, parameters, instances) and answers questions about it: where a
module lives, what instantiates it, what the hierarchy looks like.

It also writes the boilerplate around a module: instantiation templates,
signal declarations, testbench skeletons and Markdown documentation.

When a filelist (*.f) exists under the root, only the files it lists are
indexed; otherwise every HDL file under the root is.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.root, "root", ".", "Project root directory")
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: search hdlkit.json)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&opts.json, "json", false, "Print machine-readable output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hdlkit %s\n", version)
		},
	}

	rootCmd.AddCommand(
		// project
		newInitCmd(opts),
		newIndexCmd(opts),
		newModulesCmd(opts),
		newFilelistCmd(opts),
		newParseCmd(opts),
		// generate
		newInstantiateCmd(opts),
		newDeclareCmd(opts),
		newTestbenchCmd(opts),
		newDocCmd(opts),
		// navigate
		newTreeCmd(opts),
		newDefCmd(opts),
		newHoverCmd(opts),
		newImpactCmd(opts),
		// analyse
		newCheckCmd(opts),
		newExportCmd(opts),
		newWatchCmd(opts),
		versionCmd,
	)

	return rootCmd
}
