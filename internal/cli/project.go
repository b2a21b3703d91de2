package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/hdlkit/internal/config"
	"github.com/robert-at-pretension-io/hdlkit/internal/extractor"
	"github.com/robert-at-pretension-io/hdlkit/internal/filelist"
	"github.com/robert-at-pretension-io/hdlkit/internal/indexer"
	"github.com/robert-at-pretension-io/hdlkit/internal/nav"
	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an hdlkit.json configuration file in the project root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(opts.root, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			if err := config.DefaultConfig().Save(path); err != nil {
				return fmt.Errorf("creating config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)
			fmt.Fprintln(out, "\nEdit this file to configure:")
			fmt.Fprintln(out, "  - HDL extensions, filelist pattern and excluded directories")
			fmt.Fprintln(out, "  - Generator defaults (signal keyword, testbench timing)")
			fmt.Fprintln(out, "  - Design check severities")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	return cmd
}

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var progress, timing bool
	var timingPath string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Scan the project and print an index summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			root, err := opts.absRoot()
			if err != nil {
				return err
			}
			idx := indexer.New(root, cfg)
			idx.JSONOutput = opts.json
			idx.Progress = progress
			idx.Timing = timing
			idx.TimingPath = timingPath

			stats, err := idx.RescanAll(cmd.Context())
			if err != nil {
				return err
			}
			dups := idx.Duplicates()

			out := cmd.OutOrStdout()
			if opts.json {
				errs := []string{}
				for _, e := range stats.Errors {
					errs = append(errs, e.Error())
				}
				return writeJSON(out, map[string]any{
					"stats":      stats,
					"errors":     errs,
					"duplicates": dups,
				})
			}

			fmt.Fprintf(out, "Indexed %d modules from %d files in %s\n",
				stats.Modules, stats.Files, stats.Duration.Round(time.Millisecond))
			for _, fl := range stats.Filelists {
				fmt.Fprintf(out, "  filelist: %s\n", relPath(root, fl))
			}
			if stats.CacheHits > 0 {
				fmt.Fprintf(out, "  cache hits: %d\n", stats.CacheHits)
			}
			for _, f := range stats.NoModule {
				fmt.Fprintf(out, "  %s %s\n", styleSubtle.Render("no module:"), relPath(root, f))
			}
			for _, e := range stats.Errors {
				fmt.Fprintf(out, "  %s %v\n", styleError.Render("failed:"), e)
			}
			for _, d := range dups {
				fmt.Fprintf(out, "  %s %s defined in %d files, using %s\n",
					styleWarning.Render("duplicate:"), d.Name, len(d.Shadowed)+1, relPath(root, d.Winner))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "Print per-file progress")
	cmd.Flags().BoolVar(&timing, "timing", false, "Write JSONL timing events")
	cmd.Flags().StringVar(&timingPath, "timing-path", "", "Timing output path (default <root>/timing.jsonl)")
	return cmd
}

func newModulesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List all indexed modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, _, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			modules := idx.GetAllModules()
			out := cmd.OutOrStdout()
			if opts.json {
				if modules == nil {
					modules = []*symbols.Module{}
				}
				return writeJSON(out, modules)
			}

			width := 0
			for _, m := range modules {
				width = max(width, len(m.Name))
			}
			for _, m := range modules {
				fmt.Fprintf(out, "%-*s  %s  %s\n", width, m.Name,
					styleSubtle.Render(fmt.Sprintf("%s:%d", relPath(idx.Root, m.SourceFile), m.Location.Line)),
					fmt.Sprintf("%d ports, %d params, %d instances", len(m.Ports), len(m.Parameters), len(m.Instances)))
			}
			fmt.Fprintf(out, "%d modules\n", len(modules))
			return nil
		},
	}
}

func newFilelistCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filelist <file>",
		Short: "Print the HDL files a filelist resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := filelist.ResolveDetailed(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				if res.Files == nil {
					res.Files = []string{}
				}
				return writeJSON(out, res)
			}
			for _, f := range res.Files {
				fmt.Fprintln(out, f)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], w)
			}
			return nil
		},
	}
}

func newParseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse one HDL file and print what the extractor sees",
		Long: `Runs the header extractor on a single file, without indexing the
project, and prints the module, its parameters, ports and instances.
Useful when a module is missing from the index or a port looks wrong.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout := cfg.ParseTimeout(); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			ex := extractor.NewWithOptions(afero.NewOsFs(), extractor.Options{MaxHeaderBytes: cfg.Analysis.MaxHeaderBytes})
			m, err := ex.Extract(ctx, args[0])
			if errors.Is(err, extractor.ErrNoModule) {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, m)
			}
			fmt.Fprint(out, nav.Hover(m))
			if len(m.Instances) > 0 {
				fmt.Fprintln(out, "\nInstances:")
				for _, inst := range m.Instances {
					fmt.Fprintf(out, "%s : %s  %s\n", inst.Name, inst.Type,
						styleSubtle.Render(fmt.Sprintf("line %d", inst.Location.Line)))
				}
			}
			return nil
		},
	}
}
