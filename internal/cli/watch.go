package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/hdlkit/internal/facts"
	"github.com/robert-at-pretension-io/hdlkit/internal/watcher"
)

// watchRecord is one JSON line printed per applied change
type watchRecord struct {
	Event   string      `json:"event"`
	Path    string      `json:"path"`
	Outcome string      `json:"outcome"`
	Error   string      `json:"error,omitempty"`
	Delta   facts.Delta `json:"delta"`
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index current and report fact changes as files are edited",
		Long: `Indexes the project, then follows file system events under the root.
Each change is applied incrementally and reported with the fact rows it
added and removed. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, stats, err := opts.openIndex(cmd, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !opts.json {
				fmt.Fprintf(out, "Watching %s (%d modules, %d files)\n", idx.Root, stats.Modules, stats.Files)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var keep map[string]bool
			if len(only) > 0 {
				keep = make(map[string]bool, len(only))
				for _, f := range only {
					abs, err := filepath.Abs(f)
					if err != nil {
						return err
					}
					keep[abs] = true
				}
			}

			var mu sync.Mutex
			prev := facts.BuildTables(idx.Snapshot())

			w := watcher.New(idx, idx.Root, idx.Config)
			w.OnChange = func(c watcher.Change) {
				mu.Lock()
				defer mu.Unlock()

				next := facts.BuildTables(idx.Snapshot())
				delta := facts.ComputeDelta(prev, next)
				prev = next
				if keep != nil {
					delta = facts.FilterDeltaByFiles(delta, keep)
				}

				if opts.json {
					rec := watchRecord{
						Event:   c.Event.Kind.String(),
						Path:    c.Event.Path,
						Outcome: c.Outcome.String(),
						Delta:   delta,
					}
					if c.Err != nil {
						rec.Error = c.Err.Error()
					}
					if err := json.NewEncoder(out).Encode(rec); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
					}
					return
				}

				line := fmt.Sprintf("%-6s %s (%s) +%d -%d",
					c.Event.Kind, relPath(idx.Root, c.Event.Path), c.Outcome,
					delta.Added.Count(), delta.Removed.Count())
				if c.Err != nil {
					fmt.Fprintf(out, "%s %s\n", styleError.Render(line), c.Err)
					return
				}
				fmt.Fprintln(out, line)
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringSliceVar(&only, "file", nil, "Only report fact rows from these source files (repeatable)")
	return cmd
}
