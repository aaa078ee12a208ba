package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/copywrite-ai/nano-web-git/internal/controller"
	"github.com/copywrite-ai/nano-web-git/internal/explain"
	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <url>",
	Short: "Clone a repository snapshot and mirror it locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ref, _ := cmd.Flags().GetString("ref")

		return withController(cmd.Context(), func(ctx context.Context, ctl *controller.Controller) error {
			if err := ctl.Clone(ctx, args[0], ref, printNote); err != nil {
				return err
			}
			return mirrorToLocal(ctx, ctl)
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <url>",
	Short: "Refresh the snapshot and re-mirror it locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ref, _ := cmd.Flags().GetString("ref")

		return withController(cmd.Context(), func(ctx context.Context, ctl *controller.Controller) error {
			if err := ctl.Pull(ctx, args[0], ref, printNote); err != nil {
				return err
			}
			return mirrorToLocal(ctx, ctl)
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <url>",
	Short: "Clone and mirror in one shot (alias for clone)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cloneCmd.RunE(cmd, args)
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <url>",
	Short: "Clone a snapshot and list its file tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ref, _ := cmd.Flags().GetString("ref")

		return withController(cmd.Context(), func(ctx context.Context, ctl *controller.Controller) error {
			if err := ctl.Clone(ctx, args[0], ref, nil); err != nil {
				return err
			}
			entries, err := ctl.FileTree(ctx)
			if err != nil {
				return err
			}
			var names []string
			for _, e := range entries {
				if e.Dir {
					fmt.Println(cyan(e.Path + "/"))
				} else {
					names = append(names, e.Path)
					fmt.Printf("%s (%s)\n", e.Path, humanize.Bytes(uint64(e.Size)))
				}
			}
			if summary, _ := cmd.Flags().GetBool("summary"); summary {
				printSummary(ctx, names)
			}
			return nil
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <url> <path>",
	Short: "Clone a snapshot and print one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ref, _ := cmd.Flags().GetString("ref")

		return withController(cmd.Context(), func(ctx context.Context, ctl *controller.Controller) error {
			if err := ctl.Clone(ctx, args[0], ref, nil); err != nil {
				return err
			}
			data, err := ctl.ReadFile(ctx, args[1])
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		})
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain <url> <path>",
	Short: "Clone a snapshot and ask the explanation service about one file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ref, _ := cmd.Flags().GetString("ref")

		cfg := currentConfig()
		if cfg.ExplainURL == "" {
			return fmt.Errorf("no explanation service configured, set explain_url")
		}

		return withController(cmd.Context(), func(ctx context.Context, ctl *controller.Controller) error {
			if err := ctl.Clone(ctx, args[0], ref, nil); err != nil {
				return err
			}
			data, err := ctl.ReadFile(ctx, args[1])
			if err != nil {
				return err
			}

			text, err := explain.NewClient(cfg.ExplainURL).Explain(ctx, string(data), args[1])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{cloneCmd, pullCmd, syncCmd, treeCmd, catCmd, explainCmd} {
		cmd.Flags().String("ref", "", "branch, tag or commit (defaults to HEAD)")
	}
	treeCmd.Flags().Bool("summary", false, "append a one-line summary from the explanation service")
}

// printSummary is best-effort: a down or unconfigured service never fails
// the listing.
func printSummary(ctx context.Context, names []string) {
	cfg := currentConfig()
	if cfg.ExplainURL == "" {
		slog.Warn("summary requested but no explain_url configured")
		return
	}
	text, err := explain.NewClient(cfg.ExplainURL).Summarize(ctx, names)
	if err != nil {
		slog.Warn("summary unavailable", "error", err)
		return
	}
	fmt.Printf("\n%s %s\n", cyan("summary:"), text)
}

// withController runs fn against a freshly started controller and tears it
// down afterwards.
func withController(ctx context.Context, fn func(context.Context, *controller.Controller) error) error {
	ctl := controller.New(currentConfig())
	if err := ctl.Start(ctx); err != nil {
		return err
	}
	defer ctl.Stop()
	return fn(ctx, ctl)
}

// mirrorToLocal grants the configured local dir to the worker and runs a
// full-root sync.
func mirrorToLocal(ctx context.Context, ctl *controller.Controller) error {
	cfg := currentConfig()
	if err := ctl.SetLocalRoot(ctx, cfg.LocalDir); err != nil {
		return err
	}

	stats, err := ctl.SyncLocal(ctx, "", func(p *gitmsg.Progress) {
		if p.Total > 0 {
			fmt.Printf("\r%s %d/%d %s", green("sync"), p.Current, p.Total, p.Path)
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%s %d files (%d updated, %d unchanged) -> %s\n",
		green("done"), stats.TotalEntries, stats.Updated, stats.Skipped, cfg.LocalDir)
	return nil
}

func printNote(p *gitmsg.Progress) {
	if p.Note != "" {
		fmt.Println(cyan(p.Note))
	}
}
