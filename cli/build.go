package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lokascript/hyperfixi/bundler"
	"github.com/lokascript/hyperfixi/runtime/tiers"
)

func newBuildCommand(g *globalOpts) *cobra.Command {
	var (
		out     string
		tier    string
		watch   bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "build [roots...]",
		Short: "Compile template snippets into a handler bundle",
		Long: `Build scans the configured roots (or the given paths), compiles every
unique snippet it can prove safe, and writes the bundle, its manifest
and the compile cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			cfg, err := g.loadConfig(stderr)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Roots = args
			}
			if out != "" {
				cfg.Out = out
			}
			if tier != "" {
				cfg.Tier = tier
			}
			if _, err := tiers.New(tiers.Tier(cfg.Tier)); err != nil {
				fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
				return exit(ExitUsage)
			}

			if watch {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				err := bundler.Watch(ctx, cfg, noCache, func(res *bundler.BuildResult, err error) {
					if err != nil {
						fmt.Fprintf(stderr, "%s%v\n", Colorize("build failed: ", ColorRed, g.color()), err)
						return
					}
					printBuildSummary(stdout, res, g.color())
				})
				if err != nil {
					fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
					return exit(ExitBuild)
				}
				return nil
			}

			res, err := bundler.Build(cfg, noCache)
			if err != nil {
				fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
				return exit(ExitBuild)
			}
			if err := res.WriteOutputs(cfg); err != nil {
				fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
				return exit(ExitIOError)
			}
			printBuildSummary(stdout, res, g.color())
			fmt.Fprintf(stdout, "wrote %s and %s\n", cfg.Out, cfg.Manifest)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Bundle output path (overrides config)")
	cmd.Flags().StringVar(&tier, "tier", "", "Parser tier: lite, standard or full (overrides config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild on template changes until interrupted")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore and do not write the compile cache")
	return cmd
}
