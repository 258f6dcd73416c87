package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lokascript/hyperfixi/bundler"
	"github.com/lokascript/hyperfixi/runtime/tiers"
)

func newScanCommand(g *globalOpts) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Report hyperscript usage across template trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			cfg, err := g.loadConfig(stderr)
			if err != nil {
				return err
			}
			roots := cfg.Roots
			if len(args) > 0 {
				roots = args
			}

			scanner := bundler.NewScanner(cfg.Extensions, cfg.Exclude)
			usage, err := scanner.ScanRoots(roots)
			if err != nil {
				fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
				return exit(ExitIOError)
			}
			agg := bundler.Aggregate(usage)

			if asJSON {
				tier := tiers.Recommend(tiers.Usage{
					Commands:   agg.CommandList(),
					Blocks:     len(agg.Blocks) > 0,
					Positional: agg.Positional,
				})
				report := struct {
					Usage           *bundler.AggregatedUsage      `json:"usage"`
					Files           map[string]*bundler.FileUsage `json:"files"`
					RecommendedTier string                        `json:"recommended_tier"`
				}{agg, agg.Files, string(tier)}
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
					return exit(ExitIOError)
				}
				fmt.Fprintf(stdout, "%s\n", data)
				return nil
			}

			writeScanReport(stdout, agg, g.color())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}
