package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lokascript/hyperfixi/bundler"
	"github.com/lokascript/hyperfixi/runtime/analyzer"
	"github.com/lokascript/hyperfixi/runtime/compiler"
	"github.com/lokascript/hyperfixi/runtime/parser"
	"github.com/lokascript/hyperfixi/runtime/tiers"
)

// readSource handles the 3 modes of snippet input:
// 1. Inline argument
// 2. Explicit file with -f (or stdin with -f -)
// 3. Piped input (auto-detected)
func readSource(cmd *cobra.Command, args []string, file string, g *globalOpts) (string, error) {
	stderr := cmd.ErrOrStderr()

	if file == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
			return "", exit(ExitIOError)
		}
		return string(data), nil
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
			return "", exit(ExitIOError)
		}
		return string(data), nil
	}

	if len(args) > 0 {
		return args[0], nil
	}

	if hasPipedInput() {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
			return "", exit(ExitIOError)
		}
		return string(data), nil
	}

	fmt.Fprintf(stderr, "%sno snippet: pass one inline, with --file, or on stdin\n",
		Colorize("Error: ", ColorRed, g.color()))
	return "", exit(ExitUsage)
}

// hasPipedInput detects if there's data piped to stdin
func hasPipedInput() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}

	// Check if stdin is not a character device (i.e., it's piped)
	// Note: We don't check Size() > 0 because pipes may not report size correctly
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// tierAdapter resolves the effective tier (flag beats config).
func tierAdapter(cmd *cobra.Command, g *globalOpts, cfgTier, flagTier string) (tiers.Adapter, error) {
	name := cfgTier
	if flagTier != "" {
		name = flagTier
	}
	adapter, err := tiers.New(tiers.Tier(name))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
		return nil, exit(ExitUsage)
	}
	return adapter, nil
}

func newParseCommand(g *globalOpts) *cobra.Command {
	var (
		file string
		tier string
	)

	cmd := &cobra.Command{
		Use:   "parse [snippet]",
		Short: "Parse a snippet and print its tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			cfg, err := g.loadConfig(stderr)
			if err != nil {
				return err
			}
			adapter, err := tierAdapter(cmd, g, cfg.Tier, tier)
			if err != nil {
				return err
			}
			source, err := readSource(cmd, args, file, g)
			if err != nil {
				return err
			}

			res := adapter.Parse(source)
			FormatWarnings(stderr, res.Warnings, g.color())
			if !res.Success {
				FormatParseError(stderr, res.Error, g.color())
				return exit(ExitParse)
			}
			FormatTree(stdout, res.Node, g.color())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `Read the snippet from a file ("-" for stdin)`)
	cmd.Flags().StringVar(&tier, "tier", "", "Parser tier (overrides config)")
	return cmd
}

func newAnalyzeCommand(g *globalOpts) *cobra.Command {
	var (
		file string
		tier string
	)

	cmd := &cobra.Command{
		Use:   "analyze [snippet]",
		Short: "Print a snippet's static analysis as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			cfg, err := g.loadConfig(stderr)
			if err != nil {
				return err
			}
			adapter, err := tierAdapter(cmd, g, cfg.Tier, tier)
			if err != nil {
				return err
			}
			source, err := readSource(cmd, args, file, g)
			if err != nil {
				return err
			}

			res := adapter.Parse(source)
			if !res.Success {
				FormatParseError(stderr, res.Error, g.color())
				return exit(ExitParse)
			}

			view := newAnalysisView(analyzer.Analyze(res.Node))
			data, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
				return exit(ExitIOError)
			}
			fmt.Fprintf(stdout, "%s\n", data)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `Read the snippet from a file ("-" for stdin)`)
	cmd.Flags().StringVar(&tier, "tier", "", "Parser tier (overrides config)")
	return cmd
}

func newCompileCommand(g *globalOpts) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "compile [snippet]",
		Short: "Compile one snippet to a plain event handler",
		Long: `Compile prints the generated handler function for a snippet, or the
reason it must fall back to the runtime interpreter.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			if _, err := g.loadConfig(stderr); err != nil {
				return err
			}
			source, err := readSource(cmd, args, file, g)
			if err != nil {
				return err
			}

			if res := parser.Parse(source); !res.Success {
				FormatParseError(stderr, res.Error, g.color())
				return exit(ExitParse)
			}

			handler := compiler.NewSession().Compile(source)
			if handler == nil {
				fmt.Fprintf(stderr, "%s %s\n",
					Colorize("needs the runtime:", ColorYellow, g.color()),
					bundler.FallbackReason(source))
				return exit(ExitBuild)
			}

			note := fmt.Sprintf("compiled %s for %q", handler.ID, handler.Event)
			if !handler.Modifiers.Empty() {
				note += " with " + strings.TrimPrefix(handler.Modifiers.String(), ".")
			}
			fmt.Fprintln(stderr, Colorize(note, ColorGray, g.color()))
			if handler.NeedsEvaluator {
				fmt.Fprintln(stderr, Colorize("note: interpolations use the expression evaluator at runtime", ColorYellow, g.color()))
			}
			fmt.Fprintln(stdout, handler.Code)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `Read the snippet from a file ("-" for stdin)`)
	return cmd
}
