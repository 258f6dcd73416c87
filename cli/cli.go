// Package cli implements the hyperfixi command set: project builds and
// scans, single-snippet inspection (parse/analyze/compile), the
// development server, and a REPL.
package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/lokascript/hyperfixi/core/config"
)

// Version is reported by `hyperfixi version` and the REPL banner.
const Version = "0.4.0"

// Exit code constants
const (
	ExitSuccess = 0
	ExitUsage   = 1
	ExitIOError = 2
	ExitParse   = 3
	ExitBuild   = 4
)

// exitError carries an exit code out through cobra. Commands print
// their own diagnostics before returning one; Run only maps the code.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exit(code int) error { return &exitError{code: code} }

// globalOpts holds the persistent flags every subcommand shares.
type globalOpts struct {
	configPath string
	noColor    bool
}

func (g *globalOpts) color() bool { return ShouldUseColor(g.noColor) }

// loadConfig resolves project configuration: the --config path when
// given, otherwise hyperfixi.json in the working directory, otherwise
// defaults. Debug switches are exported as soon as the config is known.
func (g *globalOpts) loadConfig(stderr io.Writer) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.LoadDir(".")
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s%v\n", Colorize("Error: ", ColorRed, g.color()), err)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, exit(ExitIOError)
		}
		return nil, exit(ExitUsage)
	}
	cfg.Debug.Apply()
	return cfg, nil
}

// NewRootCommand builds the hyperfixi command tree.
func NewRootCommand() *cobra.Command {
	g := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:   "hyperfixi",
		Short: "Compile hyperscript-style DOM snippets ahead of time",
		Long: `hyperfixi scans templates for _/data-hs snippets, compiles the safe
subset to plain event handlers, and bundles them with a loader; anything
it cannot prove safe falls back to the runtime interpreter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to hyperfixi.json (default: ./hyperfixi.json if present)")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newBuildCommand(g),
		newScanCommand(g),
		newParseCommand(g),
		newAnalyzeCommand(g),
		newCompileCommand(g),
		newServeCommand(g),
		newReplCommand(g),
		newVersionCommand(),
	)

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hyperfixi version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hyperfixi %s\n", Version)
		},
	}
}

// Run executes the command line and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		// Cobra's own flag and argument errors arrive unprinted.
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}
	return ExitSuccess
}

// Main is the cmd/hyperfixi entry point.
func Main() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}
