package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/lokascript/hyperfixi/bundler"
	"github.com/lokascript/hyperfixi/runtime/analyzer"
	"github.com/lokascript/hyperfixi/runtime/compiler"
	"github.com/lokascript/hyperfixi/runtime/tiers"
)

const (
	historyFile = ".hyperfixi_history"
	promptMain  = "hf> "
)

const replHelp = `
REPL commands:
  :quit          Exit the REPL
  :tier [name]   Show or switch the parser tier
  :help          Show this help
Anything else is parsed, analyzed and compiled as a snippet.
`

func newReplCommand(g *globalOpts) *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively parse, analyze and compile snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			adapter, err := tierAdapter(cmd, g, cfg.Tier, tier)
			if err != nil {
				return err
			}
			runRepl(&replState{
				adapter:  adapter,
				session:  compiler.NewSession(),
				useColor: g.color(),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Parser tier (overrides config)")
	return cmd
}

type replState struct {
	adapter  tiers.Adapter
	session  *compiler.Session
	useColor bool
}

func runRepl(s *replState) {
	fmt.Printf("HyperFixi %s REPL (%s tier)\nCtrl+C cancels input, Ctrl+D exits. Type :help for commands.\n",
		Version, s.adapter.Tier())

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	ln.SetCompleter(s.completer)

	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return
		}

		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}

		if strings.HasPrefix(code, ":") {
			if s.meta(code) {
				return
			}
			continue
		}

		s.eval(code)
		ln.AppendHistory(code)
	}
}

// completer completes the word being typed against the current tier's
// command vocabulary.
func (s *replState) completer(line string) []string {
	cut := strings.LastIndexByte(line, ' ') + 1
	prefix, word := line[:cut], strings.ToLower(line[cut:])
	if word == "" {
		return nil
	}
	var out []string
	for _, name := range s.adapter.SupportedCommands() {
		if strings.HasPrefix(name, word) {
			out = append(out, prefix+name)
		}
	}
	return out
}

// meta handles ":" commands; it reports whether the REPL should exit.
func (s *replState) meta(code string) bool {
	fields := strings.Fields(code)
	switch strings.ToLower(fields[0]) {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Print(replHelp)
	case ":tier":
		if len(fields) < 2 {
			fmt.Printf("current tier: %s\n", s.adapter.Tier())
			return false
		}
		next, err := tiers.New(tiers.Tier(fields[1]))
		if err != nil {
			fmt.Println(Colorize(err.Error(), ColorRed, s.useColor))
			return false
		}
		s.adapter = next
		fmt.Printf("switched to %s tier\n", next.Tier())
	default:
		fmt.Println("unknown command. Type :help for commands, :quit to exit.")
	}
	return false
}

// eval runs one snippet through parse, analyze and compile, printing
// each stage's view.
func (s *replState) eval(code string) {
	res := s.adapter.Parse(code)
	FormatWarnings(os.Stdout, res.Warnings, s.useColor)
	if !res.Success {
		FormatParseError(os.Stdout, res.Error, s.useColor)
		return
	}
	FormatTree(os.Stdout, res.Node, s.useColor)

	analysis := analyzer.Analyze(res.Node)
	var traits []string
	if analysis.ControlFlow.HasAsync {
		traits = append(traits, "async")
	}
	if analysis.ControlFlow.CanThrow {
		traits = append(traits, "throws")
	}
	if helpers := analysis.Dependencies.RuntimeHelpers; len(helpers) > 0 {
		traits = append(traits, "helpers: "+strings.Join(helpers, ", "))
	}
	if len(traits) > 0 {
		fmt.Println(Colorize(strings.Join(traits, " | "), ColorGray, s.useColor))
	}

	if handler := s.session.Compile(code); handler != nil {
		fmt.Println(Colorize(handler.Code, ColorGreen, s.useColor))
	} else {
		fmt.Printf("%s %s\n",
			Colorize("runtime fallback:", ColorYellow, s.useColor),
			bundler.FallbackReason(code))
	}
}
