// Package tiers fronts the parser implementations shipped at different
// size points. Embedders name a tier, the factory hands back a uniform
// Adapter, and every adapter emits the same AST vocabulary, so the
// analyzer and the compiler never care which grammar produced a node.
package tiers

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
	"github.com/lokascript/hyperfixi/runtime/parser"
	"github.com/lokascript/hyperfixi/runtime/standard"
)

// Tier names one parser implementation. The set is closed.
type Tier string

const (
	// Lite is the standard grammar restricted to the class and
	// visibility primitives.
	Lite Tier = "lite"

	// Standard is the self-contained reduced parser: single commands,
	// event handlers with modifiers, simplified expressions.
	Standard Tier = "standard"

	// Full is the complete grammar: blocks, behaviors, the whole
	// expression language.
	Full Tier = "full"
)

func (t Tier) String() string { return string(t) }

// Capabilities describes what a tier's grammar accepts. The flags are
// honest: an adapter never parses a construct its capabilities deny.
type Capabilities struct {
	FullExpressions bool
	BlockCommands   bool
	EventModifiers  bool
	SemanticParsing bool
	Behaviors       bool
	Functions       bool
	AsyncCommands   bool
}

// Adapter is the uniform face over one tier's parser.
type Adapter interface {
	Parse(code string) parser.Result
	SupportsCommand(name string) bool
	SupportedCommands() []string
	Capabilities() Capabilities
	Tier() Tier
}

// New returns the adapter for tier. Unknown names fail, with a
// suggestion when one of the known tiers is close.
func New(tier Tier) (Adapter, error) {
	switch tier {
	case Lite:
		return liteAdapter{}, nil
	case Standard:
		return standardAdapter{}, nil
	case Full:
		return fullAdapter{}, nil
	}
	msg := fmt.Sprintf("Unknown parser tier: %s", tier)
	if near := nearestTier(string(tier)); near != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, near)
	}
	return nil, errors.New(msg)
}

func nearestTier(name string) string {
	ranked := fuzzy.RankFindFold(name, []string{string(Lite), string(Standard), string(Full)})
	if len(ranked) == 0 {
		return ""
	}
	sort.Sort(ranked)
	return ranked[0].Target
}

// Usage summarizes what a body of markup actually uses, as reported by
// the bundle scanner.
type Usage struct {
	Commands   []string
	Blocks     bool
	Positional bool
}

// Recommend maps scanned usage to the smallest tier whose grammar
// covers it. Block commands and positional selectors only exist in the
// full grammar; a command no smaller tier knows also forces full.
func Recommend(u Usage) Tier {
	if u.Blocks || u.Positional {
		return Full
	}
	tier := Lite
	for _, c := range u.Commands {
		name := strings.ToLower(c)
		if !standard.SupportsCommand(name) {
			return Full
		}
		if !liteCommands[commands.Name(name)] {
			tier = Standard
		}
	}
	return tier
}

// fullAdapter fronts runtime/parser.
type fullAdapter struct{}

func (fullAdapter) Parse(code string) parser.Result { return parser.Parse(code) }

func (fullAdapter) SupportsCommand(name string) bool { return commands.IsCommand(name) }

func (fullAdapter) SupportedCommands() []string {
	all := commands.All()
	names := make([]string, len(all))
	for i, n := range all {
		names[i] = string(n)
	}
	return names
}

func (fullAdapter) Capabilities() Capabilities {
	return Capabilities{
		FullExpressions: true,
		BlockCommands:   true,
		EventModifiers:  true,
		SemanticParsing: true,
		Behaviors:       true,
		Functions:       true,
		AsyncCommands:   true,
	}
}

func (fullAdapter) Tier() Tier { return Full }

// standardAdapter fronts runtime/standard.
type standardAdapter struct{}

func (standardAdapter) Parse(code string) parser.Result { return standard.Parse(code) }

func (standardAdapter) SupportsCommand(name string) bool { return standard.SupportsCommand(name) }

func (standardAdapter) SupportedCommands() []string { return standard.SupportedCommands() }

func (standardAdapter) Capabilities() Capabilities {
	return Capabilities{EventModifiers: true, AsyncCommands: true}
}

func (standardAdapter) Tier() Tier { return Standard }

// liteCommands is the lite vocabulary: the class and visibility
// primitives that cover sprinkle-level markup.
var liteCommands = map[commands.Name]bool{
	commands.Toggle: true,
	commands.Add:    true,
	commands.Remove: true,
	commands.Show:   true,
	commands.Hide:   true,
}

// liteAdapter reuses the standard grammar and rejects any command
// outside the lite vocabulary after the parse. Desugared commands are
// reported under the verb the author wrote.
type liteAdapter struct{}

func (liteAdapter) Parse(code string) parser.Result {
	res := standard.Parse(code)
	if !res.Success {
		return res
	}
	for _, cmd := range ast.Commands(res.Node) {
		name := cmd.Name
		if cmd.OriginalCommand != "" {
			name = cmd.OriginalCommand
		}
		if liteCommands[name] {
			continue
		}
		return parser.Result{Error: &parser.ParseError{
			Kind:    parser.ErrorUnknownCommand,
			Message: fmt.Sprintf("command %q is not available in the lite tier", name),
			Pos:     cmd.Pos,
			Input:   code,
		}}
	}
	return res
}

func (liteAdapter) SupportsCommand(name string) bool {
	return liteCommands[commands.Name(name)]
}

func (liteAdapter) SupportedCommands() []string {
	out := make([]string, 0, len(liteCommands))
	for n := range liteCommands {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}

func (liteAdapter) Capabilities() Capabilities {
	return Capabilities{EventModifiers: true}
}

func (liteAdapter) Tier() Tier { return Lite }
