package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lokascript/hyperfixi/bundler"
	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/runtime/analyzer"
	"github.com/lokascript/hyperfixi/runtime/parser"
	"github.com/lokascript/hyperfixi/runtime/tiers"
)

// FormatParseError renders a parse failure: the pointed first line in
// red, the caret snippet and suggestions dimmed beneath it.
func FormatParseError(w io.Writer, err *parser.ParseError, useColor bool) {
	first, rest, multiline := strings.Cut(err.Error(), "\n")
	fmt.Fprintln(w, Colorize(first, ColorRed, useColor))
	if multiline && rest != "" {
		fmt.Fprintln(w, Colorize(rest, ColorGray, useColor))
	}
}

// FormatWarnings renders the parser's lenient-recovery warnings.
func FormatWarnings(w io.Writer, warnings []parser.Warning, useColor bool) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "%s %s (line %d)\n",
			Colorize("warning:", ColorYellow, useColor), warning.Message, warning.Pos.Line)
	}
}

// FormatTree renders a parsed script as a tree structure to the given
// writer, one node per line with the nesting the parser saw.
func FormatTree(w io.Writer, node ast.Node, useColor bool) {
	fmt.Fprintln(w, nodeSummary(node, useColor))
	renderTreeChildren(w, nodeChildren(node), "", useColor)
}

// treeChild is one child line: an optional role label plus the node.
type treeChild struct {
	label string
	node  ast.Node
}

func renderTreeChildren(w io.Writer, children []treeChild, indent string, useColor bool) {
	for i, c := range children {
		prefix := indent + "├─ "
		if i == len(children)-1 {
			prefix = indent + "└─ "
		}
		label := ""
		if c.label != "" {
			label = Colorize(c.label+": ", ColorGray, useColor)
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, label, nodeSummary(c.node, useColor))
		renderTreeChildren(w, nodeChildren(c.node), indent+"   ", useColor)
	}
}

// nodeSummary renders one node's header line, without its children.
func nodeSummary(node ast.Node, useColor bool) string {
	switch n := node.(type) {
	case *ast.EventHandler:
		s := Colorize("on "+n.Event+n.Modifiers.String(), ColorBlue, useColor)
		if n.Filter != nil {
			s += fmt.Sprintf(" [%s]", n.Filter)
		}
		if n.From != nil {
			s += " from " + n.From.String()
		}
		return s
	case *ast.Init:
		return Colorize("init", ColorBlue, useColor)
	case *ast.Every:
		return Colorize("every", ColorBlue, useColor) + " " + n.Interval.String()
	case *ast.Behavior:
		head := Colorize("behavior", ColorBlue, useColor) + " " + n.Name
		if len(n.Params) > 0 {
			head += "(" + strings.Join(n.Params, ", ") + ")"
		}
		return head
	case *ast.CommandSequence:
		return fmt.Sprintf("sequence [%d]", len(n.Commands))
	case *ast.Command:
		verb, rest, found := strings.Cut(n.String(), " ")
		s := Colorize(verb, ColorCyan, useColor)
		if found {
			s += " " + rest
		}
		if n.OriginalCommand != "" && n.OriginalCommand != n.Name {
			s += Colorize(" (from "+string(n.OriginalCommand)+")", ColorGray, useColor)
		}
		return s
	case *ast.If:
		kw := "if"
		if n.Unless {
			kw = "unless"
		}
		return Colorize(kw, ColorYellow, useColor) + " " + n.Condition.String()
	case *ast.Repeat:
		switch {
		case n.Count != nil:
			return Colorize("repeat", ColorYellow, useColor) + fmt.Sprintf(" %s times", n.Count)
		case n.While != nil:
			return Colorize("repeat", ColorYellow, useColor) + " while " + n.While.String()
		case n.Until != nil:
			return Colorize("repeat", ColorYellow, useColor) + " until " + n.Until.String()
		default:
			return Colorize("repeat", ColorYellow, useColor) + " forever"
		}
	case *ast.ForEach:
		head := Colorize("for each", ColorYellow, useColor) + " " + n.Item
		if n.Index != "" {
			head += ", " + n.Index
		}
		return head + " in " + n.Collection.String()
	case *ast.While:
		return Colorize("while", ColorYellow, useColor) + " " + n.Condition.String()
	case *ast.FetchBlock:
		head := Colorize("fetch", ColorYellow, useColor) + " " + n.URL.String()
		if n.ResponseAs != "" {
			head += " as " + n.ResponseAs
		}
		return head
	default:
		return node.String()
	}
}

// nodeChildren lists the lines nested under a node. Commands are
// leaves; their arguments read better inline.
func nodeChildren(node ast.Node) []treeChild {
	switch n := node.(type) {
	case *ast.EventHandler:
		return plainChildren(n.Body)
	case *ast.Init:
		return plainChildren(n.Body)
	case *ast.Every:
		return plainChildren(n.Body)
	case *ast.Behavior:
		return plainChildren(n.Body)
	case *ast.CommandSequence:
		return plainChildren(n.Commands)
	case *ast.If:
		if len(n.ElseIfs) == 0 && len(n.Else) == 0 {
			return plainChildren(n.Then)
		}
		children := []treeChild{{label: "then", node: &ast.CommandSequence{Commands: n.Then, Pos: n.Pos}}}
		for _, arm := range n.ElseIfs {
			children = append(children, treeChild{
				label: "else if " + arm.Condition.String(),
				node:  &ast.CommandSequence{Commands: arm.Body, Pos: n.Pos},
			})
		}
		if len(n.Else) > 0 {
			children = append(children, treeChild{
				label: "else",
				node:  &ast.CommandSequence{Commands: n.Else, Pos: n.Pos},
			})
		}
		return children
	case *ast.Repeat:
		return plainChildren(n.Body)
	case *ast.ForEach:
		return plainChildren(n.Body)
	case *ast.While:
		return plainChildren(n.Body)
	case *ast.FetchBlock:
		return plainChildren(n.Body)
	default:
		return nil
	}
}

func plainChildren(nodes []ast.Node) []treeChild {
	children := make([]treeChild, len(nodes))
	for i, n := range nodes {
		children[i] = treeChild{node: n}
	}
	return children
}

// analysisView is the JSON shape of `hyperfixi analyze`.
type analysisView struct {
	Commands    []string        `json:"commands"`
	Locals      []string        `json:"locals"`
	Globals     []string        `json:"globals"`
	ContextVars []string        `json:"context_vars"`
	Selectors   []selectorView  `json:"selectors"`
	ControlFlow controlFlowView `json:"control_flow"`
	Helpers     []string        `json:"required_helpers"`
	Events      []string        `json:"event_types"`
	Behaviors   []string        `json:"behaviors"`
	DOMQueries  []string        `json:"dom_queries"`
}

type selectorView struct {
	Selector string `json:"selector"`
	ID       bool   `json:"id"`
	CanCache bool   `json:"can_cache"`
	Usages   int    `json:"usages"`
}

type controlFlowView struct {
	Async           bool `json:"async"`
	Loops           bool `json:"loops"`
	Conditionals    bool `json:"conditionals"`
	CanThrow        bool `json:"can_throw"`
	MaxNestingDepth int  `json:"max_nesting_depth"`
}

func newAnalysisView(res analyzer.Result) analysisView {
	view := analysisView{
		Commands:    emptySlice(res.CommandsUsed),
		Locals:      emptySlice(res.Variables.Locals),
		Globals:     emptySlice(res.Variables.Globals),
		ContextVars: emptySlice(res.Variables.ContextVars),
		Selectors:   []selectorView{},
		ControlFlow: controlFlowView{
			Async:           res.ControlFlow.HasAsync,
			Loops:           res.ControlFlow.HasLoops,
			Conditionals:    res.ControlFlow.HasConditionals,
			CanThrow:        res.ControlFlow.CanThrow,
			MaxNestingDepth: res.ControlFlow.MaxNestingDepth,
		},
		Helpers:    emptySlice(res.Dependencies.RuntimeHelpers),
		Events:     emptySlice(res.Dependencies.EventTypes),
		Behaviors:  emptySlice(res.Dependencies.Behaviors),
		DOMQueries: emptySlice(res.Dependencies.DOMQueries),
	}
	for _, sel := range res.Expressions.Selectors {
		view.Selectors = append(view.Selectors, selectorView{
			Selector: sel.Selector,
			ID:       sel.IsID,
			CanCache: sel.CanCache,
			Usages:   len(sel.Usages),
		})
	}
	return view
}

// emptySlice keeps empty sets rendering as [] rather than null.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeScanReport renders the text form of `hyperfixi scan`.
func writeScanReport(w io.Writer, agg *bundler.AggregatedUsage, useColor bool) {
	fmt.Fprintf(w, "%s %d file(s) with hyperscript usage\n",
		Colorize("scanned", ColorGreen, useColor), len(agg.Files))

	paths := make([]string, 0, len(agg.Files))
	for path := range agg.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		usage := agg.Files[path]
		line := strings.Join(usage.CommandList(), ", ")
		if blocks := usage.BlockList(); len(blocks) > 0 {
			line += Colorize(" | blocks: "+strings.Join(blocks, ", "), ColorYellow, useColor)
		}
		if usage.Positional {
			line += Colorize(" | positional", ColorYellow, useColor)
		}
		fmt.Fprintf(w, "  %s  %s\n", Colorize(path, ColorBlue, useColor), line)
	}

	if len(agg.Files) > 0 {
		fmt.Fprintf(w, "commands: %s\n", strings.Join(agg.CommandList(), ", "))
		if blocks := agg.BlockList(); len(blocks) > 0 {
			fmt.Fprintf(w, "blocks:   %s\n", strings.Join(blocks, ", "))
		}
	}
	tier := tiers.Recommend(tiers.Usage{
		Commands:   agg.CommandList(),
		Blocks:     len(agg.Blocks) > 0,
		Positional: agg.Positional,
	})
	fmt.Fprintf(w, "recommended tier: %s\n", Colorize(string(tier), ColorCyan, useColor))
}

// printBuildSummary renders one build outcome for `hyperfixi build` and
// each rebuild in watch mode.
func printBuildSummary(w io.Writer, res *bundler.BuildResult, useColor bool) {
	m := res.Manifest
	fmt.Fprintf(w, "%s %d handler(s) from %d snippet(s)",
		Colorize("compiled", ColorGreen, useColor), m.HandlerCount, len(m.Snippets))
	if res.CacheHits > 0 {
		fmt.Fprintf(w, " (%d cached)", res.CacheHits)
	}
	fmt.Fprintln(w)

	for _, rep := range m.Snippets {
		if rep.Compiled || rep.Fallback == "" {
			continue
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			Colorize("runtime:", ColorYellow, useColor),
			snippetPreview(rep.Source),
			Colorize("("+rep.Fallback+")", ColorGray, useColor))
	}
	fmt.Fprintf(w, "digest %s, recommended tier %s\n",
		m.BundleDigest[:12], m.RecommendedTier)
}

// snippetPreview compresses a snippet to one short line.
func snippetPreview(source string) string {
	s := strings.Join(strings.Fields(source), " ")
	if len(s) > 48 {
		s = s[:45] + "..."
	}
	return s
}
