package tiers

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/runtime/parser"
)

func mustNew(t *testing.T, tier Tier) Adapter {
	t.Helper()
	a, err := New(tier)
	if err != nil {
		t.Fatalf("New(%s): %v", tier, err)
	}
	return a
}

func TestNewKnownTiers(t *testing.T) {
	for _, tier := range []Tier{Lite, Standard, Full} {
		t.Run(string(tier), func(t *testing.T) {
			a := mustNew(t, tier)
			if a.Tier() != tier {
				t.Errorf("Tier() = %s, want %s", a.Tier(), tier)
			}
		})
	}
}

func TestNewUnknownTier(t *testing.T) {
	_, err := New("ful")
	if err == nil {
		t.Fatal("expected an error for an unknown tier")
	}
	if !strings.HasPrefix(err.Error(), "Unknown parser tier: ful") {
		t.Errorf("error = %q, want %q prefix", err.Error(), "Unknown parser tier: ful")
	}
	if !strings.Contains(err.Error(), `"full"`) {
		t.Errorf("error %q should suggest the full tier", err.Error())
	}

	_, err = New("mega")
	if err == nil {
		t.Fatal("expected an error for an unknown tier")
	}
	if !strings.HasPrefix(err.Error(), "Unknown parser tier: mega") {
		t.Errorf("error = %q, want %q prefix", err.Error(), "Unknown parser tier: mega")
	}
}

func TestCapabilitiesByTier(t *testing.T) {
	want := map[Tier]Capabilities{
		Lite:     {EventModifiers: true},
		Standard: {EventModifiers: true, AsyncCommands: true},
		Full: {
			FullExpressions: true,
			BlockCommands:   true,
			EventModifiers:  true,
			SemanticParsing: true,
			Behaviors:       true,
			Functions:       true,
			AsyncCommands:   true,
		},
	}
	for tier, caps := range want {
		t.Run(string(tier), func(t *testing.T) {
			a := mustNew(t, tier)
			if diff := cmp.Diff(caps, a.Capabilities()); diff != "" {
				t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVocabularyNesting(t *testing.T) {
	lite := mustNew(t, Lite)
	std := mustNew(t, Standard)
	full := mustNew(t, Full)

	want := []string{"add", "hide", "remove", "show", "toggle"}
	if diff := cmp.Diff(want, lite.SupportedCommands()); diff != "" {
		t.Errorf("lite vocabulary mismatch (-want +got):\n%s", diff)
	}

	for _, name := range lite.SupportedCommands() {
		if !std.SupportsCommand(name) {
			t.Errorf("standard tier should support lite command %q", name)
		}
	}
	for _, name := range std.SupportedCommands() {
		if !full.SupportsCommand(name) {
			t.Errorf("full tier should support standard command %q", name)
		}
	}
	if len(lite.SupportedCommands()) >= len(std.SupportedCommands()) {
		t.Error("lite vocabulary should be smaller than standard's")
	}
	if len(std.SupportedCommands()) >= len(full.SupportedCommands()) {
		t.Error("standard vocabulary should be smaller than full's")
	}
}

func TestLiteVocabularyEnforced(t *testing.T) {
	lite := mustNew(t, Lite)

	for _, src := range []string{
		"toggle .active",
		"toggle .active on #menu",
		"on click toggle .active end",
		"add .open to #menu then remove .closed from #menu",
		"on mouseenter.once show #hint",
	} {
		if res := lite.Parse(src); !res.Success {
			t.Errorf("Parse(%q) failed: %v", src, res.Error)
		}
	}

	rejected := []struct {
		src  string
		verb string
	}{
		{`set :x to 1`, "set"},
		{`on click log "hi"`, "log"},
		{`increment :count`, "increment"},
		{`toggle .active then wait 2s`, "wait"},
	}
	for _, tt := range rejected {
		res := lite.Parse(tt.src)
		if res.Success {
			t.Errorf("Parse(%q) should fail in the lite tier", tt.src)
			continue
		}
		if res.Error.Kind != parser.ErrorUnknownCommand {
			t.Errorf("Parse(%q) error kind = %v, want ErrorUnknownCommand", tt.src, res.Error.Kind)
		}
		if !strings.Contains(res.Error.Message, "lite tier") || !strings.Contains(res.Error.Message, tt.verb) {
			t.Errorf("Parse(%q) message = %q, want it to name %q and the lite tier",
				tt.src, res.Error.Message, tt.verb)
		}
	}
}

func TestStandardRejectsFullOnlyCommand(t *testing.T) {
	std := mustNew(t, Standard)
	full := mustNew(t, Full)

	src := "on click halt"
	if res := full.Parse(src); !res.Success {
		t.Errorf("full Parse(%q) failed: %v", src, res.Error)
	}
	res := std.Parse(src)
	if res.Success {
		t.Fatalf("standard Parse(%q) should fail", src)
	}
	if !strings.Contains(res.Error.Message, "standard tier") {
		t.Errorf("message = %q, want mention of the standard tier", res.Error.Message)
	}
}

// shape renders a parse down to the detail every tier shares: handler
// headers and the full rendering of each command.
func shape(node ast.Node) string {
	var parts []string
	for _, h := range ast.Handlers(node) {
		parts = append(parts, h.String())
	}
	for _, c := range ast.Commands(node) {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "\n")
}

func TestCrossTierAgreement(t *testing.T) {
	std := mustNew(t, Standard)
	full := mustNew(t, Full)

	sources := []string{
		"toggle .active",
		"toggle .active on #menu",
		"add .loading to #btn then remove .hidden from #panel",
		"show #spinner",
		"hide #spinner then focus #input",
		"on click toggle .active end",
		`on click.once.prevent log "clicked"`,
		"on keyup set :q to me's value then log :q",
		"on submit send checkout to #cart",
		`put "done" into #status`,
		"increment :count by 2",
		"decrement $lives",
		"wait 2s then hide #modal",
		"set :x to 2 + 3 * 4",
		"set *opacity of #hint to 1",
		"on input.debounce(300) trigger refresh to #list",
		"on keyup wait for click from #ok",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			fr := full.Parse(src)
			sr := std.Parse(src)
			if fr.Success != sr.Success {
				t.Fatalf("verdicts disagree: full=%v standard=%v (full: %v, standard: %v)",
					fr.Success, sr.Success, fr.Error, sr.Error)
			}
			if !fr.Success {
				return
			}
			if diff := cmp.Diff(shape(fr.Node), shape(sr.Node)); diff != "" {
				t.Errorf("AST shape mismatch (-full +standard):\n%s", diff)
			}
		})
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name  string
		usage Usage
		want  Tier
	}{
		{"empty", Usage{}, Lite},
		{"class primitives", Usage{Commands: []string{"toggle", "add", "hide"}}, Lite},
		{"case folded", Usage{Commands: []string{"Toggle", "SHOW"}}, Lite},
		{"state commands", Usage{Commands: []string{"toggle", "set", "log"}}, Standard},
		{"async but standard", Usage{Commands: []string{"wait", "send"}}, Standard},
		{"full-only command", Usage{Commands: []string{"toggle", "fetch"}}, Full},
		{"unknown command", Usage{Commands: []string{"removeClass"}}, Full},
		{"blocks force full", Usage{Commands: []string{"toggle"}, Blocks: true}, Full},
		{"positional forces full", Usage{Positional: true}, Full},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recommend(tt.usage); got != tt.want {
				t.Errorf("Recommend(%+v) = %s, want %s", tt.usage, got, tt.want)
			}
		})
	}
}
