package compiler

import (
	"strings"
	"sync"
	"testing"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
)

func TestCompileSimpleHandler(t *testing.T) {
	src := "on click toggle .active"
	s := NewSession()
	h := s.Compile(src)
	if h == nil {
		t.Fatal("Compile returned nil for a compilable handler")
	}
	if h.Event != "click" {
		t.Errorf("event = %q, want click", h.Event)
	}
	if !strings.HasPrefix(h.ID, "hf_click_toggle_") {
		t.Errorf("id = %q, want hf_click_toggle_ prefix", h.ID)
	}
	if !strings.Contains(h.Code, "me.classList.toggle('active');") {
		t.Errorf("code missing toggle statement:\n%s", h.Code)
	}
	if h.NeedsEvaluator {
		t.Error("pure DOM handler should not need the evaluator")
	}
	if h.Original != src {
		t.Errorf("original = %q, want source text", h.Original)
	}
	if !strings.HasPrefix(h.Code, "function "+h.ID+"(event) {") {
		t.Errorf("code does not declare %s:\n%s", h.ID, h.Code)
	}
}

func TestCompileRefusesNonEventRoots(t *testing.T) {
	sources := []string{
		"toggle .active",
		"add .a then remove .b",
		`behavior Draggable on pointerdown add .dragging end end`,
		`init log "ready"`,
		`every 5s toggle .tick`,
		"on click log 1 on keyup log 2",
	}
	s := NewSession()
	for _, src := range sources {
		if got := s.Compile(src); got != nil {
			t.Errorf("Compile(%q) = %v, want nil", src, got)
		}
	}
}

func TestCompileRefusesBlocksAndUnsupportedCommands(t *testing.T) {
	sources := []string{
		`on click if :open then add .shown end`,
		"on click repeat 3 times toggle .x end",
		`on submit fetch "/api" as json put it into #out end`,
		"on click take .selected",
		`on click js console.log(1) end`,
		"on click go back",
		"on click transition opacity to 0",
		// One bad statement fails the whole body.
		"on click add .a then call reload()",
		"on click toggle .active then wait for keyup",
	}
	s := NewSession()
	for _, src := range sources {
		if got := s.Compile(src); got != nil {
			t.Errorf("Compile(%q) = non-nil, want fallback", src)
		}
	}
}

func TestCompileRefusesFiltersAndDelegation(t *testing.T) {
	s := NewSession()
	if s.Compile(`on keyup[event's key == "Enter"] log "enter"`) != nil {
		t.Error("filtered handler should fall back")
	}
	if s.Compile("on click from .items toggle .sel") != nil {
		t.Error("delegated handler should fall back")
	}
}

func TestCompileEmptyBodyFallsBack(t *testing.T) {
	if NewSession().Compile("on click") != nil {
		t.Error("empty handler body should fall back")
	}
}

func TestHandlerIDCollisions(t *testing.T) {
	src := "on click toggle .active"
	s := NewSession()

	first := s.Compile(src)
	second := s.Compile(src)
	if first == nil || second == nil {
		t.Fatal("compiles failed")
	}
	if first.ID == second.ID {
		t.Errorf("duplicate id issued: %q", first.ID)
	}
	if want := first.ID + "_2"; second.ID != want {
		t.Errorf("second id = %q, want %q", second.ID, want)
	}
	third := s.Compile(src)
	if want := first.ID + "_3"; third.ID != want {
		t.Errorf("third id = %q, want %q", third.ID, want)
	}

	s.Reset()
	again := s.Compile(src)
	if again.ID != first.ID {
		t.Errorf("after Reset id = %q, want %q", again.ID, first.ID)
	}
}

func TestHandlerIDSanitization(t *testing.T) {
	s := NewSession()
	h := s.Compile(`on htmx:afterSwap log "swapped"`)
	if h == nil {
		t.Fatal("compile failed")
	}
	if !strings.HasPrefix(h.ID, "hf_htmx_afterSwap_log_") {
		t.Errorf("id = %q, want sanitized event name", h.ID)
	}

	h = s.Compile(`on my-event log "custom"`)
	if h == nil {
		t.Fatal("compile failed")
	}
	if !strings.HasPrefix(h.ID, "hf_my_event_log_") {
		t.Errorf("id = %q, want sanitized event name", h.ID)
	}
}

func TestDesugaredPrimaryCommandKeepsSpelling(t *testing.T) {
	h := NewSession().Compile("on click increment :count")
	if h == nil {
		t.Fatal("compile failed")
	}
	if !strings.HasPrefix(h.ID, "hf_click_increment_") {
		t.Errorf("id = %q, want the spelled command name", h.ID)
	}
}

func TestModifiersSurfaced(t *testing.T) {
	h := NewSession().Compile("on click.once.prevent.stop toggle .open")
	if h == nil {
		t.Fatal("compile failed")
	}
	if !h.Modifiers.Once || !h.Modifiers.Prevent || !h.Modifiers.Stop {
		t.Errorf("modifiers = %+v", h.Modifiers)
	}
	if !strings.Contains(h.Code, "event.preventDefault();") {
		t.Error("prevent modifier missing from preamble")
	}
	if !strings.Contains(h.Code, "event.stopPropagation();") {
		t.Error("stop modifier missing from preamble")
	}

	h = NewSession().Compile(`on input.debounce(300) log "typed"`)
	if h == nil {
		t.Fatal("compile failed")
	}
	if h.Modifiers.Debounce != 300 {
		t.Errorf("debounce = %d, want 300", h.Modifiers.Debounce)
	}
}

func TestWaitCompilesToAsyncFunction(t *testing.T) {
	h := NewSession().Compile("on click wait 2s then add .done")
	if h == nil {
		t.Fatal("compile failed")
	}
	if !strings.HasPrefix(h.Code, "async function ") {
		t.Errorf("code not async:\n%s", h.Code)
	}
	if !strings.Contains(h.Code, "setTimeout(resolve, 2000)") {
		t.Errorf("code missing 2000ms timeout:\n%s", h.Code)
	}
}

func TestContextReferenceNeedsEvaluator(t *testing.T) {
	h := NewSession().Compile("on click log it")
	if h == nil {
		t.Fatal("compile failed")
	}
	if !h.NeedsEvaluator {
		t.Error("context reference should set NeedsEvaluator")
	}
	if !strings.Contains(h.Code, "const ctx =") {
		t.Errorf("code missing ctx preamble:\n%s", h.Code)
	}
	if !strings.Contains(h.Code, "console.log(ctx.it);") {
		t.Errorf("code = %s", h.Code)
	}
}

func TestConcurrentIDIssue(t *testing.T) {
	s := NewSession()
	const n = 64
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := s.Compile("on click toggle .active")
			if h != nil {
				ids[i] = h.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, id := range ids {
		if id == "" {
			t.Fatalf("compile %d failed", i)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

// fakeSemantic is a stand-in multilingual adapter that recognizes one
// phrase and hands back a prebuilt handler tree.
type fakeSemantic struct {
	language string
	phrase   string
	node     ast.Node
	conf     float64
}

func (f *fakeSemantic) SupportsLanguage(code string) bool {
	return code == f.language
}

func (f *fakeSemantic) Analyze(text, language string) SemanticAnalysis {
	if language != f.language || text != f.phrase {
		return SemanticAnalysis{Errors: []string{"unrecognized"}}
	}
	return SemanticAnalysis{Confidence: f.conf, Node: f}
}

func (f *fakeSemantic) BuildAST(analysis SemanticAnalysis) (ast.Node, []string) {
	if analysis.Node != f {
		return nil, nil
	}
	return f.node, nil
}

func TestSemanticParserAdapter(t *testing.T) {
	phrase := "alternar .activo al hacer clic"
	handler := &ast.EventHandler{
		Event: "click",
		Body: []ast.Node{
			&ast.Command{
				Name: commands.Toggle,
				Args: []ast.Expr{&ast.Selector{Value: ".activo", Kind: ast.SelectorClass}},
			},
		},
	}

	s := NewSession()
	s.SetSemanticParser(&fakeSemantic{language: "es", phrase: phrase, node: handler, conf: 0.9}, "es")

	h := s.Compile(phrase)
	if h == nil {
		t.Fatal("adapter-parsed handler should compile")
	}
	if h.Event != "click" || !strings.Contains(h.Code, "classList.toggle('activo')") {
		t.Errorf("compiled handler = %+v", h)
	}

	// English input the adapter rejects still goes through the grammar
	// parser.
	if s.Compile("on click toggle .active") == nil {
		t.Error("grammar fallback broken while adapter installed")
	}
}

func TestSemanticParserLowConfidenceFallsBack(t *testing.T) {
	phrase := "alternar .activo al hacer clic"
	s := NewSession()
	s.SetSemanticParser(&fakeSemantic{
		language: "es",
		phrase:   phrase,
		node:     &ast.EventHandler{Event: "click"},
		conf:     0.2,
	}, "es")

	// Low confidence ignores the adapter; the grammar parser cannot read
	// Spanish, so the compile falls back entirely.
	if got := s.Compile(phrase); got != nil {
		t.Errorf("Compile = %v, want nil via grammar fallback", got)
	}
}

func TestDefaultSessionReset(t *testing.T) {
	Reset()
	first := Compile("on click toggle .active")
	second := Compile("on click toggle .active")
	if first == nil || second == nil {
		t.Fatal("compiles failed")
	}
	if first.ID == second.ID {
		t.Error("default session issued duplicate ids")
	}
	Reset()
	again := Compile("on click toggle .active")
	if again.ID != first.ID {
		t.Errorf("after Reset id = %q, want %q", again.ID, first.ID)
	}
}

func TestDJB2Stable(t *testing.T) {
	if djb2("") != 5381 {
		t.Errorf("djb2(\"\") = %d, want 5381", djb2(""))
	}
	if djb2("on click toggle .active") != djb2("on click toggle .active") {
		t.Error("djb2 not deterministic")
	}
	if djb2("a") == djb2("b") {
		t.Error("djb2 collides on trivial inputs")
	}
}
