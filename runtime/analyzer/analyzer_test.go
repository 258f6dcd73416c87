package analyzer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lokascript/hyperfixi/runtime/parser"
)

// analyzeScript parses source and analyzes the resulting tree.
func analyzeScript(t *testing.T, source string) Result {
	t.Helper()
	res := parser.Parse(source)
	if !res.Success {
		t.Fatalf("Parse(%q) failed: %v", source, res.Error)
	}
	return Analyze(res.Node)
}

func TestCommandsUsed(t *testing.T) {
	r := analyzeScript(t, "toggle .active then increment count then log count")
	// Desugared commands report both the executing verb and the spelled one.
	want := []string{"increment", "log", "set", "toggle"}
	if diff := cmp.Diff(want, r.CommandsUsed); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestVariableScopes(t *testing.T) {
	r := analyzeScript(t, `set :count to 1 then set $theme to "dark" then log me's id, it`)
	if diff := cmp.Diff([]string{"count"}, r.Variables.Locals); diff != "" {
		t.Errorf("locals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"theme"}, r.Variables.Globals); diff != "" {
		t.Errorf("globals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"it", "me"}, r.Variables.ContextVars); diff != "" {
		t.Errorf("contextVars mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectorUsageAggregation(t *testing.T) {
	r := analyzeScript(t, "add .active to #menu then remove .active")

	if len(r.Expressions.Selectors) != 2 {
		t.Fatalf("selectors = %d, want 2 distinct", len(r.Expressions.Selectors))
	}
	active := r.Expressions.Selectors[0]
	if active.Selector != ".active" || len(active.Usages) != 2 {
		t.Errorf("first selector = %q with %d usages", active.Selector, len(active.Usages))
	}
	if active.IsID {
		t.Error(".active flagged as id selector")
	}
	if !active.CanCache {
		t.Error(".active should be cacheable")
	}

	menu := r.Expressions.Selectors[1]
	if menu.Selector != "#menu" || !menu.IsID || !menu.CanCache {
		t.Errorf("second selector = %+v", menu)
	}
	if menu.Usages[0].Context != "add" {
		t.Errorf("usage context = %q, want add", menu.Usages[0].Context)
	}

	if diff := cmp.Diff([]string{".active", "#menu"}, r.Dependencies.DOMQueries); diff != "" {
		t.Errorf("domQueries mismatch (-want +got):\n%s", diff)
	}
}

func TestDynamicPseudoClassBlocksCaching(t *testing.T) {
	r := analyzeScript(t, "add .done to <li:first-child/>")
	var pseudo *SelectorUsage
	for i := range r.Expressions.Selectors {
		if r.Expressions.Selectors[i].Selector == "li:first-child" {
			pseudo = &r.Expressions.Selectors[i]
		}
	}
	if pseudo == nil {
		t.Fatal("pseudo-class selector not recorded")
	}
	if pseudo.CanCache {
		t.Error("selector with pseudo-class must not be cacheable")
	}
	if len(r.Expressions.Dynamic) == 0 {
		t.Error("pseudo-class selector should classify its expression as dynamic")
	}
}

func TestPureVsDynamicClassification(t *testing.T) {
	r := analyzeScript(t, "set x to 2 + 3 * 4")
	if len(r.Expressions.Pure) != 1 {
		t.Fatalf("pure = %d expressions, want 1", len(r.Expressions.Pure))
	}
	if got := r.Expressions.Pure[0].String(); got != "(2 + (3 * 4))" {
		t.Errorf("pure[0] = %s", got)
	}

	r = analyzeScript(t, "log getCount()")
	if len(r.Expressions.Dynamic) != 1 {
		t.Errorf("dynamic = %d expressions, want 1", len(r.Expressions.Dynamic))
	}

	// A variable read is neither pure nor dynamic.
	r = analyzeScript(t, "set y to :n + 1")
	if len(r.Expressions.Pure) != 0 || len(r.Expressions.Dynamic) != 0 {
		t.Errorf("variable expression misclassified: pure=%d dynamic=%d",
			len(r.Expressions.Pure), len(r.Expressions.Dynamic))
	}
}

func TestControlFlowFlags(t *testing.T) {
	r := analyzeScript(t, `on click fetch "/data" as json put it into #out end`)
	if !r.ControlFlow.HasAsync {
		t.Error("fetch block should set hasAsync")
	}

	r = analyzeScript(t, "wait 500ms then add .ready")
	if !r.ControlFlow.HasAsync {
		t.Error("wait should set hasAsync")
	}

	r = analyzeScript(t, `if :a then log "x" end`)
	if !r.ControlFlow.HasConditionals || r.ControlFlow.HasLoops {
		t.Errorf("flags = %+v", r.ControlFlow)
	}

	r = analyzeScript(t, "on submit halt the event")
	if !r.ControlFlow.CanThrow {
		t.Error("halt should set canThrow")
	}

	r = analyzeScript(t, "repeat 3 times log it end")
	if !r.ControlFlow.HasLoops {
		t.Error("repeat should set hasLoops")
	}
}

func TestMaxNestingDepth(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		depth int
	}{
		{"flat commands", "add .a then remove .b", 0},
		{"single if", `if :a then log "x" end`, 1},
		{"if in repeat in if", `if :a then repeat 2 times if :b then log "x" end end end`, 3},
		{"fetch does not nest", `fetch "/x" log it end`, 0},
		{"while", `while :go wait 1s end`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := analyzeScript(t, tt.src)
			if r.ControlFlow.MaxNestingDepth != tt.depth {
				t.Errorf("maxNestingDepth = %d, want %d", r.ControlFlow.MaxNestingDepth, tt.depth)
			}
		})
	}
}

func TestRuntimeHelpers(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"increment n", []string{"setProp"}},
		{"send refresh to #list", []string{"send"}},
		{`put "x" into #out`, []string{"putContent"}},
		{`fetch "/x" log it end`, []string{"fetchJSON", "fetchText"}},
		{`on input.debounce(200) log "x"`, []string{"debounce"}},
		{"toggle .active", nil},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			r := analyzeScript(t, tt.src)
			var want []string
			if tt.want != nil {
				want = tt.want
			} else {
				want = []string{}
			}
			if diff := cmp.Diff(want, r.Dependencies.RuntimeHelpers); diff != "" {
				t.Errorf("helpers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEventTypes(t *testing.T) {
	r := analyzeScript(t, "on click send refresh to #list then wait for settled")
	want := []string{"click", "refresh", "settled"}
	if diff := cmp.Diff(want, r.Dependencies.EventTypes); diff != "" {
		t.Errorf("eventTypes mismatch (-want +got):\n%s", diff)
	}
}

func TestBehaviorReferences(t *testing.T) {
	r := analyzeScript(t, `behavior Draggable on pointerdown add .dragging end end`)
	if diff := cmp.Diff([]string{"Draggable"}, r.Dependencies.Behaviors); diff != "" {
		t.Errorf("behaviors mismatch (-want +got):\n%s", diff)
	}

	r = analyzeScript(t, "call Sortable(#list)")
	if diff := cmp.Diff([]string{"Sortable"}, r.Dependencies.Behaviors); diff != "" {
		t.Errorf("behaviors mismatch (-want +got):\n%s", diff)
	}

	// DOM globals never count, whatever the capitalization.
	r = analyzeScript(t, "log Document")
	if len(r.Dependencies.Behaviors) != 0 {
		t.Errorf("behaviors = %v, want none", r.Dependencies.Behaviors)
	}
}

func TestAnalyzeNilAndIdempotent(t *testing.T) {
	empty := Analyze(nil)
	if len(empty.CommandsUsed) != 0 || empty.ControlFlow.HasAsync {
		t.Errorf("Analyze(nil) = %+v, want zero result", empty)
	}

	res := parser.Parse(`on keyup[event.key == "Escape"] hide #modal then send closed to <body/>`)
	if !res.Success {
		t.Fatalf("parse failed: %v", res.Error)
	}
	first := Analyze(res.Node)
	second := Analyze(res.Node)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("analysis not idempotent (-first +second):\n%s", diff)
	}
}

func TestConvenienceWrappers(t *testing.T) {
	res := parser.Parse("on click wait 1s then toggle .open")
	if !res.Success {
		t.Fatalf("parse failed: %v", res.Error)
	}
	node := res.Node

	full := Analyze(node)
	if HasAsyncOperations(node) != full.ControlFlow.HasAsync {
		t.Error("HasAsyncOperations disagrees with Analyze")
	}
	if diff := cmp.Diff(full.CommandsUsed, CommandsUsed(node)); diff != "" {
		t.Errorf("CommandsUsed disagrees with Analyze:\n%s", diff)
	}
	if diff := cmp.Diff(full.Dependencies.RuntimeHelpers, RequiredHelpers(node)); diff != "" {
		t.Errorf("RequiredHelpers disagrees with Analyze:\n%s", diff)
	}
}

// The analyzer reads the tree without altering it.
func TestAnalyzeDoesNotMutate(t *testing.T) {
	res := parser.Parse("add .a to #b then increment :n by 2")
	if !res.Success {
		t.Fatalf("parse failed: %v", res.Error)
	}
	before := res.Node.String()
	Analyze(res.Node)
	if after := res.Node.String(); after != before {
		t.Errorf("tree changed: %q -> %q", before, after)
	}
}
