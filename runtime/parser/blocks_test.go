package parser

import (
	"strings"
	"testing"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
)

// parseOneBlock parses input expecting a bare script whose first statement
// is the block under test.
func parseOneBlock(t *testing.T, input string) ast.Node {
	t.Helper()
	res := Parse(input)
	if !res.Success {
		t.Fatalf("Parse(%q) failed: %v", input, res.Error)
	}
	seq, ok := res.Node.(*ast.CommandSequence)
	if !ok {
		t.Fatalf("root is %T, want *ast.CommandSequence", res.Node)
	}
	if len(seq.Commands) == 0 {
		t.Fatalf("Parse(%q) produced an empty sequence", input)
	}
	return seq.Commands[0]
}

func TestIfBlock(t *testing.T) {
	node := parseOneBlock(t, `if :count > 3 then add .warning end`)
	ifNode, ok := node.(*ast.If)
	if !ok {
		t.Fatalf("got %T, want *ast.If", node)
	}
	if ifNode.Unless {
		t.Error("plain if parsed as unless")
	}
	if got := ifNode.Condition.String(); got != "(:count > 3)" {
		t.Errorf("condition = %s", got)
	}
	if len(ifNode.Then) != 1 || len(ifNode.Else) != 0 {
		t.Errorf("then=%d else=%d", len(ifNode.Then), len(ifNode.Else))
	}
}

func TestIfWithoutThen(t *testing.T) {
	node := parseOneBlock(t, `if :ok add .good end`)
	ifNode := node.(*ast.If)
	if len(ifNode.Then) != 1 {
		t.Errorf("then = %d statements, want 1", len(ifNode.Then))
	}
}

func TestUnlessBlock(t *testing.T) {
	node := parseOneBlock(t, `unless me matches .disabled then toggle .open end`)
	ifNode := node.(*ast.If)
	if !ifNode.Unless {
		t.Error("unless flag not set")
	}
	// The condition is stored unnegated.
	if got := ifNode.Condition.String(); got != "(me matches .disabled)" {
		t.Errorf("condition = %s", got)
	}
}

func TestIfElseChain(t *testing.T) {
	src := `if :n > 10 then add .high
else if :n > 5 then add .mid
else if :n > 0 then add .low
else add .zero end`

	node := parseOneBlock(t, src)
	ifNode := node.(*ast.If)
	if len(ifNode.ElseIfs) != 2 {
		t.Fatalf("elseIfs = %d, want 2", len(ifNode.ElseIfs))
	}
	if got := ifNode.ElseIfs[0].Condition.String(); got != "(:n > 5)" {
		t.Errorf("first arm condition = %s", got)
	}
	if got := ifNode.ElseIfs[1].Condition.String(); got != "(:n > 0)" {
		t.Errorf("second arm condition = %s", got)
	}
	if len(ifNode.Else) != 1 {
		t.Errorf("else = %d statements, want 1", len(ifNode.Else))
	}
}

func TestNestedIf(t *testing.T) {
	node := parseOneBlock(t, `if :a then if :b then log "both" end end`)
	outer := node.(*ast.If)
	if len(outer.Then) != 1 {
		t.Fatalf("outer then = %d statements", len(outer.Then))
	}
	inner, ok := outer.Then[0].(*ast.If)
	if !ok {
		t.Fatalf("inner is %T, want *ast.If", outer.Then[0])
	}
	if got := inner.Condition.String(); got != ":b" {
		t.Errorf("inner condition = %s", got)
	}
}

// A missing end at end of input is accepted with a warning, never an error.
func TestIfMissingEndRecovers(t *testing.T) {
	res := Parse(`if :loaded then remove .spinner`)
	if !res.Success {
		t.Fatalf("lenient parse failed: %v", res.Error)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(res.Warnings))
	}
	if !strings.Contains(res.Warnings[0].Message, "missing 'end'") {
		t.Errorf("warning = %q", res.Warnings[0].Message)
	}
}

func TestRepeatVariants(t *testing.T) {
	node := parseOneBlock(t, `repeat 3 times add .tick end`)
	rep := node.(*ast.Repeat)
	if rep.Count == nil || rep.Count.String() != "3" {
		t.Errorf("count = %v", rep.Count)
	}

	node = parseOneBlock(t, `repeat while :running wait 100ms end`)
	rep = node.(*ast.Repeat)
	if rep.While == nil || rep.While.String() != ":running" {
		t.Errorf("while = %v", rep.While)
	}

	node = parseOneBlock(t, `repeat until :done is true wait 1s end`)
	rep = node.(*ast.Repeat)
	if rep.Until == nil || rep.Until.String() != "(:done is true)" {
		t.Errorf("until = %v", rep.Until)
	}

	node = parseOneBlock(t, `repeat forever send ping to #socket end`)
	rep = node.(*ast.Repeat)
	if !rep.Forever {
		t.Error("forever flag not set")
	}

	node = parseOneBlock(t, `repeat log "again" end`)
	rep = node.(*ast.Repeat)
	if !rep.Forever {
		t.Error("bare repeat should loop forever")
	}
}

func TestRepeatCountExpression(t *testing.T) {
	node := parseOneBlock(t, `repeat :n + 1 times log "x" end`)
	rep := node.(*ast.Repeat)
	if got := rep.Count.String(); got != "(:n + 1)" {
		t.Errorf("count = %s", got)
	}

	res := Parse(`repeat 3 add .x end`)
	if res.Success {
		t.Error("repeat with count but no 'times' should fail")
	}
}

func TestForEachBlock(t *testing.T) {
	node := parseOneBlock(t, `for each item in :items log item end`)
	fe := node.(*ast.ForEach)
	if fe.Item != "item" || fe.Index != "" {
		t.Errorf("item=%q index=%q", fe.Item, fe.Index)
	}
	if got := fe.Collection.String(); got != ":items" {
		t.Errorf("collection = %s", got)
	}

	node = parseOneBlock(t, `for each row, i in :rows log i end`)
	fe = node.(*ast.ForEach)
	if fe.Item != "row" || fe.Index != "i" {
		t.Errorf("item=%q index=%q", fe.Item, fe.Index)
	}

	node = parseOneBlock(t, `for x in [1, 2, 3] log x end`)
	fe = node.(*ast.ForEach)
	if fe.Item != "x" {
		t.Errorf("item = %q", fe.Item)
	}

	res := Parse(`for each in :items log it end`)
	if res.Success {
		t.Error("for-each without a loop variable should fail")
	}
}

func TestWhileBlock(t *testing.T) {
	node := parseOneBlock(t, `while :count < 10 increment count end`)
	wh := node.(*ast.While)
	if got := wh.Condition.String(); got != "(:count < 10)" {
		t.Errorf("condition = %s", got)
	}
	if len(wh.Body) != 1 {
		t.Errorf("body = %d statements", len(wh.Body))
	}
	inner := wh.Body[0].(*ast.Command)
	if inner.OriginalCommand != commands.Increment {
		t.Errorf("body command = %s", inner.OriginalCommand)
	}
}

func TestFetchBlock(t *testing.T) {
	node := parseOneBlock(t, `fetch "/api/items" as json put it into #out end`)
	fb := node.(*ast.FetchBlock)
	if got := fb.URL.String(); got != `"/api/items"` {
		t.Errorf("url = %s", got)
	}
	if fb.ResponseAs != "json" {
		t.Errorf("responseAs = %q, want json", fb.ResponseAs)
	}
	if len(fb.Body) != 1 {
		t.Errorf("body = %d statements", len(fb.Body))
	}

	node = parseOneBlock(t, `fetch "/page" as html then put it into me end`)
	fb = node.(*ast.FetchBlock)
	if fb.ResponseAs != "html" {
		t.Errorf("responseAs = %q, want html", fb.ResponseAs)
	}

	node = parseOneBlock(t, `fetch :url log it end`)
	fb = node.(*ast.FetchBlock)
	if fb.ResponseAs != "" {
		t.Errorf("responseAs = %q, want empty", fb.ResponseAs)
	}
}

func TestFetchInvalidFormat(t *testing.T) {
	res := Parse(`fetch "/x" as xml log it end`)
	if res.Success {
		t.Fatal("invalid response type should fail")
	}
	if !strings.Contains(res.Error.Message, "invalid response type") {
		t.Errorf("message = %q", res.Error.Message)
	}
}

func TestBlocksNestInHandlers(t *testing.T) {
	src := `on submit
  if :valid then
    send form-ok to #status
  else
    add .error to #form
  end`

	res := Parse(src)
	if !res.Success {
		t.Fatalf("parse failed: %v", res.Error)
	}
	handler := res.Node.(*ast.EventHandler)
	if len(handler.Body) != 1 {
		t.Fatalf("handler body = %d statements", len(handler.Body))
	}
	ifNode := handler.Body[0].(*ast.If)
	if len(ifNode.Then) != 1 || len(ifNode.Else) != 1 {
		t.Errorf("then=%d else=%d", len(ifNode.Then), len(ifNode.Else))
	}
}
