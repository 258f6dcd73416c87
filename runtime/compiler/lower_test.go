package compiler

import (
	"strings"
	"testing"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
)

// compileBody compiles src and returns the generated code, failing the
// test on fallback.
func compileBody(t *testing.T, src string) string {
	t.Helper()
	h := NewSession().Compile(src)
	if h == nil {
		t.Fatalf("Compile(%q) fell back", src)
	}
	return h.Code
}

func TestClassOpLowering(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"toggle on me",
			"on click toggle .active",
			"me.classList.toggle('active');",
		},
		{
			"toggle with target",
			"on click toggle .active on #menu",
			"document.querySelectorAll('#menu').forEach(function (el) { el.classList.toggle('active'); });",
		},
		{
			"add to selector",
			"on click add .selected to .item",
			"document.querySelectorAll('.item').forEach(function (el) { el.classList.add('selected'); });",
		},
		{
			"remove class",
			"on click remove .selected",
			"me.classList.remove('selected');",
		},
		{
			"remove element by id",
			"on click remove #toast",
			"document.querySelectorAll('#toast').forEach(function (el) { el.remove(); });",
		},
		{
			"bare remove removes me",
			"on click remove",
			"me.remove();",
		},
		{
			"add to body",
			"on load add .ready to body",
			"document.body.classList.add('ready');",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := compileBody(t, tt.src)
			if !strings.Contains(code, tt.want) {
				t.Errorf("code missing %q:\n%s", tt.want, code)
			}
		})
	}
}

func TestVisibilityAndFocusLowering(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"on click show #modal", "document.querySelectorAll('#modal').forEach(function (el) { el.style.display = ''; });"},
		{"on click hide #modal", "document.querySelectorAll('#modal').forEach(function (el) { el.style.display = 'none'; });"},
		{"on click hide", "me.style.display = 'none';"},
		{"on load focus #search", "document.querySelectorAll('#search').forEach(function (el) { el.focus(); });"},
		{"on keyup blur", "me.blur();"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			code := compileBody(t, tt.src)
			if !strings.Contains(code, tt.want) {
				t.Errorf("code missing %q:\n%s", tt.want, code)
			}
		})
	}
}

func TestLogLowering(t *testing.T) {
	code := compileBody(t, `on click log "hi", 42, me's id`)
	if !strings.Contains(code, "console.log('hi', 42, me.id);") {
		t.Errorf("code = %s", code)
	}
}

func TestSetLowering(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			"local variable",
			"on click set :count to 5",
			[]string{"const locals = me.__hfLocals = me.__hfLocals || {};", "locals.count = 5;"},
		},
		{
			"global variable",
			`on click set $theme to "dark"`,
			[]string{
				"window.__hyperfixi = window.__hyperfixi || {};",
				"const globals = window.__hyperfixi.globals = window.__hyperfixi.globals || {};",
				"globals.theme = 'dark';",
			},
		},
		{
			"element property",
			`on click set me's innerText to "saved"`,
			[]string{"me.innerText = 'saved';"},
		},
		{
			"style property camelcases",
			`on click set my *background-color to "red"`,
			[]string{"me.style.backgroundColor = 'red';"},
		},
		{
			"selector property",
			`on input set #out's innerText to me's value`,
			[]string{"document.querySelector('#out').innerText = me.value;"},
		},
		{
			"arithmetic value",
			"on click set :total to 2 + 3 * 4",
			[]string{"locals.total = (2 + (3 * 4));"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := compileBody(t, tt.src)
			for _, want := range tt.want {
				if !strings.Contains(code, want) {
					t.Errorf("code missing %q:\n%s", want, code)
				}
			}
		})
	}
}

func TestStepLowering(t *testing.T) {
	code := compileBody(t, "on click increment :count")
	if !strings.Contains(code, "locals.count = (locals.count || 0) + 1;") {
		t.Errorf("code = %s", code)
	}

	code = compileBody(t, "on click decrement $lives by 2")
	if !strings.Contains(code, "globals.lives = (globals.lives || 0) - 2;") {
		t.Errorf("code = %s", code)
	}
}

func TestPutLowering(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"into selector",
			`on click put "<b>done</b>" into #out`,
			"document.querySelectorAll('#out').forEach(function (el) { el.innerHTML = '<b>done</b>'; });",
		},
		{
			"at end of",
			`on click put "<li>x</li>" at end of #list`,
			"el.insertAdjacentHTML('beforeend', '<li>x</li>');",
		},
		{
			"before",
			`on click put "<hr/>" before #footer`,
			"el.insertAdjacentHTML('beforebegin', '<hr/>');",
		},
		{
			"into variable",
			"on click put 5 into :x",
			"locals.x = 5;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := compileBody(t, tt.src)
			if !strings.Contains(code, tt.want) {
				t.Errorf("code missing %q:\n%s", tt.want, code)
			}
		})
	}
}

func TestSendLowering(t *testing.T) {
	code := compileBody(t, "on click send refresh to #list")
	want := "document.querySelectorAll('#list').forEach(function (el) { el.dispatchEvent(new CustomEvent('refresh', { bubbles: true })); });"
	if !strings.Contains(code, want) {
		t.Errorf("code = %s", code)
	}

	code = compileBody(t, "on click send cart-updated(count: 2, source: me) to body")
	if !strings.Contains(code, "new CustomEvent('cart-updated', { bubbles: true, detail: { count: 2, source: me } })") {
		t.Errorf("code = %s", code)
	}

	code = compileBody(t, "on click trigger close")
	if !strings.Contains(code, "me.dispatchEvent(new CustomEvent('close', { bubbles: true }));") {
		t.Errorf("code = %s", code)
	}
}

func TestWaitLowering(t *testing.T) {
	code := compileBody(t, "on click wait 500ms then toggle .done")
	if !strings.Contains(code, "await new Promise(function (resolve) { setTimeout(resolve, 500); });") {
		t.Errorf("code = %s", code)
	}
}

func TestStatementOrderPreserved(t *testing.T) {
	code := compileBody(t, "on click add .a then wait 1s then remove .a")
	addIdx := strings.Index(code, "classList.add")
	waitIdx := strings.Index(code, "setTimeout")
	removeIdx := strings.Index(code, "classList.remove")
	if addIdx < 0 || waitIdx < 0 || removeIdx < 0 {
		t.Fatalf("statements missing:\n%s", code)
	}
	if !(addIdx < waitIdx && waitIdx < removeIdx) {
		t.Errorf("statements out of order:\n%s", code)
	}
}

func TestClassNameInjectionFailsClosed(t *testing.T) {
	bad := []string{
		`on click add "foo'; alert(1); //"`,
		`on click add "bad class"`,
		`on click toggle "x\"y"`,
		`on click remove "1starts-with-digit"`,
		`on click add ""`,
	}
	s := NewSession()
	for _, src := range bad {
		if got := s.Compile(src); got != nil {
			t.Errorf("Compile(%q) = non-nil, want refusal:\n%s", src, got.Code)
		}
	}

	// The literal-string spelling of a valid class still compiles.
	code := compileBody(t, `on click add "ok-name"`)
	if !strings.Contains(code, "me.classList.add('ok-name');") {
		t.Errorf("code = %s", code)
	}
}

func TestCompoundClassSelectorFallsBack(t *testing.T) {
	// ".a.b" merges into one compound selector token; splitting it into
	// classes is not attempted.
	if NewSession().Compile("on click add .a.b") != nil {
		t.Error("compound class argument should fall back")
	}
}

func TestSelectorEscaping(t *testing.T) {
	code := compileBody(t, `on click add .sel to <div[data-name="a'b"]/>`)
	if strings.Contains(code, `"a'b"`) {
		t.Errorf("raw quote interpolated into code:\n%s", code)
	}
	if !strings.Contains(code, `a\'b`) {
		t.Errorf("quote not escaped:\n%s", code)
	}
	if !strings.Contains(code, `\"`) {
		t.Errorf("double quote not escaped:\n%s", code)
	}
}

func TestStringEscaping(t *testing.T) {
	got, ok := lowerExpr(&ast.Literal{Value: "a\\b'c\"d\ne\x00f"})
	if !ok {
		t.Fatal("literal failed to lower")
	}
	want := `'a\\b\'c\"d\ne\x00f'`
	if got.code != want {
		t.Errorf("escaped = %s, want %s", got.code, want)
	}
}

func TestEventNameInjectionFailsClosed(t *testing.T) {
	// Event names with quotes cannot come out of the grammar, but a
	// semantic adapter could hand one over. The lowering must refuse.
	cmd := &ast.Command{
		Name: commands.Send,
		Args: []ast.Expr{&ast.Literal{Value: "x'); alert(1); //"}},
	}
	if _, ok := lowerCommand(cmd); ok {
		t.Error("malicious event name lowered")
	}

	cmd = &ast.Command{
		Name: commands.Send,
		Args: []ast.Expr{&ast.Literal{Value: "ok:event-name"}},
	}
	if _, ok := lowerCommand(cmd); !ok {
		t.Error("valid namespaced event name refused")
	}
}

func TestDetailKeyInjectionFailsClosed(t *testing.T) {
	cmd := &ast.Command{
		Name: commands.Send,
		Args: []ast.Expr{
			&ast.Literal{Value: "update"},
			&ast.ObjectLit{Fields: []ast.ObjectField{
				{Key: "a: 1 }); alert(1); //", Value: &ast.Literal{Value: float64(1)}},
			}},
		},
	}
	if _, ok := lowerCommand(cmd); ok {
		t.Error("malicious detail key lowered")
	}
}

func TestStylePropertyValidation(t *testing.T) {
	if _, ok := styleProp("background-color"); !ok {
		t.Error("background-color refused")
	}
	if got, _ := styleProp("background-color"); got != "backgroundColor" {
		t.Errorf("styleProp = %q", got)
	}
	if got, _ := styleProp("-webkit-transform"); got != "webkitTransform" {
		t.Errorf("styleProp = %q", got)
	}
	if _, ok := styleProp("color;}"); ok {
		t.Error("injection in style property accepted")
	}
	if _, ok := styleProp(""); ok {
		t.Error("empty style property accepted")
	}
}

func TestUnsupportedExpressionsRefuse(t *testing.T) {
	sources := []string{
		"on click log getCount()",
		"on click set :x to [1, 2, 3]",
		`on click log "items" matches "x"`,
		"on click set first .item to 1",
	}
	s := NewSession()
	for _, src := range sources {
		if got := s.Compile(src); got != nil {
			t.Errorf("Compile(%q) = non-nil, want fallback:\n%s", src, got.Code)
		}
	}
}
