// Package compiler translates event handler scripts ahead of time into
// plain JS functions. Compilation is selective: only a known-safe command
// subset is lowered, and anything outside it makes Compile return nil,
// which callers treat as "run this through the runtime interpreter
// instead". A nil result is the designed fallback signal, not an error.
package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/invariant"
	"github.com/lokascript/hyperfixi/runtime/parser"
)

// CompiledHandler is the result of a successful ahead-of-time compile.
type CompiledHandler struct {
	// ID is the generated function name, unique within a Session.
	ID string

	// Event is the DOM event type the handler listens for.
	Event string

	// Modifiers carries once/prevent/stop/debounce/throttle for the
	// registration site.
	Modifiers ast.EventModifiers

	// Code is a complete JS function declaration named ID.
	Code string

	// NeedsEvaluator reports that the generated code reads the runtime
	// context object (it/you/result) and must not be installed without
	// the runtime present.
	NeedsEvaluator bool

	// Original is the source text the handler was compiled from.
	Original string
}

// SemanticAnalysis is the result of a semantic parser adapter's analysis
// step.
type SemanticAnalysis struct {
	Confidence float64
	Node       any
	Errors     []string
}

// SemanticParser is the optional multilingual parsing adapter. When one is
// installed and claims the configured language, it gets first shot at
// producing the AST; on low confidence or errors the grammar parser runs
// as usual. Absence never breaks English-only compilation.
type SemanticParser interface {
	SupportsLanguage(code string) bool
	Analyze(text, language string) SemanticAnalysis
	BuildAST(analysis SemanticAnalysis) (ast.Node, []string)
}

// minConfidence is the adapter confidence below which the grammar parser
// takes over.
const minConfidence = 0.5

// Session owns the issued handler-ID set for one compilation run. IDs are
// deterministic per input but collision-suffixed per session, so repeated
// builds need a fresh Session or a Reset between them. All methods are
// safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	issued   map[string]struct{}
	semantic SemanticParser
	language string
	logger   *slog.Logger
}

func NewSession() *Session {
	logLevel := slog.LevelInfo
	if os.Getenv("HYPERFIXI_DEBUG_COMPILER") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	return &Session{issued: make(map[string]struct{}), logger: logger}
}

// Reset clears the issued-ID set.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = make(map[string]struct{})
}

// SetSemanticParser installs (or, with nil, removes) the multilingual
// adapter and the language it should handle.
func (s *Session) SetSemanticParser(p SemanticParser, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.semantic = p
	s.language = language
}

// Compile translates script into a CompiledHandler, or returns nil when
// the script is not a single event handler made of safely compilable
// commands. Partial compilation does not exist: one unsupported statement
// falls the whole handler back to the runtime.
func (s *Session) Compile(script string) *CompiledHandler {
	node := s.parse(script)
	if node == nil {
		s.logger.Debug("fallback", "reason", "parse error")
		return nil
	}
	h, ok := node.(*ast.EventHandler)
	if !ok {
		s.logger.Debug("fallback", "reason", "not a single event handler")
		return nil
	}
	// Filters and delegated sources need runtime evaluation at dispatch
	// time.
	if h.Filter != nil || h.From != nil {
		s.logger.Debug("fallback", "reason", "filtered or delegated handler", "event", h.Event)
		return nil
	}

	stmts, ok := lowerBody(h.Body)
	if !ok {
		s.logger.Debug("fallback", "reason", "unsupported statement", "event", h.Event)
		return nil
	}
	invariant.Invariant(len(stmts) > 0, "lowered body has statements")

	var agg caps
	async := false
	for _, st := range stmts {
		agg = agg.union(st.caps)
		async = async || st.async
	}

	id := s.issueID(h.Event, primaryCommand(h.Body), script)
	s.logger.Debug("compiled", "id", id, "event", h.Event, "async", async)
	return &CompiledHandler{
		ID:             id,
		Event:          h.Event,
		Modifiers:      h.Modifiers,
		Code:           renderFunction(id, h.Modifiers, stmts, agg, async),
		NeedsEvaluator: agg.NeedsEvaluator,
		Original:       script,
	}
}

// parse obtains the AST, preferring the semantic adapter when one is
// installed for the configured language.
func (s *Session) parse(script string) ast.Node {
	s.mu.Lock()
	sem, lang := s.semantic, s.language
	s.mu.Unlock()

	if sem != nil && lang != "" && sem.SupportsLanguage(lang) {
		analysis := sem.Analyze(script, lang)
		if analysis.Node != nil && len(analysis.Errors) == 0 && analysis.Confidence >= minConfidence {
			if built, _ := sem.BuildAST(analysis); built != nil {
				return built
			}
		}
	}

	res := parser.Parse(script)
	if !res.Success {
		return nil
	}
	return res.Node
}

// primaryCommand names the first command of the body, preferring the
// spelled form over a desugared one.
func primaryCommand(body []ast.Node) string {
	for _, stmt := range body {
		if cmd, ok := stmt.(*ast.Command); ok {
			if cmd.OriginalCommand != "" {
				return string(cmd.OriginalCommand)
			}
			return string(cmd.Name)
		}
	}
	return "handler"
}

// issueID builds hf_<event>_<command>_<djb2> and resolves collisions with
// an incrementing suffix. The set of issued IDs lives for the Session.
func (s *Session) issueID(event, primary, source string) string {
	base := fmt.Sprintf("hf_%s_%s_%08x", sanitizeIdent(event), primary, djb2(source))

	s.mu.Lock()
	defer s.mu.Unlock()
	id := base
	for n := 2; ; n++ {
		if _, taken := s.issued[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
	s.issued[id] = struct{}{}
	return id
}

// djb2 hashes source text exactly the way the bundle loader does in JS, so
// attribute text and compiled handlers agree on identity.
func djb2(s string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

// Hash returns the djb2 hex digest that keys a snippet everywhere:
// handler IDs, the bundle loader's registry and the compile cache.
func Hash(s string) string {
	return fmt.Sprintf("%08x", djb2(s))
}

// sanitizeIdent maps event-name characters outside [a-zA-Z0-9_] to '_' so
// generated function names are valid JS identifiers.
func sanitizeIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// renderFunction assembles the handler declaration: modifier preamble,
// scope preamble for whatever the body needs, then one line per command.
func renderFunction(id string, mods ast.EventModifiers, stmts []jsStmt, agg caps, async bool) string {
	var b strings.Builder
	if async {
		b.WriteString("async ")
	}
	fmt.Fprintf(&b, "function %s(event) {\n", id)
	if mods.Prevent {
		b.WriteString("  event.preventDefault();\n")
	}
	if mods.Stop {
		b.WriteString("  event.stopPropagation();\n")
	}
	b.WriteString("  const me = event.currentTarget;\n")
	if agg.NeedsLocals {
		// Element-scoped variables live on the element between events.
		b.WriteString("  const locals = me.__hfLocals = me.__hfLocals || {};\n")
	}
	if agg.NeedsGlobals {
		b.WriteString("  window.__hyperfixi = window.__hyperfixi || {};\n")
		b.WriteString("  const globals = window.__hyperfixi.globals = window.__hyperfixi.globals || {};\n")
	}
	if agg.NeedsEvaluator {
		b.WriteString("  const ctx = (window.__hyperfixi && window.__hyperfixi.context) || {};\n")
	}
	for _, st := range stmts {
		b.WriteString("  ")
		b.WriteString(st.code)
		b.WriteByte('\n')
	}
	b.WriteString("}")
	return b.String()
}

// defaultSession backs the package-level entry points for single-build
// callers; tests and concurrent builds should own their Sessions.
var defaultSession = NewSession()

// Compile compiles on the shared default session.
func Compile(script string) *CompiledHandler {
	return defaultSession.Compile(script)
}

// Reset clears the default session's issued-ID set, for test isolation
// and repeated builds.
func Reset() {
	defaultSession.Reset()
}

// SetSemanticParser installs the multilingual adapter on the default
// session.
func SetSemanticParser(p SemanticParser, language string) {
	defaultSession.SetSemanticParser(p, language)
}
