package bundler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/lokascript/hyperfixi/core/ast"
	"github.com/lokascript/hyperfixi/core/commands"
	"github.com/lokascript/hyperfixi/core/config"
	"github.com/lokascript/hyperfixi/runtime/analyzer"
	"github.com/lokascript/hyperfixi/runtime/compiler"
	"github.com/lokascript/hyperfixi/runtime/parser"
	"github.com/lokascript/hyperfixi/runtime/tiers"
)

// SnippetReport is the manifest record for one unique snippet.
type SnippetReport struct {
	Hash       string   `json:"hash"`
	Source     string   `json:"source"`
	Files      []string `json:"files"`
	Parses     bool     `json:"parses"`
	ParseError string   `json:"parse_error,omitempty"`
	Compiled   bool     `json:"compiled"`
	HandlerID  string   `json:"handler_id,omitempty"`
	Event      string   `json:"event,omitempty"`
	Fallback   string   `json:"fallback,omitempty"`
	Cached     bool     `json:"cached,omitempty"`
}

// Manifest is the build report written next to the bundle.
type Manifest struct {
	Tier            string              `json:"tier"`
	RecommendedTier string              `json:"recommended_tier"`
	Files           map[string][]string `json:"files"`
	Snippets        []SnippetReport     `json:"snippets"`
	Usage           *AggregatedUsage    `json:"usage"`
	RequiredHelpers []string            `json:"required_helpers"`
	HandlerCount    int                 `json:"handler_count"`
	BundleDigest    string              `json:"bundle_digest"`
}

// BuildResult is one complete in-memory build.
type BuildResult struct {
	Bundle    string
	Manifest  *Manifest
	Handlers  []*compiler.CompiledHandler
	CacheHits int

	cache   *Cache
	noCache bool
}

// Build scans the configured roots, compiles every unique snippet on a
// shared session, and assembles bundle plus manifest in memory. Nothing
// is written; WriteOutputs does that.
func Build(cfg *config.Config, noCache bool) (*BuildResult, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	adapter, err := tiers.New(tiers.Tier(cfg.Tier))
	if err != nil {
		return nil, err
	}

	scanner := NewScanner(cfg.Extensions, cfg.Exclude)
	scan, err := scanner.ScanProject(cfg.Roots)
	if err != nil {
		return nil, err
	}
	agg := Aggregate(scan.Usage)

	cache := &Cache{path: cfg.Cache, entries: make(map[string]CacheEntry)}
	if !noCache {
		cache = LoadCache(cfg.Cache)
	}

	// Unique snippets keyed by the shared djb2 hash; the loader cannot
	// tell colliding snippets apart either, so neither do we.
	bySnippet := make(map[string]*SnippetReport)
	fileHashes := make(map[string][]string, len(scan.Snippets))
	for _, path := range sortedScanPaths(scan.Snippets) {
		for _, source := range scan.Snippets[path] {
			key := compiler.Hash(source)
			rep, ok := bySnippet[key]
			if !ok {
				rep = &SnippetReport{Hash: key, Source: source}
				bySnippet[key] = rep
			}
			rep.Files = appendUnique(rep.Files, path)
			fileHashes[path] = appendUnique(fileHashes[path], key)
		}
	}

	session := compiler.NewSession()
	helpers := make(map[string]bool)
	var handlers []*compiler.CompiledHandler
	var reports []SnippetReport

	for _, key := range sortedReportKeys(bySnippet) {
		rep := bySnippet[key]
		sort.Strings(rep.Files)

		tierRes := adapter.Parse(rep.Source)
		rep.Parses = tierRes.Success
		if !tierRes.Success && tierRes.Error != nil {
			rep.ParseError = tierRes.Error.Message
		}

		var handler *compiler.CompiledHandler
		if entry, ok := cache.Get(key); ok {
			rep.Cached = true
			if entry.Compiled {
				handler = &compiler.CompiledHandler{
					ID:    entry.ID,
					Event: entry.Event,
					Modifiers: ast.EventModifiers{
						Once:     entry.Once,
						Prevent:  entry.Prevent,
						Stop:     entry.Stop,
						Debounce: entry.Debounce,
						Throttle: entry.Throttle,
					},
					Code:           entry.Code,
					NeedsEvaluator: entry.NeedsEvaluator,
					Original:       rep.Source,
				}
			} else {
				rep.Fallback = entry.Reason
			}
		} else {
			handler = session.Compile(rep.Source)
			if handler == nil {
				rep.Fallback = FallbackReason(rep.Source)
			}
			cache.Put(key, toCacheEntry(handler, rep.Fallback))
		}

		if handler != nil {
			rep.Compiled = true
			rep.HandlerID = handler.ID
			rep.Event = handler.Event
			handlers = append(handlers, handler)
		}

		collectHelpers(scanner, rep.Source, helpers)
		reports = append(reports, *rep)
	}

	bundle := assembleBundle(handlers)
	digest := blake2b.Sum256([]byte(bundle))

	manifest := &Manifest{
		Tier: string(adapter.Tier()),
		RecommendedTier: string(tiers.Recommend(tiers.Usage{
			Commands:   agg.CommandList(),
			Blocks:     len(agg.Blocks) > 0,
			Positional: agg.Positional,
		})),
		Files:           fileHashes,
		Snippets:        reports,
		Usage:           agg,
		RequiredHelpers: sortedSet(helpers),
		HandlerCount:    len(handlers),
		BundleDigest:    hex.EncodeToString(digest[:]),
	}

	return &BuildResult{
		Bundle:    bundle,
		Manifest:  manifest,
		Handlers:  handlers,
		CacheHits: cache.Hits(),
		cache:     cache,
		noCache:   noCache,
	}, nil
}

// WriteOutputs writes the bundle, the manifest and (when caching) the
// compile cache to their configured paths.
func (r *BuildResult) WriteOutputs(cfg *config.Config) error {
	if err := writeFile(cfg.Out, []byte(r.Bundle)); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	data, err := json.MarshalIndent(r.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := writeFile(cfg.Manifest, append(data, '\n')); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if !r.noCache {
		if err := r.cache.Save(); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// toCacheEntry captures a compile outcome for the cache.
func toCacheEntry(h *compiler.CompiledHandler, reason string) CacheEntry {
	if h == nil {
		return CacheEntry{Reason: reason}
	}
	return CacheEntry{
		Compiled:       true,
		ID:             h.ID,
		Event:          h.Event,
		Code:           h.Code,
		NeedsEvaluator: h.NeedsEvaluator,
		Once:           h.Modifiers.Once,
		Prevent:        h.Modifiers.Prevent,
		Stop:           h.Modifiers.Stop,
		Debounce:       h.Modifiers.Debounce,
		Throttle:       h.Modifiers.Throttle,
	}
}

// FallbackReason explains why the compiler declined a snippet, walking
// the same gates the compiler does. Build records it in the manifest and
// the CLI prints it for single-snippet compiles.
func FallbackReason(source string) string {
	res := parser.Parse(source)
	if !res.Success {
		msg := "parse error"
		if res.Error != nil {
			msg = "parse error: " + res.Error.Message
		}
		return msg
	}
	h, ok := res.Node.(*ast.EventHandler)
	if !ok {
		return "not a single event handler"
	}
	if h.Filter != nil || h.From != nil {
		return "filtered or delegated handler needs the runtime"
	}
	for _, stmt := range h.Body {
		cmd, ok := stmt.(*ast.Command)
		if !ok {
			return "block statement needs the runtime"
		}
		if !commands.Compilable(cmd.Name) {
			name := cmd.Name
			if cmd.OriginalCommand != "" {
				name = cmd.OriginalCommand
			}
			return fmt.Sprintf("command %q needs the runtime", name)
		}
	}
	return "unsupported command or expression form"
}

// collectHelpers unions the runtime helpers a snippet needs: from the
// analyzer when it parses, from the scanned command vocabulary when it
// does not.
func collectHelpers(scanner *Scanner, source string, into map[string]bool) {
	if res := parser.Parse(source); res.Success {
		for _, h := range analyzer.RequiredHelpers(res.Node) {
			into[h] = true
		}
		return
	}
	usage := scanner.AnalyzeSnippet(source)
	for cmd := range usage.Commands {
		for _, h := range commands.Helpers(commands.Name(cmd)) {
			into[h] = true
		}
	}
}

func sortedScanPaths(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedReportKeys(m map[string]*SnippetReport) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func appendUnique(list []string, v string) []string {
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}
