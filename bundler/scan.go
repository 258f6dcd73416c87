// Package bundler turns a tree of templates into a compiled handler
// bundle. The scanner half extracts hyperscript snippets from markup
// and reports which commands, blocks and positional expressions they
// use; the build half compiles every unique snippet ahead of time and
// emits the bundle, its manifest and a compile cache.
package bundler

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lokascript/hyperfixi/core/config"
)

// FileUsage is the usage detected in a single file (or snippet).
type FileUsage struct {
	Commands   map[string]bool
	Blocks     map[string]bool
	Positional bool
}

// NewFileUsage returns an empty usage record.
func NewFileUsage() *FileUsage {
	return &FileUsage{
		Commands: make(map[string]bool),
		Blocks:   make(map[string]bool),
	}
}

// Any reports whether anything at all was detected.
func (u *FileUsage) Any() bool {
	return len(u.Commands) > 0 || len(u.Blocks) > 0 || u.Positional
}

// Merge folds other into u.
func (u *FileUsage) Merge(other *FileUsage) {
	for c := range other.Commands {
		u.Commands[c] = true
	}
	for b := range other.Blocks {
		u.Blocks[b] = true
	}
	if other.Positional {
		u.Positional = true
	}
}

// CommandList returns the detected commands in sorted order.
func (u *FileUsage) CommandList() []string { return sortedSet(u.Commands) }

// BlockList returns the detected blocks in sorted order.
func (u *FileUsage) BlockList() []string { return sortedSet(u.Blocks) }

// MarshalJSON emits the sorted report shape used by the manifest and
// the scan command.
func (u *FileUsage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Commands   []string `json:"commands"`
		Blocks     []string `json:"blocks"`
		Positional bool     `json:"positional"`
	}{u.CommandList(), u.BlockList(), u.Positional})
}

// UnmarshalJSON accepts the emitted report shape back, so manifest
// readers can reuse this type.
func (u *FileUsage) UnmarshalJSON(data []byte) error {
	var doc struct {
		Commands   []string `json:"commands"`
		Blocks     []string `json:"blocks"`
		Positional bool     `json:"positional"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*u = *NewFileUsage()
	for _, c := range doc.Commands {
		u.Commands[c] = true
	}
	for _, b := range doc.Blocks {
		u.Blocks[b] = true
	}
	u.Positional = doc.Positional
	return nil
}

// AggregatedUsage is the union of usage across scanned files.
type AggregatedUsage struct {
	Commands   map[string]bool
	Blocks     map[string]bool
	Positional bool
	Files      map[string]*FileUsage
}

// CommandList returns the aggregate commands in sorted order.
func (a *AggregatedUsage) CommandList() []string { return sortedSet(a.Commands) }

// BlockList returns the aggregate blocks in sorted order.
func (a *AggregatedUsage) BlockList() []string { return sortedSet(a.Blocks) }

// MarshalJSON emits the aggregate report: sorted sets plus the file
// count, matching the per-file shape.
func (a *AggregatedUsage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Commands   []string `json:"commands"`
		Blocks     []string `json:"blocks"`
		Positional bool     `json:"positional"`
		FileCount  int      `json:"file_count"`
	}{a.CommandList(), a.BlockList(), a.Positional, len(a.Files)})
}

// UnmarshalJSON accepts the aggregate report back. Per-file detail is
// not on the wire; Files comes back empty.
func (a *AggregatedUsage) UnmarshalJSON(data []byte) error {
	var doc struct {
		Commands   []string `json:"commands"`
		Blocks     []string `json:"blocks"`
		Positional bool     `json:"positional"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	a.Commands = make(map[string]bool, len(doc.Commands))
	for _, c := range doc.Commands {
		a.Commands[c] = true
	}
	a.Blocks = make(map[string]bool, len(doc.Blocks))
	for _, b := range doc.Blocks {
		a.Blocks[b] = true
	}
	a.Positional = doc.Positional
	a.Files = make(map[string]*FileUsage)
	return nil
}

// Aggregate unions per-file usage into one report.
func Aggregate(files map[string]*FileUsage) *AggregatedUsage {
	agg := &AggregatedUsage{
		Commands: make(map[string]bool),
		Blocks:   make(map[string]bool),
		Files:    files,
	}
	if agg.Files == nil {
		agg.Files = make(map[string]*FileUsage)
	}
	for _, u := range files {
		for c := range u.Commands {
			agg.Commands[c] = true
		}
		for b := range u.Blocks {
			agg.Blocks[b] = true
		}
		if u.Positional {
			agg.Positional = true
		}
	}
	return agg
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// snippetPatterns extract hyperscript from the attribute and template
// forms templates actually use: plain/JSX `_` attributes, the data-hs
// variant, Django `{% hs %}` blocks and simple tags, and inline
// text/hyperscript script elements.
var snippetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`_="([^"]*)"`),
	regexp.MustCompile(`_='([^']*)'`),
	regexp.MustCompile("_=`([^`]*)`"),
	regexp.MustCompile("_=\\{`([^`]+)`\\}"),
	regexp.MustCompile(`_=\{['"]([^'"]+)['"]\}`),
	regexp.MustCompile(`data-hs="([^"]*)"`),
	regexp.MustCompile(`data-hs='([^']*)'`),
	regexp.MustCompile(`(?s)\{%\s*hs\s*%\}(.*?)\{%\s*endhs\s*%\}`),
	regexp.MustCompile(`\{%\s*hs_attr\s+"([^"]+)"\s*%\}`),
	regexp.MustCompile(`\{%\s*hs_attr\s+'([^']+)'\s*%\}`),
	regexp.MustCompile(`\{%\s*hs_script\s+"([^"]+)"\s*%\}`),
	regexp.MustCompile(`\{%\s*hs_script\s+'([^']+)'\s*%\}`),
	regexp.MustCompile(`(?is)<script[^>]*type=["']?text/hyperscript["']?[^>]*>(.*?)</script>`),
}

// commandPattern covers the tree-shakeable command vocabulary, including
// the removeClass alias.
var commandPattern = regexp.MustCompile(`(?i)\b(toggle|add|remove|removeClass|show|hide|set|get|put|append|` +
	`take|increment|decrement|log|send|trigger|wait|transition|go|call|` +
	`focus|blur|return)\b`)

// blockPatterns detect block constructs; unless is recorded as if since
// the two share an implementation.
var blockPatterns = map[string]*regexp.Regexp{
	"if":     regexp.MustCompile(`(?i)\bif\b`),
	"unless": regexp.MustCompile(`(?i)\bunless\b`),
	"repeat": regexp.MustCompile(`(?i)\brepeat\s+(\d+|:\w+|\$\w+|[\w.]+)\s+times?\b`),
	"for":    regexp.MustCompile(`(?i)\bfor\s+(each|every)\b`),
	"while":  regexp.MustCompile(`(?i)\bwhile\b`),
	"fetch":  regexp.MustCompile(`(?i)\bfetch\b`),
	"async":  regexp.MustCompile(`(?i)\basync\b`),
}

var positionalPattern = regexp.MustCompile(`(?i)\b(first|last|next|previous|closest|parent)\b`)

// Scanner walks template trees and extracts hyperscript usage.
type Scanner struct {
	extensions map[string]bool
	exclude    []string
	logger     *slog.Logger
}

// NewScanner builds a scanner over the given extension and exclude
// sets; nil slices fall back to the config defaults.
func NewScanner(extensions, exclude []string) *Scanner {
	def := config.Default()
	if extensions == nil {
		extensions = def.Extensions
	}
	if exclude == nil {
		exclude = def.Exclude
	}
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}
	return &Scanner{
		extensions: extSet,
		exclude:    exclude,
		logger:     slog.Default(),
	}
}

// Excluded reports whether path hits an exclude pattern. Patterns match
// as plain substrings anywhere in the path.
func (s *Scanner) Excluded(path string) bool {
	for _, pattern := range s.exclude {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// ShouldScan reports whether path is a scannable template: a known
// extension and no excluded path segment.
func (s *Scanner) ShouldScan(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))] && !s.Excluded(path)
}

// ExtractSnippets pulls every hyperscript snippet out of content, in
// pattern order, trimmed, empties dropped.
func (s *Scanner) ExtractSnippets(content string) []string {
	var snippets []string
	for _, pattern := range snippetPatterns {
		for _, m := range pattern.FindAllStringSubmatch(content, -1) {
			if snippet := strings.TrimSpace(m[1]); snippet != "" {
				snippets = append(snippets, snippet)
			}
		}
	}
	return snippets
}

// AnalyzeSnippet classifies one snippet by regex: commands (lowercased),
// blocks, and whether positional expressions appear.
func (s *Scanner) AnalyzeSnippet(snippet string) *FileUsage {
	usage := NewFileUsage()
	for _, m := range commandPattern.FindAllStringSubmatch(snippet, -1) {
		usage.Commands[strings.ToLower(m[1])] = true
	}
	for name, pattern := range blockPatterns {
		if pattern.MatchString(snippet) {
			if name == "unless" {
				usage.Blocks["if"] = true
			} else {
				usage.Blocks[name] = true
			}
		}
	}
	if positionalPattern.MatchString(snippet) {
		usage.Positional = true
	}
	return usage
}

// ScanContent extracts and analyzes every snippet in content.
func (s *Scanner) ScanContent(content string) *FileUsage {
	usage := NewFileUsage()
	for _, snippet := range s.ExtractSnippets(content) {
		usage.Merge(s.AnalyzeSnippet(snippet))
	}
	return usage
}

// ScanFile scans one file.
func (s *Scanner) ScanFile(path string) (*FileUsage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	usage := s.ScanContent(string(content))
	if usage.Any() {
		s.logger.Debug("scanned template",
			"path", path,
			"commands", usage.CommandList(),
			"blocks", usage.BlockList(),
			"positional", usage.Positional)
	}
	return usage, nil
}

// listFiles resolves dir to its scannable files. A nonexistent dir
// yields no files; unreadable subtrees are skipped, matching a build
// that races editors.
func (s *Scanner) listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() && s.ShouldScan(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return files, nil
}

// ListFiles resolves a mix of files and directories to the scannable
// files beneath them. Single files are taken as named, extension and
// excludes notwithstanding; missing roots are skipped.
func (s *Scanner) ListFiles(roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		sub, err := s.listFiles(root)
		if err != nil {
			return nil, err
		}
		files = append(files, sub...)
	}
	return files, nil
}

// ScanRoots scans a mix of files and directories, keeping only files
// with detected usage.
func (s *Scanner) ScanRoots(roots []string) (map[string]*FileUsage, error) {
	files, err := s.ListFiles(roots)
	if err != nil {
		return nil, err
	}
	results := make(map[string]*FileUsage)
	for _, path := range files {
		usage, err := s.ScanFile(path)
		if err != nil {
			s.logger.Debug("skipping unreadable template", "path", path, "error", err)
			continue
		}
		if usage.Any() {
			results[filepath.ToSlash(path)] = usage
		}
	}
	return results, nil
}

// ProjectScan couples each file's extracted snippets with its usage,
// from a single read per file.
type ProjectScan struct {
	// Snippets maps file path to its snippets in extraction order.
	Snippets map[string][]string

	// Usage maps file path to detected usage, files without any omitted.
	Usage map[string]*FileUsage
}

// ScanProject scans roots for the build pipeline: per-file snippet
// lists for compilation plus per-file usage for the report.
func (s *Scanner) ScanProject(roots []string) (*ProjectScan, error) {
	files, err := s.ListFiles(roots)
	if err != nil {
		return nil, err
	}
	scan := &ProjectScan{
		Snippets: make(map[string][]string),
		Usage:    make(map[string]*FileUsage),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			s.logger.Debug("skipping unreadable template", "path", path, "error", err)
			continue
		}
		snippets := s.ExtractSnippets(string(content))
		if len(snippets) == 0 {
			continue
		}
		key := filepath.ToSlash(path)
		scan.Snippets[key] = snippets
		usage := NewFileUsage()
		for _, snippet := range snippets {
			usage.Merge(s.AnalyzeSnippet(snippet))
		}
		if usage.Any() {
			scan.Usage[key] = usage
		}
	}
	return scan, nil
}
