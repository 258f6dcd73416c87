// Package config loads the hyperfixi.json project file. Every field has
// a zero-config default, so a missing file is not an error and a present
// file only overrides what it names. The raw document is validated
// against an embedded JSON schema before decoding, so type errors and
// misspelled keys surface as pointed messages instead of Go unmarshal
// noise.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the project file LoadDir looks for.
const FileName = "hyperfixi.json"

// Config is the project configuration.
type Config struct {
	// Tier selects the parser tier used for scanning, compilation and
	// the REPL: lite, standard or full.
	Tier string `json:"tier"`

	// Roots are the directories or files scanned for markup.
	Roots []string `json:"roots"`

	// Extensions is the set of file suffixes scanned under Roots,
	// compared case-insensitively.
	Extensions []string `json:"extensions"`

	// Exclude lists path substrings that disqualify a file from
	// scanning.
	Exclude []string `json:"exclude"`

	// Out is the bundle output path.
	Out string `json:"out"`

	// Manifest is the build report output path.
	Manifest string `json:"manifest"`

	// Cache is the compile cache file. Deleting it is always safe.
	Cache string `json:"cache"`

	Serve ServeConfig `json:"serve"`
	Debug DebugConfig `json:"debug"`
}

// ServeConfig configures the development server.
type ServeConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr"`
}

// DebugConfig gates per-stage debug logging. Each switch maps to the
// environment variable the stage constructors already read; variables
// set in the environment win over the file.
type DebugConfig struct {
	Lexer    bool `json:"lexer"`
	Parser   bool `json:"parser"`
	Compiler bool `json:"compiler"`
}

// Default returns the zero-config defaults: full tier, current
// directory, and the scanner's stock extension and exclude sets.
func Default() *Config {
	return &Config{
		Tier:       "full",
		Roots:      []string{"."},
		Extensions: []string{".html", ".htm", ".txt", ".xml", ".jinja", ".jinja2"},
		Exclude:    []string{"__pycache__", ".git", "node_modules", ".venv", "venv", "site-packages"},
		Out:        "hyperfixi.bundle.js",
		Manifest:   "hyperfixi.manifest.json",
		Cache:      ".hyperfixi.cache",
		Serve:      ServeConfig{Addr: ":8080"},
	}
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// LoadDir loads dir/hyperfixi.json. A missing file yields the defaults.
func LoadDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse validates and decodes one config document. The path is only
// used in error messages.
func Parse(data []byte, path string) (*Config, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := configSchema().Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Apply exports each enabled switch as its environment variable so the
// stage constructors pick it up. Switches already present in the
// environment are left alone, set or not.
func (d DebugConfig) Apply() {
	set := func(key string, on bool) {
		if _, present := os.LookupEnv(key); on && !present {
			os.Setenv(key, "1")
		}
	}
	set("HYPERFIXI_DEBUG_LEXER", d.Lexer)
	set("HYPERFIXI_DEBUG_PARSER", d.Parser)
	set("HYPERFIXI_DEBUG_COMPILER", d.Compiler)
}
