package config

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "schema://hyperfixi.json"

// schemaJSON is the Draft 2020-12 schema for hyperfixi.json. Unknown
// keys are rejected so typos fail loudly instead of being ignored.
const schemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"tier": {"type": "string", "enum": ["lite", "standard", "full"]},
		"roots": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"extensions": {"type": "array", "items": {"type": "string", "pattern": "^\\."}},
		"exclude": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"out": {"type": "string", "minLength": 1},
		"manifest": {"type": "string", "minLength": 1},
		"cache": {"type": "string"},
		"serve": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"addr": {"type": "string", "minLength": 1}
			}
		},
		"debug": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"lexer": {"type": "boolean"},
				"parser": {"type": "boolean"},
				"compiler": {"type": "boolean"}
			}
		}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
)

// configSchema compiles the embedded schema once. The schema is a
// compile-time constant, so a compilation failure is programmer error.
func configSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			panic(err)
		}
		s, err := c.Compile(schemaURL)
		if err != nil {
			panic(err)
		}
		schema = s
	})
	return schema
}
