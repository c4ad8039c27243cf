// Package resolver expands $variable references in node parameters
// against the per-execution variable environment.
package resolver

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Logger interface for logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
}

// tokenPattern matches $$ escapes and $name references with optional
// dotted paths and [i] array indexing, e.g. $src.items[0].id
var tokenPattern = regexp.MustCompile(`\$\$|\$[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+|\[[0-9]+\])*`)

// Resolver substitutes variable references inside JSON values.
// Missing references resolve to null; resolution never fails.
type Resolver struct {
	logger Logger
}

// New creates a resolver
func New(logger Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve walks a JSON value and expands every string containing
// variable references. Non-string primitives pass through unchanged.
func (r *Resolver) Resolve(value interface{}, variables map[string]interface{}) interface{} {
	env, err := json.Marshal(variables)
	if err != nil {
		// Variables always originate from JSON, so this should not happen;
		// treat the environment as empty rather than failing the node.
		env = []byte("{}")
	}
	return r.resolveValue(value, env)
}

// ResolveParameters resolves a full parameters map
func (r *Resolver) ResolveParameters(parameters map[string]interface{}, variables map[string]interface{}) map[string]interface{} {
	resolved := r.Resolve(parameters, variables)
	if m, ok := resolved.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func (r *Resolver) resolveValue(value interface{}, env []byte) interface{} {
	switch v := value.(type) {
	case string:
		return r.resolveString(v, env)
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(v))
		for key, item := range v {
			resolved[key] = r.resolveValue(item, env)
		}
		return resolved
	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, item := range v {
			resolved[i] = r.resolveValue(item, env)
		}
		return resolved
	default:
		return value
	}
}

func (r *Resolver) resolveString(s string, env []byte) interface{} {
	matches := tokenPattern.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	// A string that is exactly one reference keeps the raw JSON value
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) && s != "$$" {
		return r.lookup(s, env)
	}

	// Embedded references are stringified in place
	var b strings.Builder
	last := 0
	for _, match := range matches {
		b.WriteString(s[last:match[0]])
		token := s[match[0]:match[1]]
		if token == "$$" {
			b.WriteString("$")
		} else {
			b.WriteString(stringify(r.lookup(token, env)))
		}
		last = match[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// lookup resolves a single $path token against the environment
func (r *Resolver) lookup(token string, env []byte) interface{} {
	path := gjsonPath(token)
	result := gjson.GetBytes(env, path)
	if !result.Exists() {
		if r.logger != nil {
			r.logger.Debug("variable reference unresolved", "path", token)
		}
		return nil
	}
	return result.Value()
}

// gjsonPath converts $a.b[2].c into the gjson path a.b.2.c
func gjsonPath(token string) string {
	path := strings.TrimPrefix(token, "$")
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	return path
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
