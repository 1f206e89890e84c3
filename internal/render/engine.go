// Package render is the sandboxed template engine behind the prompt
// pipeline. Templates are plain text with {{variable}} substitution, an
// optional filter pipeline ({{name|upper}}), and text/template control
// flow ({{if .has_history}}, {{range .history}}). The engine can reach
// nothing outside the variable map: no filesystem, no network, no other
// templates, and only the filters registered below.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/promptdeck/promptdeck/internal/models"
)

// bareVarPattern matches operator-style references like {{name}} or
// {{name|upper|trim}} so they can be rewritten into the dotted form the
// engine executes. References that already start with ".", keywords,
// and function calls are left untouched.
var bareVarPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)((?:\s*\|\s*[a-zA-Z_][a-zA-Z0-9_]*)*)\s*\}\}`)

// missingKeyPattern extracts the variable name from text/template's
// missingkey=error failure message.
var missingKeyPattern = regexp.MustCompile(`map has no entry for key "([^"]+)"`)

// reserved are text/template keywords that look like bare variables.
var reserved = map[string]bool{
	"if":       true,
	"else":     true,
	"end":      true,
	"range":    true,
	"with":     true,
	"template": true,
	"block":    true,
	"define":   true,
	"nil":      true,
	"true":     true,
	"false":    true,
	"and":      true,
	"or":       true,
	"not":      true,
}

// filters is the full set of transforms a template may call. Anything
// not in this map is a syntax error at validation time.
var filters = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		return strings.Title(s) //nolint:staticcheck // ASCII prompt text only
	},
	"trim": strings.TrimSpace,
	"join": joinFilter,
}

// joinFilter concatenates a list. The bare form {{items|join}} uses
// ", "; a piped call like {{.items | join "; "}} overrides it.
func joinFilter(args ...any) (string, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", fmt.Errorf("join: takes a list and an optional separator")
	}
	sep := ", "
	if len(args) == 2 {
		s, ok := args[0].(string)
		if !ok {
			return "", fmt.Errorf("join: separator must be a string")
		}
		sep = s
	}

	switch items := args[len(args)-1].(type) {
	case []string:
		return strings.Join(items, sep), nil
	case []any:
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep), nil
	default:
		return "", fmt.Errorf("join: expected a list, got %T", items)
	}
}

// Validate parses content and reports a SyntaxError if it is not a
// well-formed template. Valid content is guaranteed to render against a
// complete variable map.
func Validate(content string) error {
	if _, err := parse(content); err != nil {
		return &models.SyntaxError{Msg: err.Error()}
	}
	return nil
}

// Render executes content against vars. A reference to a variable
// absent from vars fails with a RenderError naming it; nothing renders
// as an empty string silently.
func Render(content string, vars map[string]any) (string, error) {
	tmpl, err := parse(content)
	if err != nil {
		return "", &models.SyntaxError{Msg: err.Error()}
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		if m := missingKeyPattern.FindStringSubmatch(err.Error()); m != nil {
			return "", &models.RenderError{Variable: m[1]}
		}
		return "", &models.RenderError{Msg: err.Error()}
	}
	return buf.String(), nil
}

// ExtractVariables lists the bare variable names referenced in content,
// in first-appearance order. Dotted control-flow references are not
// included.
func ExtractVariables(content string) []string {
	matches := bareVarPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		name := m[1]
		if reserved[name] || seen[name] {
			continue
		}
		seen[name] = true
		vars = append(vars, name)
	}
	return vars
}

func parse(content string) (*template.Template, error) {
	tmpl, err := template.New("prompt").
		Funcs(filters).
		Option("missingkey=error").
		Parse(normalize(content))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tmpl, nil
}

// normalize rewrites {{name}} to {{.name}} and {{name|upper}} to
// {{.name | upper}}. Keywords and already-dotted references pass
// through unchanged.
func normalize(content string) string {
	return bareVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := bareVarPattern.FindStringSubmatch(match)
		name, pipeline := m[1], m[2]
		if reserved[name] {
			return match
		}

		var b strings.Builder
		b.WriteString("{{.")
		b.WriteString(name)
		for _, f := range strings.Split(pipeline, "|") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			b.WriteString(" | ")
			b.WriteString(f)
		}
		b.WriteString("}}")
		return b.String()
	})
}
