// Package jsonlang is the built-in capability provider for JSON and JSONC
// files. It reports syntax diagnostics, validates lingua.jsonc buffers against
// the workspace config schema, and serves document symbols for object keys.
package jsonlang

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"

	"github.com/mehmetkoksal-w/lingua/internal/config"
	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
)

// Provider serves the "json" language.
type Provider struct{}

// New returns the JSON provider.
func New() *Provider { return &Provider{} }

// Language returns the language tag.
func (p *Provider) Language() string { return "json" }

// Extensions returns the claimed file extensions.
func (p *Provider) Extensions() []string { return []string{".json", ".jsonc"} }

// Diagnostics reports syntax errors and, for lingua.jsonc buffers, config
// schema violations. Positions for JSONC files are computed on the
// comment-stripped text and may drift inside comment-heavy regions.
func (p *Provider) Diagnostics(_ context.Context, doc provider.Document) ([]protocol.Diagnostic, error) {
	text := doc.Content
	if isJSONC(doc.URI) {
		text = string(jsonc.ToJSON([]byte(doc.Content)))
	}

	if diag := syntaxDiagnostic(text); diag != nil {
		return []protocol.Diagnostic{*diag}, nil
	}

	if path.Base(doc.URI) == "lingua.jsonc" {
		if err := config.ValidateJSONC([]byte(doc.Content)); err != nil {
			return []protocol.Diagnostic{{
				Range:    protocol.Range{Start: protocol.Position{}, End: protocol.Position{Line: 0, Character: 1}},
				Severity: protocol.DiagnosticSeverityWarning,
				Source:   "lingua",
				Message:  err.Error(),
			}}, nil
		}
	}
	return nil, nil
}

// WorkspaceDiagnostics returns nothing: syntax problems are only meaningful
// for buffers the client has open.
func (p *Provider) WorkspaceDiagnostics(context.Context) (map[string][]protocol.Diagnostic, error) {
	return nil, nil
}

// DocumentSymbols returns the object keys of the document as a symbol tree.
func (p *Provider) DocumentSymbols(_ context.Context, doc provider.Document) ([]protocol.DocumentSymbol, error) {
	text := doc.Content
	if isJSONC(doc.URI) {
		text = string(jsonc.ToJSON([]byte(doc.Content)))
	}
	var root any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil, nil
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, nil
	}
	return objectSymbols(text, obj), nil
}

func isJSONC(uri string) bool {
	return strings.HasSuffix(uri, ".jsonc")
}

// syntaxDiagnostic converts a JSON parse failure into a positioned
// diagnostic, or nil when the text parses.
func syntaxDiagnostic(text string) *protocol.Diagnostic {
	var v any
	err := json.Unmarshal([]byte(text), &v)
	if err == nil {
		return nil
	}

	var offset int64
	var msg string
	switch e := err.(type) {
	case *json.SyntaxError:
		offset = e.Offset
		msg = e.Error()
	case *json.UnmarshalTypeError:
		offset = e.Offset
		msg = e.Error()
	default:
		msg = fmt.Sprintf("invalid JSON: %v", err)
	}

	pos := offsetToPosition(text, offset)
	return &protocol.Diagnostic{
		Range:    protocol.Range{Start: pos, End: protocol.Position{Line: pos.Line, Character: pos.Character + 1}},
		Severity: protocol.DiagnosticSeverityError,
		Source:   "lingua",
		Message:  msg,
	}
}

// offsetToPosition maps a byte offset into zero-based line/character. The
// offset points just past the offending byte, so it is clamped back by one.
func offsetToPosition(text string, offset int64) protocol.Position {
	if offset > 0 {
		offset--
	}
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	var pos protocol.Position
	for _, r := range text[:offset] {
		if r == '\n' {
			pos.Line++
			pos.Character = 0
		} else {
			pos.Character++
		}
	}
	return pos
}

// objectSymbols builds one symbol per key. Key locations are found by a
// scan for the quoted key text; duplicate key names resolve to the first
// occurrence, which is good enough for outline navigation.
func objectSymbols(text string, obj map[string]any) []protocol.DocumentSymbol {
	var out []protocol.DocumentSymbol
	for key, value := range obj {
		needle := `"` + key + `"`
		idx := strings.Index(text, needle)
		if idx < 0 {
			continue
		}
		start := offsetToPosition(text, int64(idx+1))
		end := protocol.Position{Line: start.Line, Character: start.Character + len(needle)}
		sym := protocol.DocumentSymbol{
			Name:           key,
			Kind:           kindOf(value),
			Range:          protocol.Range{Start: start, End: end},
			SelectionRange: protocol.Range{Start: start, End: end},
		}
		if child, ok := value.(map[string]any); ok {
			sym.Children = objectSymbols(text, child)
		}
		out = append(out, sym)
	}
	sortSymbols(out)
	return out
}

func sortSymbols(syms []protocol.DocumentSymbol) {
	for i := 1; i < len(syms); i++ {
		for j := i; j > 0 && before(syms[j].Range.Start, syms[j-1].Range.Start); j-- {
			syms[j], syms[j-1] = syms[j-1], syms[j]
		}
	}
}

func before(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

func kindOf(v any) protocol.SymbolKind {
	switch v.(type) {
	case map[string]any:
		return protocol.SymbolKindObject
	case []any:
		return protocol.SymbolKindArray
	case string:
		return protocol.SymbolKindString
	case float64:
		return protocol.SymbolKindNumber
	case bool:
		return protocol.SymbolKindBoolean
	case nil:
		return protocol.SymbolKindNull
	default:
		return protocol.SymbolKindProperty
	}
}
