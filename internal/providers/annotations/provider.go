// Package annotations exposes the workspace annotation store through the
// handler interfaces: persisted notes become diagnostics at startup and on
// pull, and hovering an annotated line shows the notes on it.
package annotations

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mehmetkoksal-w/lingua/internal/annotations"
	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
)

// Provider adapts the annotation store. Its extensions come from workspace
// configuration; with none configured it still contributes to the startup
// diagnostics sweep, which does not route through selectors.
type Provider struct {
	store *annotations.Store
	root  string
	exts  []string
}

// New creates the provider for a workspace rooted at root.
func New(store *annotations.Store, root string, exts []string) *Provider {
	return &Provider{store: store, root: root, exts: exts}
}

// Language returns the language tag.
func (p *Provider) Language() string { return "annotations" }

// Extensions returns the configured extensions.
func (p *Provider) Extensions() []string { return p.exts }

// Diagnostics returns the stored notes for one document as diagnostics.
func (p *Provider) Diagnostics(ctx context.Context, doc provider.Document) ([]protocol.Diagnostic, error) {
	rel, err := p.relPath(doc.URI)
	if err != nil {
		return nil, err
	}
	notes, err := p.store.ForPath(ctx, rel)
	if err != nil {
		return nil, err
	}
	return toDiagnostics(notes), nil
}

// WorkspaceDiagnostics returns every stored note, grouped by document URI.
func (p *Provider) WorkspaceDiagnostics(ctx context.Context) (map[string][]protocol.Diagnostic, error) {
	byPath, err := p.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]protocol.Diagnostic, len(byPath))
	for rel, notes := range byPath {
		uri := protocol.PathToURI(filepath.Join(p.root, filepath.FromSlash(rel)))
		out[uri] = toDiagnostics(notes)
	}
	return out, nil
}

// Hover shows the notes on the hovered line as markdown.
func (p *Provider) Hover(ctx context.Context, doc provider.Document, pos protocol.Position) (*protocol.Hover, error) {
	rel, err := p.relPath(doc.URI)
	if err != nil {
		return nil, err
	}
	notes, err := p.store.ForPath(ctx, rel)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, n := range notes {
		if n.Line != pos.Line {
			continue
		}
		author := n.Author
		if author == "" {
			author = "note"
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s", author, n.Message))
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: strings.Join(lines, "\n\n"),
		},
	}, nil
}

func (p *Provider) relPath(uri string) (string, error) {
	abs := protocol.URIToPath(uri)
	rel, err := filepath.Rel(p.root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func toDiagnostics(notes []annotations.Annotation) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(notes))
	for _, n := range notes {
		msg := n.Message
		if n.Author != "" {
			msg = n.Author + ": " + msg
		}
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: n.Line},
				End:   protocol.Position{Line: n.Line + 1},
			},
			Severity: protocol.DiagnosticSeverity(n.Severity),
			Source:   "lingua-annotations",
			Message:  msg,
		})
	}
	return out
}
