// Package provider defines the capability provider contract and the typed
// handler interfaces a provider may implement. A provider declares a language
// and the file extensions it owns; the handler interfaces it satisfies decide
// which protocol requests are routed to it.
package provider

import (
	"context"

	"github.com/mehmetkoksal-w/lingua/internal/protocol"
)

// CapabilityProvider is one pluggable analysis backend. Implementations are
// immutable after discovery.
type CapabilityProvider interface {
	// Language returns the language tag this provider serves, e.g. "json".
	Language() string
	// Extensions returns the file extensions this provider claims, each
	// including the leading dot, e.g. ".json".
	Extensions() []string
}

// Document is an open text document snapshot handed to handlers.
type Document struct {
	URI        string
	LanguageID string
	Version    int
	Content    string
}

// Typed handler interfaces. This is a closed set: one interface per protocol
// category the server routes. A provider implements any subset of them.

// DocumentSyncHandler observes document lifecycle notifications.
type DocumentSyncHandler interface {
	DidOpen(ctx context.Context, item protocol.TextDocumentItem) error
	DidChange(ctx context.Context, uri string, version int, text string) error
	DidClose(ctx context.Context, uri string) error
}

// DefinitionHandler serves textDocument/definition.
type DefinitionHandler interface {
	Definition(ctx context.Context, doc Document, pos protocol.Position) ([]protocol.Location, error)
}

// HoverHandler serves textDocument/hover.
type HoverHandler interface {
	Hover(ctx context.Context, doc Document, pos protocol.Position) (*protocol.Hover, error)
}

// CompletionHandler serves textDocument/completion.
type CompletionHandler interface {
	Complete(ctx context.Context, doc Document, pos protocol.Position) ([]protocol.CompletionItem, error)
}

// SignatureHelpHandler serves textDocument/signatureHelp.
type SignatureHelpHandler interface {
	SignatureHelp(ctx context.Context, doc Document, pos protocol.Position) (*protocol.SignatureHelp, error)
}

// RenameHandler serves textDocument/rename.
type RenameHandler interface {
	Rename(ctx context.Context, doc Document, pos protocol.Position, newName string) (*protocol.WorkspaceEdit, error)
}

// DocumentSymbolHandler serves textDocument/documentSymbol.
type DocumentSymbolHandler interface {
	DocumentSymbols(ctx context.Context, doc Document) ([]protocol.DocumentSymbol, error)
}

// DiagnosticsHandler serves pull diagnostics and the startup sweep.
type DiagnosticsHandler interface {
	// Diagnostics computes diagnostics for one open document.
	Diagnostics(ctx context.Context, doc Document) ([]protocol.Diagnostic, error)
	// WorkspaceDiagnostics computes startup diagnostics across the workspace,
	// keyed by document URI. Called once when the server becomes ready.
	WorkspaceDiagnostics(ctx context.Context) (map[string][]protocol.Diagnostic, error)
}

// Static is a bare provider carrying only routing metadata. Config files use
// it to extend a language's extension set without shipping code.
type Static struct {
	Lang string
	Exts []string
}

// Language returns the declared language tag.
func (s Static) Language() string { return s.Lang }

// Extensions returns the declared extensions.
func (s Static) Extensions() []string { return s.Exts }
