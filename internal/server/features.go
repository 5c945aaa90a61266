package server

import (
	"context"
	"encoding/json"

	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
	"github.com/mehmetkoksal-w/lingua/internal/registry"
)

// routedHandlers returns the handlers of one category whose selector matches
// the document's path, in discovery order. An empty selector matches nothing,
// so handlers for languages that declared no extensions never appear here.
func (s *Server) routedHandlers(cat registry.Category, uri string) []any {
	if s.registry == nil {
		return nil
	}
	path := protocol.URIToPath(uri)
	var out []any
	for _, coll := range s.registry.ForDocument(cat, path) {
		out = append(out, coll.Handlers...)
	}
	return out
}

// Document sync. The open-document store is the built-in behavior; providers
// implementing DocumentSyncHandler observe the same notifications afterward.

func (s *Server) handleDidOpen(req protocol.Request) *protocol.Response {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Printf("bad didOpen params: %v", err)
		return nil
	}

	s.docs.Open(params.TextDocument)
	s.logger.Printf("opened %s (version %d)", params.TextDocument.URI, params.TextDocument.Version)

	ctx := context.Background()
	for _, h := range s.routedHandlers(registry.CategoryDocumentSync, params.TextDocument.URI) {
		if sync, ok := h.(provider.DocumentSyncHandler); ok {
			if err := sync.DidOpen(ctx, params.TextDocument); err != nil {
				s.logger.Printf("didOpen handler: %v", err)
			}
		}
	}

	s.publishDiagnosticsFor(params.TextDocument.URI)
	return nil
}

func (s *Server) handleDidChange(req protocol.Request) *protocol.Response {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Printf("bad didChange params: %v", err)
		return nil
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}

	// Full sync: the last change event carries the whole document.
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	uri := params.TextDocument.URI
	applied, err := s.docs.Apply(uri, params.TextDocument.Version, text)
	if err != nil {
		s.logger.Printf("didChange: %v", err)
		return nil
	}
	if !applied {
		s.logger.Printf("didChange: dropped stale version %d for %s", params.TextDocument.Version, uri)
		return nil
	}

	ctx := context.Background()
	for _, h := range s.routedHandlers(registry.CategoryDocumentSync, uri) {
		if sync, ok := h.(provider.DocumentSyncHandler); ok {
			if err := sync.DidChange(ctx, uri, params.TextDocument.Version, text); err != nil {
				s.logger.Printf("didChange handler: %v", err)
			}
		}
	}

	s.debounceDiagnostics(uri)
	return nil
}

func (s *Server) handleDidClose(req protocol.Request) *protocol.Response {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Printf("bad didClose params: %v", err)
		return nil
	}

	uri := params.TextDocument.URI
	s.docs.Close(uri)
	s.clearDiagnosticsCache(uri)

	ctx := context.Background()
	for _, h := range s.routedHandlers(registry.CategoryDocumentSync, uri) {
		if sync, ok := h.(provider.DocumentSyncHandler); ok {
			if err := sync.DidClose(ctx, uri); err != nil {
				s.logger.Printf("didClose handler: %v", err)
			}
		}
	}

	// Clear stale squiggles for the closed buffer.
	if err := s.publishDiagnostics(uri, []protocol.Diagnostic{}); err != nil {
		s.logger.Printf("publish on close: %v", err)
	}
	return nil
}

func (s *Server) handleDidSave(req protocol.Request) *protocol.Response {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Printf("bad didSave params: %v", err)
		return nil
	}
	s.publishDiagnosticsFor(params.TextDocument.URI)
	return nil
}

// Position-based features. The first handler producing a result wins for
// singular results (hover, signature help, rename); list results aggregate
// across every matching handler.

func (s *Server) handleDefinition(req protocol.Request) *protocol.Response {
	var params protocol.TextDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return s.successResponse(req.ID, nil)
	}

	ctx := context.Background()
	var locations []protocol.Location
	for _, h := range s.routedHandlers(registry.CategoryDefinition, doc.URI) {
		def, ok := h.(provider.DefinitionHandler)
		if !ok {
			continue
		}
		locs, err := def.Definition(ctx, doc, params.Position)
		if err != nil {
			s.logger.Printf("definition handler: %v", err)
			continue
		}
		locations = append(locations, locs...)
	}
	if locations == nil {
		return s.successResponse(req.ID, nil)
	}
	return s.successResponse(req.ID, locations)
}

func (s *Server) handleHover(req protocol.Request) *protocol.Response {
	var params protocol.TextDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return s.successResponse(req.ID, nil)
	}

	ctx := context.Background()
	for _, h := range s.routedHandlers(registry.CategoryHover, doc.URI) {
		hv, ok := h.(provider.HoverHandler)
		if !ok {
			continue
		}
		hover, err := hv.Hover(ctx, doc, params.Position)
		if err != nil {
			s.logger.Printf("hover handler: %v", err)
			continue
		}
		if hover != nil {
			return s.successResponse(req.ID, hover)
		}
	}
	return s.successResponse(req.ID, nil)
}

func (s *Server) handleCompletion(req protocol.Request) *protocol.Response {
	var params protocol.TextDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return s.successResponse(req.ID, protocol.CompletionList{Items: []protocol.CompletionItem{}})
	}

	ctx := context.Background()
	items := []protocol.CompletionItem{}
	for _, h := range s.routedHandlers(registry.CategoryCompletion, doc.URI) {
		comp, ok := h.(provider.CompletionHandler)
		if !ok {
			continue
		}
		res, err := comp.Complete(ctx, doc, params.Position)
		if err != nil {
			s.logger.Printf("completion handler: %v", err)
			continue
		}
		items = append(items, res...)
	}
	return s.successResponse(req.ID, protocol.CompletionList{Items: items})
}

func (s *Server) handleSignatureHelp(req protocol.Request) *protocol.Response {
	var params protocol.TextDocumentPositionParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return s.successResponse(req.ID, nil)
	}

	ctx := context.Background()
	for _, h := range s.routedHandlers(registry.CategorySignatureHelp, doc.URI) {
		sig, ok := h.(provider.SignatureHelpHandler)
		if !ok {
			continue
		}
		help, err := sig.SignatureHelp(ctx, doc, params.Position)
		if err != nil {
			s.logger.Printf("signature help handler: %v", err)
			continue
		}
		if help != nil {
			return s.successResponse(req.ID, help)
		}
	}
	return s.successResponse(req.ID, nil)
}

func (s *Server) handleRename(req protocol.Request) *protocol.Response {
	var params protocol.RenameParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return s.successResponse(req.ID, nil)
	}

	ctx := context.Background()
	for _, h := range s.routedHandlers(registry.CategoryRename, doc.URI) {
		ren, ok := h.(provider.RenameHandler)
		if !ok {
			continue
		}
		edit, err := ren.Rename(ctx, doc, params.Position, params.NewName)
		if err != nil {
			s.logger.Printf("rename handler: %v", err)
			continue
		}
		if edit != nil {
			return s.successResponse(req.ID, edit)
		}
	}
	return s.successResponse(req.ID, nil)
}

func (s *Server) handleDocumentSymbol(req protocol.Request) *protocol.Response {
	var params protocol.DocumentSymbolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return s.successResponse(req.ID, []protocol.DocumentSymbol{})
	}

	ctx := context.Background()
	symbols := []protocol.DocumentSymbol{}
	for _, h := range s.routedHandlers(registry.CategoryDocumentSymbol, doc.URI) {
		sym, ok := h.(provider.DocumentSymbolHandler)
		if !ok {
			continue
		}
		res, err := sym.DocumentSymbols(ctx, doc)
		if err != nil {
			s.logger.Printf("document symbol handler: %v", err)
			continue
		}
		symbols = append(symbols, res...)
	}
	return s.successResponse(req.ID, symbols)
}
