package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
	"github.com/mehmetkoksal-w/lingua/internal/registry"
)

// publishDiagnostics sends a publishDiagnostics notification for one URI.
func (s *Server) publishDiagnostics(uri string, diagnostics []protocol.Diagnostic) error {
	return s.notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// computeDiagnostics gathers diagnostics from every matching handler. One
// handler's failure is logged; the rest still contribute.
func (s *Server) computeDiagnostics(doc provider.Document) []protocol.Diagnostic {
	ctx := context.Background()
	diagnostics := []protocol.Diagnostic{}
	for _, h := range s.routedHandlers(registry.CategoryDiagnostics, doc.URI) {
		dh, ok := h.(provider.DiagnosticsHandler)
		if !ok {
			continue
		}
		items, err := dh.Diagnostics(ctx, doc)
		if err != nil {
			s.logger.Printf("diagnostics handler: %v", err)
			continue
		}
		diagnostics = append(diagnostics, items...)
	}
	return diagnostics
}

// publishDiagnosticsFor computes and publishes immediately, updating the
// pull-diagnostics cache along the way.
func (s *Server) publishDiagnosticsFor(uri string) {
	doc, ok := s.docs.Get(uri)
	if !ok {
		return
	}

	diagnostics := s.computeDiagnostics(doc)

	s.cacheMu.Lock()
	s.diagCache[uri] = diagnosticsEntry{
		resultID: uuid.NewString(),
		version:  doc.Version,
		items:    diagnostics,
	}
	s.cacheMu.Unlock()

	if err := s.publishDiagnostics(uri, diagnostics); err != nil {
		s.logger.Printf("publish diagnostics: %v", err)
	}
}

// debounceDiagnostics schedules a publish after the debounce delay,
// resetting the timer on every change to the same document.
func (s *Server) debounceDiagnostics(uri string) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if timer, exists := s.debounceTimers[uri]; exists {
		timer.Stop()
	}
	s.debounceTimers[uri] = time.AfterFunc(s.debounceDelay, func() {
		s.publishDiagnosticsFor(uri)
	})
}

func (s *Server) clearDiagnosticsCache(uri string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.diagCache, uri)
}

// runStartupDiagnostics runs every diagnostics handler's workspace sweep once
// and publishes the results. The sweep ignores selectors: stored findings are
// worth surfacing even for files no provider routes. A failing handler is
// logged and skipped.
func (s *Server) runStartupDiagnostics(reg *registry.Registry) {
	if reg == nil {
		return
	}
	ctx := context.Background()

	byURI := make(map[string][]protocol.Diagnostic)
	for _, coll := range reg.ByCategory(registry.CategoryDiagnostics) {
		for _, h := range coll.Handlers {
			dh, ok := h.(provider.DiagnosticsHandler)
			if !ok {
				continue
			}
			results, err := dh.WorkspaceDiagnostics(ctx)
			if err != nil {
				s.logger.Printf("startup diagnostics (%s/%s): %v", coll.Category, coll.Language, err)
				continue
			}
			for uri, items := range results {
				byURI[uri] = append(byURI[uri], items...)
			}
		}
	}

	for uri, items := range byURI {
		if err := s.publishDiagnostics(uri, items); err != nil {
			s.logger.Printf("startup publish %s: %v", uri, err)
		}
	}
	s.logger.Printf("startup diagnostics complete: %d documents", len(byURI))
}

// handleDiagnostic serves pull diagnostics (LSP 3.17). A previousResultId
// matching the cached result for the same document version yields an
// "unchanged" report.
func (s *Server) handleDiagnostic(req protocol.Request) *protocol.Response {
	var params protocol.DocumentDiagnosticParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	uri := params.TextDocument.URI
	doc, ok := s.docs.Get(uri)
	if !ok {
		return s.successResponse(req.ID, protocol.DocumentDiagnosticReport{
			Kind:  "full",
			Items: []protocol.Diagnostic{},
		})
	}

	s.cacheMu.RLock()
	cached, hasCached := s.diagCache[uri]
	s.cacheMu.RUnlock()

	if hasCached && cached.version == doc.Version {
		if params.PreviousResultID != "" && params.PreviousResultID == cached.resultID {
			return s.successResponse(req.ID, protocol.DocumentDiagnosticReport{
				Kind:     "unchanged",
				ResultID: cached.resultID,
			})
		}
		return s.successResponse(req.ID, protocol.DocumentDiagnosticReport{
			Kind:     "full",
			ResultID: cached.resultID,
			Items:    cached.items,
		})
	}

	diagnostics := s.computeDiagnostics(doc)
	entry := diagnosticsEntry{
		resultID: uuid.NewString(),
		version:  doc.Version,
		items:    diagnostics,
	}
	s.cacheMu.Lock()
	s.diagCache[uri] = entry
	s.cacheMu.Unlock()

	return s.successResponse(req.ID, protocol.DocumentDiagnosticReport{
		Kind:     "full",
		ResultID: entry.resultID,
		Items:    diagnostics,
	})
}
