package server

import (
	"encoding/json"
	"fmt"

	"github.com/mehmetkoksal-w/lingua/internal/lifecycle"
	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
	"github.com/mehmetkoksal-w/lingua/internal/registry"
	"github.com/mehmetkoksal-w/lingua/internal/selector"
	"github.com/mehmetkoksal-w/lingua/internal/session"
)

// handleInitialize runs the composition pass. The order is fixed: session
// environment, provider discovery, selector derivation, registry build,
// capability registration. A failure anywhere surfaces as an error response
// and leaves the server back at AwaitingHandshake with nothing retained, so
// the client may retry the handshake.
func (s *Server) handleInitialize(req protocol.Request) *protocol.Response {
	if s.State() != StateAwaitingHandshake {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidRequest, "initialize may only be sent once", nil)
	}

	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, protocol.ErrCodeInvalidParams, "Invalid params", err.Error())
	}

	s.setState(StateComposing)

	result, err := s.compose(params)
	if err != nil {
		s.logger.Printf("composition failed: %v", err)
		s.env = nil
		s.catalog = nil
		s.selectors = nil
		s.registry = nil
		s.setState(StateAwaitingHandshake)
		return s.errorResponse(req.ID, protocol.ErrCodeInternalError, "composition failed", err.Error())
	}

	s.monitor = lifecycle.NewMonitor(s.shutdown, s.logger, s.monOpts...)
	s.monitor.Arm(s.env.HostPID)

	s.setState(StateHandlersRegistered)
	return s.successResponse(req.ID, result)
}

func (s *Server) compose(params protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.env = session.New(params, s.extraArgs)
	s.logger.Printf("session %s: root=%s hostPid=%d trace=%s",
		s.env.ID, s.env.RootPath, s.env.HostPID, s.env.Trace())

	s.catalog = provider.NewCatalog(s.logger)
	providers, err := s.catalog.Discover(s.sources)
	if err != nil {
		return nil, fmt.Errorf("discover providers: %w", err)
	}

	s.selectors = selector.Build(providers)
	for lang, sel := range s.selectors {
		s.logger.Printf("selector %s: %v", lang, sel.Patterns)
	}

	s.registry = registry.Build(providers, s.selectors, s.logger)

	caps, err := s.registerCapabilities()
	if err != nil {
		return nil, fmt.Errorf("register capabilities: %w", err)
	}

	return &protocol.InitializeResult{
		Capabilities: *caps,
		ServerInfo: &protocol.ServerInfo{
			Name:    s.name,
			Version: s.version,
		},
	}, nil
}

// registerCapabilities walks the category allow-list in registration order
// and announces a capability for each category that has at least one
// collection. Document sync is always announced: the open-document store
// backs it even with zero providers. Categories outside the allow-list are
// never consulted here.
func (s *Server) registerCapabilities() (*protocol.ServerCapabilities, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("registry not built")
	}

	caps := &protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.TextDocumentSyncKindFull,
			Save:      &protocol.SaveOptions{IncludeText: false},
		},
	}

	for _, cat := range registry.Registered {
		if len(s.registry.ByCategory(cat)) == 0 {
			continue
		}
		switch cat {
		case registry.CategoryDocumentSync:
			// Already announced above.
		case registry.CategoryDefinition:
			caps.DefinitionProvider = true
		case registry.CategoryHover:
			caps.HoverProvider = true
		case registry.CategoryCompletion:
			caps.CompletionProvider = &protocol.CompletionOptions{}
		case registry.CategorySignatureHelp:
			caps.SignatureHelpProvider = &protocol.SignatureHelpOptions{}
		case registry.CategoryRename:
			caps.RenameProvider = true
		case registry.CategoryDocumentSymbol:
			caps.DocumentSymbolProvider = true
		case registry.CategoryDiagnostics:
			caps.DiagnosticProvider = &protocol.DiagnosticOptions{
				Identifier:            s.name,
				InterFileDependencies: false,
				WorkspaceDiagnostics:  false,
			}
		default:
			return nil, fmt.Errorf("category %q has no registration mapping", cat)
		}
		s.logger.Printf("registered category %s (%d collections)", cat, len(s.registry.ByCategory(cat)))
	}

	return caps, nil
}

// handleInitialized moves the server to Running, announces readiness, and
// kicks off the startup diagnostics sweep.
func (s *Server) handleInitialized(protocol.Request) *protocol.Response {
	if s.State() != StateHandlersRegistered {
		s.logger.Printf("initialized received in state %s; ignoring", s.State())
		return nil
	}

	s.setState(StateRunning)

	if err := s.notify("window/logMessage", protocol.LogMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: fmt.Sprintf("%s ready (session %s)", s.name, s.env.ID),
	}); err != nil {
		s.logger.Printf("readiness notification failed: %v", err)
	}

	// The sweep holds its own registry reference: stop() may release the
	// server's while the goroutine is still publishing.
	go s.runStartupDiagnostics(s.registry)
	return nil
}
