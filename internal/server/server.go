// Package server implements the stdio language server: Content-Length framed
// JSON-RPC over stdin/stdout, a composition pass driven by the initialize
// handshake, and request routing through the handler registry.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mehmetkoksal-w/lingua/internal/document"
	"github.com/mehmetkoksal-w/lingua/internal/lifecycle"
	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
	"github.com/mehmetkoksal-w/lingua/internal/registry"
	"github.com/mehmetkoksal-w/lingua/internal/selector"
	"github.com/mehmetkoksal-w/lingua/internal/session"
)

// State tracks the server through its lifecycle. Transitions are linear;
// the server never moves backward except for a failed composition pass,
// which returns to AwaitingHandshake with nothing retained.
type State int

const (
	StateUnstarted State = iota
	StateAwaitingHandshake
	StateComposing
	StateHandlersRegistered
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateAwaitingHandshake:
		return "awaiting-handshake"
	case StateComposing:
		return "composing"
	case StateHandlersRegistered:
		return "handlers-registered"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultDebounceDelay is the default delay for debouncing diagnostics.
const DefaultDebounceDelay = 300 * time.Millisecond

type diagnosticsEntry struct {
	resultID string
	version  int
	items    []protocol.Diagnostic
}

// Server is the language server.
type Server struct {
	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex // protects writes

	logger *log.Logger

	// Lifecycle
	state    State
	stateMu  sync.RWMutex
	shutdown *lifecycle.ShutdownSignal
	monitor  *lifecycle.Monitor
	monOpts  []lifecycle.MonitorOption
	exited   bool

	// Composition inputs and outputs
	sources   []provider.Source
	extraArgs []string
	env       *session.Environment
	catalog   *provider.Catalog
	selectors map[string]selector.DocumentSelector
	registry  *registry.Registry

	// Documents
	docs *document.Store

	// Diagnostics debouncing and caching
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
	debounceDelay  time.Duration
	diagCache      map[string]diagnosticsEntry
	cacheMu        sync.RWMutex

	name    string
	version string
}

// NewServer creates a server speaking over stdin/stdout.
func NewServer() *Server {
	return NewServerWithIO(os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server with custom I/O (for testing).
func NewServerWithIO(reader io.Reader, writer io.Writer) *Server {
	return &Server{
		reader:         bufio.NewReader(reader),
		writer:         writer,
		logger:         log.New(io.Discard, "", 0),
		state:          StateUnstarted,
		shutdown:       lifecycle.NewShutdownSignal(),
		docs:           document.NewStore(),
		debounceTimers: make(map[string]*time.Timer),
		debounceDelay:  DefaultDebounceDelay,
		diagCache:      make(map[string]diagnosticsEntry),
		name:           "lingua",
		version:        "0.1.0",
	}
}

// SetLogger directs server logs to w. The wire owns stdout; never pass it.
func (s *Server) SetLogger(logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s.logger = logger
}

// AddSource registers a provider source consumed by the composition pass.
func (s *Server) AddSource(src provider.Source) {
	s.sources = append(s.sources, src)
}

// SetExtraArgs carries serve-command arguments into the session environment.
func (s *Server) SetExtraArgs(args []string) {
	s.extraArgs = args
}

// SetDebounceDelay sets the debounce delay for publish-on-change diagnostics.
func (s *Server) SetDebounceDelay(delay time.Duration) {
	s.debounceDelay = delay
}

// SetMonitorOptions configures the lifecycle monitor built during
// composition (polling interval; tests inject a liveness probe).
func (s *Server) SetMonitorOptions(opts ...lifecycle.MonitorOption) {
	s.monOpts = opts
}

// SetServerInfo overrides the name/version announced in the handshake.
func (s *Server) SetServerInfo(name, version string) {
	s.name = name
	s.version = version
}

// ShutdownSignal exposes the signal so callers can wire local interrupts.
func (s *Server) ShutdownSignal() *lifecycle.ShutdownSignal {
	return s.shutdown
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Server) setState(next State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = next
	s.stateMu.Unlock()
	s.logger.Printf("state %s -> %s", prev, next)
}

// Run starts the server main loop and blocks until shutdown. Messages are
// read on a separate goroutine so a host-process exit or local interrupt can
// end the loop even while a read is pending.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("server starting")
	s.setState(StateAwaitingHandshake)

	msgs := make(chan []byte)
	readErrs := make(chan error, 1)
	go func() {
		for {
			msg, err := s.readMessage()
			if err != nil {
				readErrs <- err
				return
			}
			select {
			case msgs <- msg:
			case <-s.shutdown.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.stop()
			return ctx.Err()

		case <-s.shutdown.Done():
			s.logger.Printf("shutdown signal: %s", s.shutdown.Reason())
			s.stop()
			return nil

		case err := <-readErrs:
			if err == io.EOF {
				s.logger.Println("client closed the stream")
				s.shutdown.Trigger("client closed stream")
				s.stop()
				return nil
			}
			s.stop()
			return fmt.Errorf("read message: %w", err)

		case msg := <-msgs:
			resp := s.handleMessage(msg)
			if resp != nil {
				if err := s.writeMessage(resp); err != nil {
					s.logger.Printf("write error: %v", err)
					s.stop()
					return err
				}
			}
			if s.exited {
				s.shutdown.Trigger("exit notification")
				s.stop()
				return nil
			}
		}
	}
}

// stop walks the ShuttingDown -> Stopped sequence and releases everything
// the composition pass built. Nothing composed survives a stop; a fresh
// handshake rebuilds it all.
func (s *Server) stop() {
	if s.State() != StateShuttingDown {
		s.setState(StateShuttingDown)
	}
	s.env = nil
	s.catalog = nil
	s.selectors = nil
	s.registry = nil
	s.setState(StateStopped)
}

// readMessage reads one Content-Length framed message.
func (s *Server) readMessage() ([]byte, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			// Empty line marks end of headers
			break
		}

		if strings.HasPrefix(line, "Content-Length:") {
			value := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
		// Other headers (Content-Type) are ignored
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	content := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, content); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return content, nil
}

// writeMessage frames and writes one message.
func (s *Server) writeMessage(msg any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	content, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(content))
	if _, err := s.writer.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := s.writer.Write(content); err != nil {
		return err
	}
	return nil
}

// notify sends a JSON-RPC notification to the client.
func (s *Server) notify(method string, params any) error {
	return s.writeMessage(protocol.Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// handleMessage processes one incoming message and returns a response, or
// nil for notifications.
func (s *Server) handleMessage(msg []byte) *protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return s.errorResponse(nil, protocol.ErrCodeParseError, "Parse error", err.Error())
	}

	s.logger.Printf("handling method: %s", req.Method)

	// Until handlers are registered, only the handshake and exit get through.
	if s.State() < StateHandlersRegistered &&
		req.Method != "initialize" && req.Method != "initialized" && req.Method != "exit" {
		return s.errorResponse(req.ID, protocol.ErrCodeServerNotInitialized, "Server not initialized", nil)
	}

	switch req.Method {
	// Lifecycle
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return s.handleInitialized(req)
	case "shutdown":
		return s.handleShutdown(req)
	case "exit":
		return s.handleExit(req)

	// Document sync
	case "textDocument/didOpen":
		return s.handleDidOpen(req)
	case "textDocument/didChange":
		return s.handleDidChange(req)
	case "textDocument/didClose":
		return s.handleDidClose(req)
	case "textDocument/didSave":
		return s.handleDidSave(req)

	// Features
	case "textDocument/definition":
		return s.handleDefinition(req)
	case "textDocument/hover":
		return s.handleHover(req)
	case "textDocument/completion":
		return s.handleCompletion(req)
	case "textDocument/signatureHelp":
		return s.handleSignatureHelp(req)
	case "textDocument/rename":
		return s.handleRename(req)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(req)
	case "textDocument/diagnostic":
		return s.handleDiagnostic(req)

	// Notifications
	case "$/setTrace":
		return s.handleSetTrace(req)
	case "$/cancelRequest":
		return nil

	default:
		s.logger.Printf("unknown method: %s", req.Method)
		if req.ID == nil {
			return nil
		}
		return s.errorResponse(req.ID, protocol.ErrCodeMethodNotFound, "Method not found", req.Method)
	}
}

func (s *Server) handleShutdown(req protocol.Request) *protocol.Response {
	s.logger.Println("shutdown requested")
	s.setState(StateShuttingDown)
	return s.successResponse(req.ID, nil)
}

func (s *Server) handleExit(protocol.Request) *protocol.Response {
	s.logger.Println("exit requested")
	s.exited = true
	return nil
}

func (s *Server) handleSetTrace(req protocol.Request) *protocol.Response {
	var params protocol.SetTraceParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.logger.Printf("bad $/setTrace params: %v", err)
		return nil
	}
	if s.env != nil {
		s.env.SetTrace(params.Value)
		s.logger.Printf("trace level set to %s", params.Value)
	}
	return nil
}

// Helper functions

func (s *Server) successResponse(id any, result any) *protocol.Response {
	return &protocol.Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

func (s *Server) errorResponse(id any, code int, message string, data any) *protocol.Response {
	return &protocol.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &protocol.RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
