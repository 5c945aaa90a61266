package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mehmetkoksal-w/lingua/internal/lifecycle"
	"github.com/mehmetkoksal-w/lingua/internal/protocol"
	"github.com/mehmetkoksal-w/lingua/internal/provider"
)

// Test providers

type hoverProvider struct {
	lang  string
	exts  []string
	value string
	calls int
}

func (p *hoverProvider) Language() string      { return p.lang }
func (p *hoverProvider) Extensions() []string  { return p.exts }
func (p *hoverProvider) Hover(_ context.Context, _ provider.Document, _ protocol.Position) (*protocol.Hover, error) {
	p.calls++
	if p.value == "" {
		return nil, nil
	}
	return &protocol.Hover{Contents: protocol.MarkupContent{
		Kind:  protocol.MarkupKindPlainText,
		Value: p.value,
	}}, nil
}

type diagProvider struct {
	lang    string
	exts    []string
	items   []protocol.Diagnostic
	wsDiags map[string][]protocol.Diagnostic
	wsErr   error
}

func (p *diagProvider) Language() string     { return p.lang }
func (p *diagProvider) Extensions() []string { return p.exts }
func (p *diagProvider) Diagnostics(context.Context, provider.Document) ([]protocol.Diagnostic, error) {
	return p.items, nil
}
func (p *diagProvider) WorkspaceDiagnostics(context.Context) (map[string][]protocol.Diagnostic, error) {
	return p.wsDiags, p.wsErr
}

type syncProvider struct {
	lang    string
	exts    []string
	changes int
}

func (p *syncProvider) Language() string     { return p.lang }
func (p *syncProvider) Extensions() []string { return p.exts }
func (p *syncProvider) DidOpen(context.Context, protocol.TextDocumentItem) error { return nil }
func (p *syncProvider) DidChange(context.Context, string, int, string) error {
	p.changes++
	return nil
}
func (p *syncProvider) DidClose(context.Context, string) error { return nil }

func staticSource(name string, provs ...provider.CapabilityProvider) provider.Source {
	return provider.SourceFunc{
		SourceName: name,
		Load:       func() ([]provider.CapabilityProvider, error) { return provs, nil },
	}
}

// Helpers

func newTestServer(t *testing.T, out *bytes.Buffer, provs ...provider.CapabilityProvider) *Server {
	t.Helper()
	if out == nil {
		out = &bytes.Buffer{}
	}
	s := NewServerWithIO(strings.NewReader(""), out)
	s.SetDebounceDelay(time.Millisecond)
	if len(provs) > 0 {
		s.AddSource(staticSource("test", provs...))
	}
	return s
}

func initializeRequest(t *testing.T, pid *int) protocol.Request {
	t.Helper()
	params := protocol.InitializeParams{
		ProcessID: pid,
		RootURI:   "file:///ws",
	}
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return protocol.Request{JSONRPC: "2.0", ID: 1, Method: "initialize", Params: raw}
}

func mustInitialize(t *testing.T, s *Server) *protocol.InitializeResult {
	t.Helper()
	s.setState(StateAwaitingHandshake)
	resp := s.handleInitialize(initializeRequest(t, nil))
	if resp.Error != nil {
		t.Fatalf("initialize error: %+v", resp.Error)
	}
	result, ok := resp.Result.(*protocol.InitializeResult)
	if !ok {
		t.Fatalf("result type %T", resp.Result)
	}
	return result
}

func openDoc(t *testing.T, s *Server, uri, text string) {
	t.Helper()
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "", Version: 1, Text: text},
	}
	raw, _ := json.Marshal(params)
	s.handleDidOpen(protocol.Request{Method: "textDocument/didOpen", Params: raw})
}

// Framing

func TestReadMessage(t *testing.T) {
	content := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	input := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(content), content)

	s := NewServerWithIO(strings.NewReader(input), &bytes.Buffer{})
	msg, err := s.readMessage()
	if err != nil {
		t.Fatalf("readMessage failed: %v", err)
	}

	var req protocol.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if req.Method != "initialize" {
		t.Errorf("method = %q, want initialize", req.Method)
	}
}

func TestWriteMessageFraming(t *testing.T) {
	var out bytes.Buffer
	s := NewServerWithIO(strings.NewReader(""), &out)

	if err := s.writeMessage(s.successResponse(1, map[string]string{"test": "value"})); err != nil {
		t.Fatalf("writeMessage failed: %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "Content-Length:") {
		t.Error("expected Content-Length header")
	}
	if !strings.Contains(got, `"test":"value"`) {
		t.Error("expected result in output")
	}
}

// Handshake and composition

func TestRequestsBeforeInitializeAreRejected(t *testing.T) {
	s := newTestServer(t, nil)
	s.setState(StateAwaitingHandshake)

	raw, _ := json.Marshal(protocol.Request{JSONRPC: "2.0", ID: 7, Method: "textDocument/hover"})
	resp := s.handleMessage(raw)
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != protocol.ErrCodeServerNotInitialized {
		t.Errorf("code = %d, want %d", resp.Error.Code, protocol.ErrCodeServerNotInitialized)
	}
}

func TestInitializeAssemblesCapabilities(t *testing.T) {
	hp := &hoverProvider{lang: "alpha", exts: []string{".x", ".y"}, value: "hi"}
	dp := &diagProvider{lang: "beta", exts: []string{".z"}}
	s := newTestServer(t, nil, hp, dp)

	result := mustInitialize(t, s)

	if s.State() != StateHandlersRegistered {
		t.Fatalf("state = %v, want handlers-registered", s.State())
	}
	if result.ServerInfo.Name != "lingua" {
		t.Errorf("server name = %q", result.ServerInfo.Name)
	}
	if !result.Capabilities.HoverProvider {
		t.Error("hover capability missing")
	}
	if result.Capabilities.DiagnosticProvider == nil {
		t.Error("diagnostic capability missing")
	}
	if result.Capabilities.DefinitionProvider {
		t.Error("definition capability announced with no definition handlers")
	}
	if result.Capabilities.TextDocumentSync == nil || !result.Capabilities.TextDocumentSync.OpenClose {
		t.Error("document sync must always be announced")
	}
}

func TestInitializeTwiceIsRejected(t *testing.T) {
	s := newTestServer(t, nil)
	mustInitialize(t, s)

	resp := s.handleInitialize(initializeRequest(t, nil))
	if resp.Error == nil || resp.Error.Code != protocol.ErrCodeInvalidRequest {
		t.Fatalf("expected invalid-request error, got %+v", resp.Error)
	}
}

func TestZeroProvidersStillReachesRunning(t *testing.T) {
	var out bytes.Buffer
	s := newTestServer(t, &out)
	mustInitialize(t, s)

	s.handleInitialized(protocol.Request{Method: "initialized"})
	if s.State() != StateRunning {
		t.Fatalf("state = %v, want running", s.State())
	}
	if !strings.Contains(out.String(), "window/logMessage") {
		t.Error("expected readiness notification")
	}
}

// Selector-driven routing

func TestHoverRoutesBySelector(t *testing.T) {
	alpha := &hoverProvider{lang: "alpha", exts: []string{".x", ".y"}, value: "from alpha"}
	beta := &hoverProvider{lang: "beta", exts: []string{".z"}, value: "from beta"}
	s := newTestServer(t, nil, alpha, beta)
	mustInitialize(t, s)
	s.setState(StateRunning)

	openDoc(t, s, "file:///ws/sub/dir/file.x", "content")

	params := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///ws/sub/dir/file.x"},
	}
	raw, _ := json.Marshal(params)
	resp := s.handleHover(protocol.Request{ID: 2, Method: "textDocument/hover", Params: raw})

	hover, ok := resp.Result.(*protocol.Hover)
	if !ok || hover == nil {
		t.Fatalf("hover result = %#v", resp.Result)
	}
	if hover.Contents.Value != "from alpha" {
		t.Errorf("hover = %q, want from alpha", hover.Contents.Value)
	}
	if beta.calls != 0 {
		t.Errorf("beta handler called %d times for a .x file", beta.calls)
	}
}

func TestProviderWithoutExtensionsIsNeverRouted(t *testing.T) {
	bare := &hoverProvider{lang: "ghost", value: "boo"}
	s := newTestServer(t, nil, bare)
	result := mustInitialize(t, s)

	// Composition must succeed and announce hover, but the empty selector
	// matches no document.
	if !result.Capabilities.HoverProvider {
		t.Fatal("hover capability missing")
	}
	s.setState(StateRunning)
	openDoc(t, s, "file:///ws/anything.txt", "x")

	params := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///ws/anything.txt"},
	}
	raw, _ := json.Marshal(params)
	resp := s.handleHover(protocol.Request{ID: 3, Params: raw})
	if resp.Result != nil {
		t.Errorf("result = %#v, want nil", resp.Result)
	}
	if bare.calls != 0 {
		t.Errorf("extensionless provider was routed %d times", bare.calls)
	}
}

func TestStaleChangeSkipsHandlersAndDebounce(t *testing.T) {
	sp := &syncProvider{lang: "alpha", exts: []string{".x"}}
	s := newTestServer(t, nil, sp)
	mustInitialize(t, s)
	s.setState(StateRunning)

	uri := "file:///ws/a.x"
	open, _ := json.Marshal(protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Version: 5, Text: "five"},
	})
	s.handleDidOpen(protocol.Request{Method: "textDocument/didOpen", Params: open})

	change := func(version int, text string) {
		raw, _ := json.Marshal(protocol.DidChangeTextDocumentParams{
			TextDocument: protocol.VersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
				Version:                version,
			},
			ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: text}},
		})
		s.handleDidChange(protocol.Request{Method: "textDocument/didChange", Params: raw})
	}

	change(3, "three")
	if sp.changes != 0 {
		t.Errorf("sync handler notified %d times for a stale version", sp.changes)
	}
	s.debounceMu.Lock()
	pending := len(s.debounceTimers)
	s.debounceMu.Unlock()
	if pending != 0 {
		t.Error("stale change must not schedule a diagnostics publish")
	}

	change(6, "six")
	if sp.changes != 1 {
		t.Errorf("sync handler notified %d times for a fresh version, want 1", sp.changes)
	}
	doc, _ := s.docs.Get(uri)
	if doc.Content != "six" || doc.Version != 6 {
		t.Errorf("doc = %+v", doc)
	}
}

// Lifecycle monitor wiring

func TestSentinelPIDNeverProbes(t *testing.T) {
	s := newTestServer(t, nil)
	s.SetMonitorOptions(lifecycle.WithProbe(func(pid int) error {
		t.Errorf("probe called with pid %d", pid)
		return nil
	}))
	mustInitialize(t, s) // no processId in params
	if s.shutdown.Triggered() {
		t.Error("shutdown triggered with sentinel pid")
	}
}

func TestDeadHostPIDTriggersShutdown(t *testing.T) {
	s := newTestServer(t, nil)
	s.SetMonitorOptions(lifecycle.WithProbe(func(int) error {
		return errors.New("no such process")
	}))

	pid := 12345
	s.setState(StateAwaitingHandshake)
	resp := s.handleInitialize(initializeRequest(t, &pid))
	if resp.Error != nil {
		t.Fatalf("initialize error: %+v", resp.Error)
	}
	if !s.shutdown.Triggered() {
		t.Error("dead host pid must trigger shutdown during arming")
	}
}

// Startup diagnostics sweep

func TestStartupSweepPublishesAndSurvivesFailures(t *testing.T) {
	good := &diagProvider{
		lang: "alpha", exts: []string{".x"},
		wsDiags: map[string][]protocol.Diagnostic{
			"file:///ws/a.x": {{Message: "stored note"}},
		},
	}
	bad := &diagProvider{lang: "beta", exts: []string{".z"}, wsErr: errors.New("boom")}

	var out bytes.Buffer
	s := newTestServer(t, &out, bad, good)
	mustInitialize(t, s)
	s.setState(StateRunning)

	s.runStartupDiagnostics(s.registry)

	got := out.String()
	if !strings.Contains(got, "textDocument/publishDiagnostics") {
		t.Fatal("expected publishDiagnostics notification")
	}
	if !strings.Contains(got, "stored note") {
		t.Error("good handler's diagnostics were not published")
	}
}

// Pull diagnostics

func TestPullDiagnosticsResultIDCaching(t *testing.T) {
	dp := &diagProvider{
		lang: "alpha", exts: []string{".x"},
		items: []protocol.Diagnostic{{Message: "finding"}},
	}
	s := newTestServer(t, nil, dp)
	mustInitialize(t, s)
	s.setState(StateRunning)

	uri := "file:///ws/a.x"
	openDoc(t, s, uri, "one")

	pull := func(prev string) protocol.DocumentDiagnosticReport {
		params := protocol.DocumentDiagnosticParams{
			TextDocument:     protocol.TextDocumentIdentifier{URI: uri},
			PreviousResultID: prev,
		}
		raw, _ := json.Marshal(params)
		resp := s.handleDiagnostic(protocol.Request{ID: 9, Params: raw})
		report, ok := resp.Result.(protocol.DocumentDiagnosticReport)
		if !ok {
			t.Fatalf("result type %T", resp.Result)
		}
		return report
	}

	first := pull("")
	if first.Kind != "full" || first.ResultID == "" || len(first.Items) != 1 {
		t.Fatalf("first report = %+v", first)
	}

	second := pull(first.ResultID)
	if second.Kind != "unchanged" {
		t.Fatalf("second report kind = %q, want unchanged", second.Kind)
	}
	if second.ResultID != first.ResultID {
		t.Error("unchanged report must repeat the result id")
	}

	// New version invalidates the cached result.
	change := protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: "two"}},
	}
	raw, _ := json.Marshal(change)
	s.handleDidChange(protocol.Request{Params: raw})

	third := pull(first.ResultID)
	if third.Kind != "full" {
		t.Fatalf("third report kind = %q, want full", third.Kind)
	}
	if third.ResultID == first.ResultID {
		t.Error("new version must mint a new result id")
	}
}

func TestPullDiagnosticsUnopenedDocument(t *testing.T) {
	s := newTestServer(t, nil)
	mustInitialize(t, s)
	s.setState(StateRunning)

	params := protocol.DocumentDiagnosticParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///ws/never-opened.x"},
	}
	raw, _ := json.Marshal(params)
	resp := s.handleDiagnostic(protocol.Request{ID: 1, Params: raw})
	report := resp.Result.(protocol.DocumentDiagnosticReport)
	if report.Kind != "full" || len(report.Items) != 0 {
		t.Errorf("report = %+v, want empty full", report)
	}
}

// Full run loop

func clientScript(t *testing.T, msgs ...any) string {
	t.Helper()
	var sb strings.Builder
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(&sb, "Content-Length: %d\r\n\r\n%s", len(raw), raw)
	}
	return sb.String()
}

func TestRunFullSession(t *testing.T) {
	initParams, _ := json.Marshal(protocol.InitializeParams{RootURI: "file:///ws"})
	script := clientScript(t,
		protocol.Request{JSONRPC: "2.0", ID: 1, Method: "initialize", Params: initParams},
		protocol.Request{JSONRPC: "2.0", Method: "initialized"},
		protocol.Request{JSONRPC: "2.0", ID: 2, Method: "shutdown"},
		protocol.Request{JSONRPC: "2.0", Method: "exit"},
	)

	var out bytes.Buffer
	s := NewServerWithIO(strings.NewReader(script), &out)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("state = %v, want stopped", s.State())
	}
	if !s.shutdown.Triggered() {
		t.Error("exit must trigger the shutdown signal")
	}
	if !strings.Contains(out.String(), `"capabilities"`) {
		t.Error("expected initialize response on the wire")
	}
}

func TestRunReleasesCompositionOnClientClose(t *testing.T) {
	initParams, _ := json.Marshal(protocol.InitializeParams{RootURI: "file:///ws"})
	script := clientScript(t,
		protocol.Request{JSONRPC: "2.0", ID: 1, Method: "initialize", Params: initParams},
		protocol.Request{JSONRPC: "2.0", Method: "initialized"},
	)

	var out, logBuf bytes.Buffer
	s := NewServerWithIO(strings.NewReader(script), &out)
	s.SetLogger(log.New(&logBuf, "", 0))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if s.State() != StateStopped {
		t.Errorf("state = %v, want stopped", s.State())
	}
	if !strings.Contains(logBuf.String(), "shutting-down") {
		t.Error("stream close must pass through the shutting-down state")
	}
	if got := s.shutdown.Reason(); got != "client closed stream" {
		t.Errorf("shutdown reason = %q", got)
	}
	if s.registry != nil || s.env != nil || s.catalog != nil || s.selectors != nil {
		t.Error("composition state must be released after stopping")
	}
}

func TestRunStopsOnShutdownSignal(t *testing.T) {
	// A blocked read must not keep the server alive once the signal fires.
	s := NewServerWithIO(blockingReader{}, &bytes.Buffer{})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	s.shutdown.Trigger("host process exited")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after shutdown trigger")
	}
	if s.State() != StateStopped {
		t.Errorf("state = %v, want stopped", s.State())
	}
}

// blockingReader never returns, simulating an idle client connection.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestSetTraceUpdatesSession(t *testing.T) {
	s := newTestServer(t, nil)
	mustInitialize(t, s)
	s.setState(StateRunning)

	params, _ := json.Marshal(protocol.SetTraceParams{Value: "verbose"})
	s.handleSetTrace(protocol.Request{Method: "$/setTrace", Params: params})

	if got := s.env.Trace(); got != "verbose" {
		t.Errorf("trace = %q, want verbose", got)
	}
}
