// Package session captures the per-connection environment established by the
// initialize handshake. It is assembled once, before anything else in the
// composition sequence, and read-only afterward.
package session

import (
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/mehmetkoksal-w/lingua/internal/lifecycle"
	"github.com/mehmetkoksal-w/lingua/internal/protocol"
)

// Environment is the resolved session context every later composition step
// reads from. TraceLevel is the only mutable field; $/setTrace updates it.
type Environment struct {
	// ID uniquely identifies this session in logs and stores.
	ID string
	// RootPath is the workspace root as a filesystem path. Empty when the
	// client opened no folder.
	RootPath string
	// HostPID is the client process id, or lifecycle.HostPIDNone when the
	// client declared none.
	HostPID int
	// ExtraArgs carries serve-command arguments through to providers.
	ExtraArgs []string

	mu    sync.RWMutex
	trace string
}

// New resolves an Environment from the initialize parameters. A null or
// absent processId becomes the sentinel: the lifecycle monitor must never
// look up a process in that case. The root path is taken from rootUri, then
// the first workspace folder, then the current directory.
func New(params protocol.InitializeParams, extraArgs []string) *Environment {
	env := &Environment{
		ID:        uuid.NewString(),
		HostPID:   lifecycle.HostPIDNone,
		ExtraArgs: extraArgs,
		trace:     params.Trace,
	}
	if params.ProcessID != nil {
		env.HostPID = *params.ProcessID
	}
	if env.trace == "" {
		env.trace = "off"
	}
	env.RootPath = resolveRoot(params)
	return env
}

func resolveRoot(params protocol.InitializeParams) string {
	if params.RootURI != "" {
		return protocol.URIToPath(params.RootURI)
	}
	for _, folder := range params.WorkspaceFolders {
		if folder.URI != "" {
			return protocol.URIToPath(folder.URI)
		}
	}
	if params.RootPath != "" {
		return params.RootPath
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return ""
}

// Trace returns the current trace level ("off", "messages", or "verbose").
func (e *Environment) Trace() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trace
}

// SetTrace updates the trace level.
func (e *Environment) SetTrace(level string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trace = level
}
