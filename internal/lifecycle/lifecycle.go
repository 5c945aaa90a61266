// Package lifecycle ties server shutdown to the lifetime of the editor host
// process and to local interrupts. Either source funnels into a single
// ShutdownSignal; the first trigger wins and later triggers are no-ops.
package lifecycle

import (
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// HostPIDNone is the sentinel meaning "no host process to watch".
const HostPIDNone = -1

// DefaultPollInterval is how often host process liveness is probed.
const DefaultPollInterval = 2 * time.Second

// ShutdownSignal is a one-shot cancellation shared by the lifecycle monitor
// and the server run loop. Once triggered it stays triggered; there is no
// reset. Safe for concurrent use without coordination between triggerers.
type ShutdownSignal struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	reason string
}

// NewShutdownSignal creates an untriggered signal.
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{done: make(chan struct{})}
}

// Trigger fires the signal. It reports whether this call was the one that
// fired it; subsequent calls are no-ops and return false.
func (s *ShutdownSignal) Trigger(reason string) bool {
	fired := false
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.done)
		fired = true
	})
	return fired
}

// Done returns a channel closed when the signal fires.
func (s *ShutdownSignal) Done() <-chan struct{} { return s.done }

// Triggered reports whether the signal has fired.
func (s *ShutdownSignal) Triggered() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Reason returns what triggered the signal, or "" if it has not fired.
func (s *ShutdownSignal) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Monitor watches the designated host process and converts its exit into a
// shutdown trigger. Liveness is checked by bounded-interval polling; there is
// no portable exit notification for a process we did not spawn.
type Monitor struct {
	signal   *ShutdownSignal
	logger   *log.Logger
	interval time.Duration
	probe    func(pid int) error
}

// MonitorOption configures the monitor.
type MonitorOption func(*Monitor)

// WithPollInterval sets the liveness polling interval.
func WithPollInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

// WithProbe replaces the process liveness probe (for testing).
func WithProbe(probe func(pid int) error) MonitorOption {
	return func(m *Monitor) { m.probe = probe }
}

// NewMonitor creates a monitor that triggers sig when the host process exits.
func NewMonitor(sig *ShutdownSignal, logger *log.Logger, opts ...MonitorOption) *Monitor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &Monitor{
		signal:   sig,
		logger:   logger,
		interval: DefaultPollInterval,
		probe:    probeProcess,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Arm starts watching the host process. With the sentinel pid no lookup is
// ever attempted and only a local trigger can fire the signal. A pid that
// does not resolve to a live process triggers shutdown immediately: a missing
// host is treated as a host that already exited, not as nothing to watch.
// Arm returns without blocking; polling runs on its own goroutine.
func (m *Monitor) Arm(hostPID int) {
	if hostPID == HostPIDNone {
		m.logger.Printf("no host process to watch; shutdown on local interrupt only")
		return
	}

	if err := m.probe(hostPID); err != nil {
		m.logger.Printf("host process %d not found (%v); shutting down", hostPID, err)
		m.signal.Trigger("host process gone")
		return
	}

	m.logger.Printf("watching host process %d", hostPID)
	go m.watch(hostPID)
}

func (m *Monitor) watch(hostPID int) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.signal.Done():
			return
		case <-ticker.C:
			if err := m.probe(hostPID); err != nil {
				m.logger.Printf("host process %d exited (%v); shutting down", hostPID, err)
				m.signal.Trigger("host process exited")
				return
			}
		}
	}
}

// probeProcess reports an error if pid is not a live process. Signal 0
// performs the permission and existence checks without delivering anything.
func probeProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.Signal(0))
}

// WatchInterrupt triggers sig on SIGINT/SIGTERM. It returns a stop function
// that releases the signal handler.
func WatchInterrupt(sig *ShutdownSignal, logger *log.Logger) func() {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-ch; ok {
			logger.Printf("received interrupt; shutting down")
			sig.Trigger("local interrupt")
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
