// Package scan owns the port discovery cycle: run the listing command,
// parse it, resolve process names, publish the result. A Scanner allows at
// most one cycle in flight and re-runs itself on a settings-driven timer.
package scan

import (
	"strings"
	"sync"
	"time"

	"github.com/mwhesse/OpenPorts/internal/logger"
	"github.com/mwhesse/OpenPorts/internal/lsof"
	"github.com/mwhesse/OpenPorts/internal/runner"
	"github.com/mwhesse/OpenPorts/internal/settings"
	"github.com/mwhesse/OpenPorts/pkg/model"
)

const listTimeout = 10 * time.Second

// Snapshot is a point-in-time copy of the scanner's published state.
type Snapshot struct {
	Ports    []model.PortRecord
	Err      string
	Scanning bool
}

// Scanner coordinates port scans. All published state lives behind mu;
// external commands run with the lock released.
type Scanner struct {
	runner runner.Runner
	store  *settings.Store

	mu       sync.Mutex
	scanning bool
	ports    []model.PortRecord
	lastErr  string

	updates chan struct{}

	timerMu  sync.Mutex
	stopTick chan struct{}
	closed   bool
}

// New builds a Scanner, arms the auto-refresh timer from the current
// settings, and re-arms it whenever the interval changes.
func New(r runner.Runner, st *settings.Store) *Scanner {
	s := &Scanner{
		runner:  r,
		store:   st,
		updates: make(chan struct{}, 1),
	}
	s.rearm(st.Get().RefreshInterval())
	st.Subscribe(func(cfg settings.Settings) {
		s.rearm(cfg.RefreshInterval())
	})
	return s
}

// Scan runs one full cycle and reports whether it actually ran. A call
// arriving while another scan is in flight is dropped, not queued; the
// next timer tick or keypress retries naturally.
func (s *Scanner) Scan() bool {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return false
	}
	s.scanning = true
	s.lastErr = ""
	s.mu.Unlock()

	cfg := s.store.Get()
	res, err := s.runner.Run(lsof.ListCommand, listTimeout)
	if err != nil || res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if err != nil {
			msg = err.Error()
		}
		if msg == "" {
			msg = "port listing failed"
		}
		logger.Errorf("port scan: %s", msg)
		s.mu.Lock()
		s.lastErr = msg
		s.scanning = false
		s.mu.Unlock()
		s.notify()
		return true
	}

	ports := lsof.Parse(res.Stdout, cfg.ShowSystemProcesses)
	ports = ResolveNames(s.runner, ports)

	s.mu.Lock()
	s.ports = ports
	s.scanning = false
	s.mu.Unlock()
	s.notify()
	return true
}

// Snapshot returns copies; callers never observe later scans through it.
func (s *Scanner) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Ports:    append([]model.PortRecord(nil), s.ports...),
		Err:      s.lastErr,
		Scanning: s.scanning,
	}
}

// Updates signals after every completed scan, successful or not. The
// channel holds at most one pending signal; an un-drained signal absorbs
// later ones.
func (s *Scanner) Updates() <-chan struct{} {
	return s.updates
}

func (s *Scanner) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Close disarms the auto-refresh timer. Manual Scan calls still work.
func (s *Scanner) Close() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.closed = true
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

// rearm replaces the timer goroutine. A non-positive interval leaves the
// scanner in manual mode.
func (s *Scanner) rearm(interval time.Duration) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
	if interval <= 0 || s.closed {
		return
	}
	stop := make(chan struct{})
	s.stopTick = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Scan()
			case <-stop:
				return
			}
		}
	}()
}
