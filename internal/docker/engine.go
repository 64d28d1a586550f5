package docker

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mwhesse/OpenPorts/internal/logger"
	"github.com/mwhesse/OpenPorts/internal/runner"
	"github.com/mwhesse/OpenPorts/internal/settings"
	"github.com/mwhesse/OpenPorts/pkg/model"
)

const (
	probeTimeout = 5 * time.Second
	listTimeout  = 10 * time.Second

	stopTimeout = 30 * time.Second
	// Kill stays short: it is the escape hatch when a stop hangs.
	killTimeout    = 10 * time.Second
	restartTimeout = 30 * time.Second
)

// Snapshot is a point-in-time copy of the engine's published state.
type Snapshot struct {
	Containers []model.ContainerRecord
	Available  bool
	Refreshing bool
	Err        string
}

// Engine coordinates container discovery and lifecycle operations. Like the
// port scanner it holds state behind a mutex and runs commands unlocked,
// with a boolean guard dropping refreshes that arrive mid-refresh.
type Engine struct {
	runner runner.Runner
	store  *settings.Store

	mu         sync.Mutex
	containers []model.ContainerRecord
	available  bool
	refreshing bool
	lastErr    string

	updates chan struct{}

	timerMu  sync.Mutex
	stopTick chan struct{}
	closed   bool
}

// New builds an Engine and arms its refresh timer from the current
// settings. The timer idles while container display is switched off.
func New(r runner.Runner, st *settings.Store) *Engine {
	e := &Engine{
		runner:  r,
		store:   st,
		updates: make(chan struct{}, 1),
	}
	e.rearm(st.Get().RefreshInterval())
	st.Subscribe(func(cfg settings.Settings) {
		e.rearm(cfg.RefreshInterval())
	})
	return e
}

// CheckAvailability probes the daemon and records the outcome.
func (e *Engine) CheckAvailability() bool {
	res, err := e.runner.Run(ProbeCommand, probeTimeout)
	ok := err == nil && res.ExitCode == 0

	e.mu.Lock()
	e.available = ok
	e.mu.Unlock()
	return ok
}

// Refresh re-discovers containers and reports whether it ran. With the
// daemon unavailable the container list empties: an absent engine means
// "nothing to show", unlike a failed poll, which keeps the stale list.
func (e *Engine) Refresh() bool {
	e.mu.Lock()
	if e.refreshing {
		e.mu.Unlock()
		return false
	}
	e.refreshing = true
	e.mu.Unlock()

	if !e.CheckAvailability() {
		e.mu.Lock()
		e.containers = nil
		e.lastErr = ""
		e.refreshing = false
		e.mu.Unlock()
		e.notify()
		return true
	}

	res, err := e.runner.Run(ListCommand, listTimeout)
	if err != nil || res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if err != nil {
			msg = err.Error()
		}
		if msg == "" {
			msg = "container listing failed"
		}
		logger.Errorf("container refresh: %s", msg)
		e.mu.Lock()
		e.lastErr = msg
		e.refreshing = false
		e.mu.Unlock()
		e.notify()
		return true
	}

	containers := ParseContainers(res.Stdout)

	e.mu.Lock()
	e.containers = containers
	e.lastErr = ""
	e.refreshing = false
	e.mu.Unlock()
	e.notify()
	return true
}

// Stop sends a graceful stop and refreshes on success.
func (e *Engine) Stop(ref string) error {
	return e.lifecycle("stop", ref, stopTimeout)
}

// Kill force-kills a container that did not stop.
func (e *Engine) Kill(ref string) error {
	return e.lifecycle("kill", ref, killTimeout)
}

// Restart stops and re-runs the container.
func (e *Engine) Restart(ref string) error {
	return e.lifecycle("restart", ref, restartTimeout)
}

func (e *Engine) lifecycle(verb, ref string, timeout time.Duration) error {
	if !validRef(ref) {
		return fmt.Errorf("invalid container reference %q", ref)
	}

	res, err := e.runner.Run("docker "+verb+" "+ref, timeout)
	if err != nil || res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if err != nil {
			msg = err.Error()
		}
		if msg == "" {
			msg = "docker " + verb + " failed"
		}
		e.mu.Lock()
		e.lastErr = msg
		e.mu.Unlock()
		e.notify()
		return fmt.Errorf("docker %s %s: %s", verb, ref, msg)
	}

	logger.Infof("docker %s %s succeeded", verb, ref)
	e.Refresh()
	return nil
}

// Snapshot returns copies of the published state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Containers: append([]model.ContainerRecord(nil), e.containers...),
		Available:  e.available,
		Refreshing: e.refreshing,
		Err:        e.lastErr,
	}
}

// Updates signals after every completed refresh; one pending signal at most.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// Close disarms the refresh timer.
func (e *Engine) Close() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	e.closed = true
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Engine) rearm(interval time.Duration) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
	if interval <= 0 || e.closed {
		return
	}
	stop := make(chan struct{})
	e.stopTick = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if e.store.Get().ShowDockerContainers {
					e.Refresh()
				}
			case <-stop:
				return
			}
		}
	}()
}

// validRef accepts container ids and names: hex ids plus the letters,
// digits, and separators docker allows in names.
func validRef(ref string) bool {
	if ref == "" {
		return false
	}
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}
