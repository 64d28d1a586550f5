package scan

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mwhesse/OpenPorts/internal/lsof"
	"github.com/mwhesse/OpenPorts/internal/runner"
	"github.com/mwhesse/OpenPorts/internal/settings"
)

const manualConfig = "refresh_interval_seconds: 0\n"

const listingFixture = `COMMAND     PID USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
node        401 matt   23u  IPv4 0x1a2b3c4d5e6f7081      0t0  TCP *:3000 (LISTEN)
postgres    902 matt    7u  IPv6 0x9f8e7d6c5b4a3921      0t0  TCP [::1]:5432 (LISTEN)
`

const psFixture = "  401 /usr/local/bin/node-server\n  902 postgres\n"

// scriptRunner records every command and answers via a swappable handler.
type scriptRunner struct {
	mu      sync.Mutex
	calls   []string
	handler func(command string) (runner.Result, error)
}

func (r *scriptRunner) Run(command string, _ time.Duration) (runner.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, command)
	h := r.handler
	r.mu.Unlock()
	return h(command)
}

func (r *scriptRunner) setHandler(h func(string) (runner.Result, error)) {
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
}

func (r *scriptRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func fixtureHandler(cmd string) (runner.Result, error) {
	if strings.HasPrefix(cmd, "lsof") {
		return runner.Result{Stdout: listingFixture}, nil
	}
	return runner.Result{Stdout: psFixture}, nil
}

func newTestStore(t *testing.T, content string) *settings.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := settings.Open(path)
	if err != nil {
		t.Fatalf("settings.Open() error = %v", err)
	}
	return st
}

func TestScanPublishesResolvedPorts(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(fixtureHandler)
	s := New(r, newTestStore(t, manualConfig))
	t.Cleanup(s.Close)

	if !s.Scan() {
		t.Fatal("Scan() = false, want true")
	}

	snap := s.Snapshot()
	if snap.Err != "" {
		t.Fatalf("Err = %q after a clean scan", snap.Err)
	}
	if len(snap.Ports) != 2 {
		t.Fatalf("got %d ports, want 2: %+v", len(snap.Ports), snap.Ports)
	}
	if snap.Ports[0].Port != 3000 || snap.Ports[1].Port != 5432 {
		t.Fatalf("ports not sorted ascending: %+v", snap.Ports)
	}
	if got := snap.Ports[0].ProcessName; got != "node-server" {
		t.Fatalf("ProcessName = %q, want resolved %q", got, "node-server")
	}

	cmds := r.commands()
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want listing + resolve: %v", len(cmds), cmds)
	}
	if cmds[0] != lsof.ListCommand {
		t.Fatalf("first command = %q, want %q", cmds[0], lsof.ListCommand)
	}
	if !strings.HasSuffix(cmds[1], "-p 401,902") {
		t.Fatalf("resolve command = %q, want a single batched -p list", cmds[1])
	}
}

func TestScanFailureKeepsPreviousPorts(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(fixtureHandler)
	s := New(r, newTestStore(t, manualConfig))
	t.Cleanup(s.Close)
	s.Scan()

	r.setHandler(func(string) (runner.Result, error) {
		return runner.Result{ExitCode: 1, Stderr: "lsof: cannot stat /dev\n"}, nil
	})
	s.Scan()

	snap := s.Snapshot()
	if len(snap.Ports) != 2 {
		t.Fatalf("failed scan dropped the previous ports: %+v", snap.Ports)
	}
	if snap.Err != "lsof: cannot stat /dev" {
		t.Fatalf("Err = %q, want the command stderr", snap.Err)
	}

	r.setHandler(fixtureHandler)
	s.Scan()
	if snap := s.Snapshot(); snap.Err != "" {
		t.Fatalf("Err = %q, want cleared after a good scan", snap.Err)
	}
}

func TestScanFailureMessages(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		res  runner.Result
		err  error
		want string
	}{
		"stderr passthrough": {
			res:  runner.Result{ExitCode: 1, Stderr: "lsof: WARNING: no socket access\n"},
			want: "lsof: WARNING: no socket access",
		},
		"generic fallback": {
			res:  runner.Result{ExitCode: 2},
			want: "port listing failed",
		},
		"spawn failure": {
			err:  errors.New("start lsof: executable file not found"),
			want: "start lsof: executable file not found",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := &scriptRunner{}
			r.setHandler(func(string) (runner.Result, error) { return tc.res, tc.err })
			s := New(r, newTestStore(t, manualConfig))
			t.Cleanup(s.Close)

			s.Scan()
			if got := s.Snapshot().Err; got != tc.want {
				t.Fatalf("Err = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestScanSingleFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	r := &scriptRunner{}
	r.setHandler(func(cmd string) (runner.Result, error) {
		if strings.HasPrefix(cmd, "lsof") {
			once.Do(func() { close(started) })
			<-release
			return runner.Result{Stdout: listingFixture}, nil
		}
		return runner.Result{Stdout: psFixture}, nil
	})
	s := New(r, newTestStore(t, manualConfig))
	t.Cleanup(s.Close)

	done := make(chan bool, 1)
	go func() { done <- s.Scan() }()
	<-started

	if s.Scan() {
		t.Fatal("second Scan() ran while the first was in flight")
	}
	close(release)
	if !<-done {
		t.Fatal("first Scan() = false, want true")
	}

	listings := 0
	for _, cmd := range r.commands() {
		if strings.HasPrefix(cmd, "lsof") {
			listings++
		}
	}
	if listings != 1 {
		t.Fatalf("got %d listing invocations, want exactly 1", listings)
	}

	if !s.Scan() {
		t.Fatal("Scan() still refused after the first completed")
	}
}

func TestAutoRefreshTicks(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(fixtureHandler)
	s := New(r, newTestStore(t, manualConfig))
	s.rearm(15 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for len(r.commands()) < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("timer produced only %d commands in 2s", len(r.commands()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Close()
	time.Sleep(40 * time.Millisecond)
	settled := len(r.commands())
	time.Sleep(60 * time.Millisecond)
	if got := len(r.commands()); got != settled {
		t.Fatalf("scans continued after Close: %d then %d", settled, got)
	}
}

func TestSettingsChangeRearmsTimer(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(fixtureHandler)
	st := newTestStore(t, manualConfig)
	s := New(r, st)
	t.Cleanup(s.Close)

	armed := func() bool {
		s.timerMu.Lock()
		defer s.timerMu.Unlock()
		return s.stopTick != nil
	}

	if armed() {
		t.Fatal("timer armed despite a manual-only interval")
	}
	if err := st.Update(func(c *settings.Settings) { c.RefreshIntervalSeconds = 30 }); err != nil {
		t.Fatal(err)
	}
	if !armed() {
		t.Fatal("timer not armed after the interval was set")
	}
	if err := st.Update(func(c *settings.Settings) { c.RefreshIntervalSeconds = 0 }); err != nil {
		t.Fatal(err)
	}
	if armed() {
		t.Fatal("timer still armed after switching back to manual")
	}

	s.Close()
	if err := st.Update(func(c *settings.Settings) { c.RefreshIntervalSeconds = 30 }); err != nil {
		t.Fatal(err)
	}
	if armed() {
		t.Fatal("settings change re-armed a closed scanner")
	}
}

func TestUpdatesCoalesce(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(fixtureHandler)
	s := New(r, newTestStore(t, manualConfig))
	t.Cleanup(s.Close)

	s.Scan()
	s.Scan()

	select {
	case <-s.Updates():
	default:
		t.Fatal("no update pending after two scans")
	}
	select {
	case <-s.Updates():
		t.Fatal("updates queued beyond a single pending signal")
	default:
	}
}
