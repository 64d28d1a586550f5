// Package process sends signals to processes and answers per-PID lookups
// for the details view. Signal outcomes are classified by reading the kill
// tool's stderr; the tool exposes no structured errors, so this is
// best-effort text matching with a fallback bucket.
package process

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mwhesse/OpenPorts/internal/runner"
)

const (
	signalTimeout = 5 * time.Second
	lookupTimeout = 5 * time.Second
)

// Control drives signal delivery and per-PID lookups through the runner.
type Control struct {
	runner runner.Runner
}

func New(r runner.Runner) *Control {
	return &Control{runner: r}
}

// failurePatterns map known kill stderr fragments to user-facing messages.
// First match wins.
var failurePatterns = []struct {
	substr  string
	message func(action string) string
}{
	{"no such process", func(string) string {
		return "process no longer exists"
	}},
	{"operation not permitted", func(action string) string {
		return "not permitted to " + action + " this process (owned by another user)"
	}},
}

// Terminate asks the process to exit gracefully.
func (c *Control) Terminate(pid int32) error {
	return c.signal(pid, "TERM", "terminate")
}

// Kill force-kills the process.
func (c *Control) Kill(pid int32) error {
	return c.signal(pid, "KILL", "kill")
}

func (c *Control) signal(pid int32, sig, action string) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	res, err := c.runner.Run(fmt.Sprintf("kill -%s %d", sig, pid), signalTimeout)
	if err != nil {
		return err
	}
	if res.ExitCode == 0 {
		return nil
	}
	return errors.New(classify(res.Stderr, action))
}

func classify(stderr, action string) string {
	lowered := strings.ToLower(stderr)
	for _, p := range failurePatterns {
		if strings.Contains(lowered, p.substr) {
			return p.message(action)
		}
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	return "could not " + action + " process"
}

// IsRunning probes with signal 0. Any non-zero exit reads as not running,
// which also swallows permission-denied probes against other users'
// processes.
func (c *Control) IsRunning(pid int32) bool {
	if pid <= 0 {
		return false
	}
	res, err := c.runner.Run(fmt.Sprintf("kill -0 %d", pid), signalTimeout)
	return err == nil && res.ExitCode == 0
}

// Name returns the canonical executable name, empty when the PID is gone.
func (c *Control) Name(pid int32) string {
	out := c.lookup(pid, "comm=")
	if out == "" {
		return ""
	}
	return filepath.Base(out)
}

// CommandLine returns the full argument list as one line.
func (c *Control) CommandLine(pid int32) string {
	return c.lookup(pid, "args=")
}

func (c *Control) lookup(pid int32, columns string) string {
	if pid <= 0 {
		return ""
	}
	res, err := c.runner.Run(fmt.Sprintf("ps -p %d -o %s", pid, columns), lookupTimeout)
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

// AncestryEntry is one hop in a process's parent chain.
type AncestryEntry struct {
	PID  int32
	Name string
}

const maxAncestryDepth = 10

// Ancestry walks parent PIDs upward from pid, nearest ancestor first,
// answering "what launched this". The walk stops at the root, on any lookup
// failure, or at a depth cap guarding against PID-reuse cycles.
func (c *Control) Ancestry(pid int32) []AncestryEntry {
	if pid <= 0 {
		return nil
	}

	var chain []AncestryEntry
	cur := pid
	for depth := 0; depth < maxAncestryDepth; depth++ {
		out := c.lookup(cur, "ppid=,comm=")
		if out == "" {
			return chain
		}
		i := strings.IndexAny(out, " \t")
		if i < 0 {
			return chain
		}
		ppid, err := strconv.ParseInt(out[:i], 10, 32)
		if err != nil {
			return chain
		}
		if depth > 0 {
			chain = append(chain, AncestryEntry{
				PID:  cur,
				Name: filepath.Base(strings.TrimSpace(out[i+1:])),
			})
		}
		if ppid <= 0 {
			return chain
		}
		cur = int32(ppid)
	}
	return chain
}
