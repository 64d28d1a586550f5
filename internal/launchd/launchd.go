// Package launchd maps PIDs to the launchd jobs that manage them, so the
// details view can answer "who keeps restarting this listener".
package launchd

import (
	"strconv"
	"strings"
)

// Service identifies the launchd job managing a process.
type Service struct {
	Label  string
	Domain string // system, user, or gui/<uid>
}

// Description renders the domain for humans.
func (s Service) Description() string {
	switch {
	case s.Domain == "system":
		return "Launch Daemon"
	case s.Domain == "user" || strings.HasPrefix(s.Domain, "gui/"):
		return "Launch Agent"
	default:
		return "launchd service"
	}
}

// parseBlame reads launchctl blame output. Real services print as
// "system/label" or "gui/501/label"; bare reasons like "speculative" or
// "ipc (mach)" mean the process is not a named job.
func parseBlame(out string) (Service, bool) {
	line := strings.TrimSpace(out)
	if line == "" || !strings.Contains(line, "/") {
		return Service{}, false
	}

	parts := strings.SplitN(line, "/", 2)
	svc := Service{Domain: parts[0], Label: parts[1]}
	if svc.Domain == "gui" {
		if sub := strings.SplitN(svc.Label, "/", 2); len(sub) == 2 {
			svc.Domain = "gui/" + sub[0]
			svc.Label = sub[1]
		}
	}
	return svc, true
}

// serviceFromList scans launchctl list rows (PID Status Label) for pid.
// Jobs without a live process show "-" in the PID column and never match.
func serviceFromList(out string, pid int32) (Service, bool) {
	pidText := strconv.Itoa(int(pid))
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != pidText {
			continue
		}
		svc := Service{Label: fields[2], Domain: "user"}
		if strings.HasPrefix(svc.Label, "com.apple.") {
			svc.Domain = "system"
		}
		return svc, true
	}
	return Service{}, false
}
