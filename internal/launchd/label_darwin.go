//go:build darwin

package launchd

import (
	"fmt"
	"time"

	"github.com/mwhesse/OpenPorts/internal/runner"
)

const lookupTimeout = 5 * time.Second

// ServiceFor resolves the launchd job for a PID. launchctl blame answers
// directly for most jobs; when it reports only a blame reason, the job
// table is scanned instead.
func ServiceFor(r runner.Runner, pid int32) (Service, bool) {
	if pid <= 0 {
		return Service{}, false
	}

	res, err := r.Run(fmt.Sprintf("launchctl blame %d", pid), lookupTimeout)
	if err == nil && res.ExitCode == 0 {
		if svc, ok := parseBlame(res.Stdout); ok {
			return svc, true
		}
	}

	res, err = r.Run("launchctl list", lookupTimeout)
	if err != nil || res.ExitCode != 0 {
		return Service{}, false
	}
	return serviceFromList(res.Stdout, pid)
}
