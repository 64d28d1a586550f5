//go:build !darwin

package launchd

import "github.com/mwhesse/OpenPorts/internal/runner"

// ServiceFor is darwin-only; other platforms have no launchd.
func ServiceFor(runner.Runner, int32) (Service, bool) {
	return Service{}, false
}
