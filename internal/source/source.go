// Package source classifies how a listening process came to run by
// scanning its parent chain for shells and supervisors.
package source

import "github.com/mwhesse/OpenPorts/internal/process"

type Kind string

const (
	KindShell      Kind = "shell"
	KindSupervisor Kind = "supervisor"
)

// Origin names the thing that launched the process: the supervisor
// managing it, or the shell it was typed into.
type Origin struct {
	Kind Kind
	Name string
}

// Detect picks the most specific origin from the parent chain. A supervisor
// anywhere in the chain wins over a shell; among shells the one closest to
// the process wins.
func Detect(ancestry []process.AncestryEntry) (Origin, bool) {
	if sup, ok := detectSupervisor(ancestry); ok {
		return sup, true
	}
	if sh, ok := detectShell(ancestry); ok {
		return sh, true
	}
	return Origin{}, false
}
