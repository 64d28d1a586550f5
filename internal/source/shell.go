package source

import "github.com/mwhesse/OpenPorts/internal/process"

var shells = map[string]bool{
	"bash": true,
	"zsh":  true,
	"sh":   true,
	"fish": true,
	"csh":  true,
	"tcsh": true,
	"ksh":  true,
	"dash": true,
}

// detectShell finds the shell closest to the process. The chain runs
// parent-first, so the first hit is the direct shell rather than an
// ancestor shell further up.
func detectShell(ancestry []process.AncestryEntry) (Origin, bool) {
	for _, p := range ancestry {
		if shells[p.Name] {
			return Origin{Kind: KindShell, Name: p.Name}, true
		}
	}
	return Origin{}, false
}
