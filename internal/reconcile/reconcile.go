// Package reconcile merges port and container snapshots with user
// preferences into the lists the UI presents. Build is pure; coordinators
// stay the only owners of mutable state.
package reconcile

import (
	"strconv"
	"strings"

	"github.com/mwhesse/OpenPorts/internal/settings"
	"github.com/mwhesse/OpenPorts/pkg/model"
)

// Result is the final presentation split.
type Result struct {
	Visible []model.PortRecord
	Hidden  []model.PortRecord
}

// Build narrows ports in three ordered steps: remove container-published
// ports, partition by hidden key, then apply the free-text filter to each
// partition. The order is load-bearing: filtering before the container
// removal would let a container twin survive into the plain port list.
func Build(ports []model.PortRecord, containers []model.ContainerRecord, cfg settings.Settings, dockerAvailable bool, filter string, cmdlines map[int32]string) Result {
	remaining := ports
	if cfg.ShowDockerContainers && dockerAvailable && len(containers) > 0 {
		published := make(map[uint16]bool)
		for _, c := range containers {
			for _, m := range c.Ports {
				published[m.HostPort] = true
			}
		}
		kept := make([]model.PortRecord, 0, len(ports))
		for _, p := range ports {
			if !published[p.Port] {
				kept = append(kept, p)
			}
		}
		remaining = kept
	}

	var visible, hidden []model.PortRecord
	for _, p := range remaining {
		if cfg.IsHidden(p.HiddenKey()) {
			hidden = append(hidden, p)
		} else {
			visible = append(visible, p)
		}
	}

	return Result{
		Visible: filterRecords(visible, filter, cmdlines),
		Hidden:  filterRecords(hidden, filter, cmdlines),
	}
}

func filterRecords(records []model.PortRecord, filter string, cmdlines map[int32]string) []model.PortRecord {
	if filter == "" {
		return records
	}
	needle := strings.ToLower(filter)
	var out []model.PortRecord
	for _, r := range records {
		if recordMatches(r, needle, cmdlines) {
			out = append(out, r)
		}
	}
	return out
}

// recordMatches checks the three filter surfaces: process name, decimal
// port text, and the cached full command line when one exists.
func recordMatches(r model.PortRecord, needle string, cmdlines map[int32]string) bool {
	if strings.Contains(strings.ToLower(r.ProcessName), needle) {
		return true
	}
	if strings.Contains(strconv.Itoa(int(r.Port)), needle) {
		return true
	}
	if line, ok := cmdlines[r.PID]; ok && strings.Contains(strings.ToLower(line), needle) {
		return true
	}
	return false
}

// FilterContainers applies the same free-text filter to container rows,
// matching name, image, and any published host port.
func FilterContainers(containers []model.ContainerRecord, filter string) []model.ContainerRecord {
	if filter == "" {
		return containers
	}
	needle := strings.ToLower(filter)
	var out []model.ContainerRecord
	for _, c := range containers {
		if containerMatches(c, needle) {
			out = append(out, c)
		}
	}
	return out
}

func containerMatches(c model.ContainerRecord, needle string) bool {
	if strings.Contains(strings.ToLower(c.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Image), needle) {
		return true
	}
	for _, m := range c.Ports {
		if strings.Contains(strconv.Itoa(int(m.HostPort)), needle) {
			return true
		}
	}
	return false
}
