package model

import "strings"

// PortMapping is one published host→container port binding. Insertion order
// from the listing is preserved; the first mapping is the one shown when a
// container row is collapsed.
type PortMapping struct {
	HostIP        string `json:"host_ip"`
	HostPort      uint16 `json:"host_port"`
	ContainerPort uint16 `json:"container_port"`
	Proto         string `json:"proto"`
}

// ContainerRecord is one running container with at least one published port.
// The set is replaced wholesale on every successful refresh.
type ContainerRecord struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Image  string        `json:"image"`
	Ports  []PortMapping `json:"ports"`
	Status string        `json:"status"`
}

// IsRunning reports whether the status line carries the running indicator
// ("Up 3 hours", "Up About a minute (healthy)", ...).
func (c ContainerRecord) IsRunning() bool {
	return strings.Contains(c.Status, "Up")
}

// PublishesPort reports whether any mapping publishes the given host port.
func (c ContainerRecord) PublishesPort(port uint16) bool {
	for _, m := range c.Ports {
		if m.HostPort == port {
			return true
		}
	}
	return false
}
