package model

import "strconv"

// SocketFamily is the address family of a listening socket, as reported in
// the TYPE column of the listing tool.
type SocketFamily string

const (
	FamilyIPv4 SocketFamily = "IPv4"
	FamilyIPv6 SocketFamily = "IPv6"
)

// PortRecord is one listening TCP port attributed to its owning process.
// Records are immutable once built; a scan cycle replaces the whole set.
type PortRecord struct {
	Port        uint16       `json:"port"`
	PID         int32        `json:"pid"`
	ProcessName string       `json:"process"`
	User        string       `json:"user"`
	Address     string       `json:"address"`
	Family      SocketFamily `json:"family"`
}

// HiddenKey is the identity used to suppress a record from the default view.
// It is keyed on the process name as it was at hide time, so a later name
// refinement for the same port can change which key a record matches.
func (r PortRecord) HiddenKey() string {
	return HiddenKey(r.ProcessName, r.Port)
}

// HiddenKey builds the "processName:port" key for a hidden-port entry.
func HiddenKey(processName string, port uint16) string {
	return processName + ":" + strconv.Itoa(int(port))
}
