package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mwhesse/OpenPorts/pkg/model"
)

// PortTable writes an aligned listing of port records.
func PortTable(w io.Writer, ports []model.PortRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tPROCESS\tPID\tUSER\tADDRESS\tFAMILY")
	for _, p := range ports {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			p.Port, Clean(p.ProcessName), p.PID, Clean(p.User), Clean(p.Address), p.Family)
	}
	tw.Flush()
}

// ContainerTable writes an aligned listing of containers.
func ContainerTable(w io.Writer, containers []model.ContainerRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIMAGE\tPORTS\tSTATUS\tID")
	for _, c := range containers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			Clean(c.Name), Clean(c.Image), FormatMappings(c.Ports), Clean(c.Status), shortID(c.ID))
	}
	tw.Flush()
}

// FormatMappings renders mappings the way docker prints them, host side
// first, in their original order.
func FormatMappings(mappings []model.PortMapping) string {
	parts := make([]string, 0, len(mappings))
	for _, m := range mappings {
		s := fmt.Sprintf("%d->%d/%s", m.HostPort, m.ContainerPort, m.Proto)
		if m.HostIP != "" {
			s = m.HostIP + ":" + s
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
