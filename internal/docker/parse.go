// Package docker discovers running containers through the docker CLI and
// drives their lifecycle. It deliberately shells out instead of speaking the
// engine API: the CLI is present wherever docker is usable from a terminal
// and needs no socket permissions beyond what the user already has.
package docker

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mwhesse/OpenPorts/pkg/model"
)

// ProbeCommand checks that the daemon answers; a quick no if it does not.
const ProbeCommand = `docker info --format '{{.ServerVersion}}'`

// ListCommand prints one container per line, five pipe-delimited fields.
// The pipe never occurs in ids, names, images, port lists, or status text.
const ListCommand = `docker ps --format '{{.ID}}|{{.Names}}|{{.Image}}|{{.Ports}}|{{.Status}}'`

// ParseContainers converts ListCommand output into container records.
// Short lines are skipped. Containers with no published ports are dropped;
// only port-publishing containers matter here. Output is sorted by name,
// ties keeping their original order.
func ParseContainers(raw string) []model.ContainerRecord {
	var containers []model.ContainerRecord
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 5 {
			continue
		}

		ports := ParsePortMappings(fields[3])
		if len(ports) == 0 {
			continue
		}

		containers = append(containers, model.ContainerRecord{
			ID:     strings.TrimSpace(fields[0]),
			Name:   strings.TrimSpace(fields[1]),
			Image:  strings.TrimSpace(fields[2]),
			Ports:  ports,
			Status: strings.TrimSpace(fields[4]),
		})
	}

	sort.SliceStable(containers, func(i, j int) bool {
		return containers[i].Name < containers[j].Name
	})
	return containers
}

// ParsePortMappings parses docker's Ports column: comma-separated entries
// like "0.0.0.0:3000->3000/tcp". Entries without the arrow are exposed but
// unpublished ports and yield no mapping.
func ParsePortMappings(s string) []model.PortMapping {
	var mappings []model.PortMapping
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		arrow := strings.Index(entry, "->")
		if arrow < 0 {
			continue
		}

		host := entry[:arrow]
		var hostIP string
		if colon := strings.LastIndex(host, ":"); colon >= 0 {
			hostIP = host[:colon]
			host = host[colon+1:]
		}
		hostPort, err := strconv.ParseUint(host, 10, 16)
		if err != nil {
			continue
		}

		rest := entry[arrow+2:]
		proto := ""
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			proto = rest[slash+1:]
			rest = rest[:slash]
		}
		containerPort, err := strconv.ParseUint(rest, 10, 16)
		if err != nil {
			continue
		}

		mappings = append(mappings, model.PortMapping{
			HostIP:        hostIP,
			HostPort:      uint16(hostPort),
			ContainerPort: uint16(containerPort),
			Proto:         proto,
		})
	}
	return mappings
}
