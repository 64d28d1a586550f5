package docker

import (
	"reflect"
	"testing"

	"github.com/mwhesse/OpenPorts/pkg/model"
)

const listingFixture = `abc123def456|webapp|node:20-alpine|0.0.0.0:3000->3000/tcp, :::3000->3000/tcp|Up 2 hours
9876fedcba01|cache|redis:7|6379/tcp|Up 5 minutes (healthy)
short|line
5554443332221|db|postgres:16|127.0.0.1:5432->5432/tcp|Exited (0) 3 hours ago
`

func TestParseContainers(t *testing.T) {
	t.Parallel()

	got := ParseContainers(listingFixture)
	if len(got) != 2 {
		t.Fatalf("got %d containers, want 2: %+v", len(got), got)
	}

	if got[0].Name != "db" || got[1].Name != "webapp" {
		t.Fatalf("containers not sorted by name: %q, %q", got[0].Name, got[1].Name)
	}

	web := got[1]
	if web.ID != "abc123def456" || web.Image != "node:20-alpine" {
		t.Fatalf("webapp fields = %+v", web)
	}
	if len(web.Ports) != 2 {
		t.Fatalf("webapp mappings = %+v, want both address families", web.Ports)
	}
	if web.Ports[0].HostIP != "0.0.0.0" || web.Ports[1].HostIP != "::" {
		t.Fatalf("mapping order not preserved: %+v", web.Ports)
	}
	if !web.IsRunning() {
		t.Fatal("webapp with status 'Up 2 hours' reported as not running")
	}
	if got[0].IsRunning() {
		t.Fatal("exited db container reported as running")
	}
}

func TestParseContainersExcludesUnpublished(t *testing.T) {
	t.Parallel()

	got := ParseContainers("9876fedcba01|cache|redis:7|6379/tcp|Up 5 minutes\n")
	if len(got) != 0 {
		t.Fatalf("container with only exposed ports made it through: %+v", got)
	}
}

func TestParsePortMappings(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want []model.PortMapping
	}{
		"published": {
			in:   "0.0.0.0:3000->3000/tcp",
			want: []model.PortMapping{{HostIP: "0.0.0.0", HostPort: 3000, ContainerPort: 3000, Proto: "tcp"}},
		},
		"exposed only": {
			in:   "3000/tcp",
			want: nil,
		},
		"ipv6 wildcard": {
			in:   ":::8080->80/tcp",
			want: []model.PortMapping{{HostIP: "::", HostPort: 8080, ContainerPort: 80, Proto: "tcp"}},
		},
		"no host ip": {
			in:   "8443->443/tcp",
			want: []model.PortMapping{{HostPort: 8443, ContainerPort: 443, Proto: "tcp"}},
		},
		"loopback udp": {
			in:   "127.0.0.1:514->514/udp",
			want: []model.PortMapping{{HostIP: "127.0.0.1", HostPort: 514, ContainerPort: 514, Proto: "udp"}},
		},
		"mixed published and exposed": {
			in:   "80/tcp, 0.0.0.0:443->443/tcp",
			want: []model.PortMapping{{HostIP: "0.0.0.0", HostPort: 443, ContainerPort: 443, Proto: "tcp"}},
		},
		"multiple ordered": {
			in: "0.0.0.0:3000->3000/tcp, 0.0.0.0:9229->9229/tcp",
			want: []model.PortMapping{
				{HostIP: "0.0.0.0", HostPort: 3000, ContainerPort: 3000, Proto: "tcp"},
				{HostIP: "0.0.0.0", HostPort: 9229, ContainerPort: 9229, Proto: "tcp"},
			},
		},
		"empty":             {in: "", want: nil},
		"host port garbage": {in: "0.0.0.0:abc->80/tcp", want: nil},
		"host port too big": {in: "0.0.0.0:70000->80/tcp", want: nil},
		"container garbage": {in: "0.0.0.0:80->x/tcp", want: nil},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := ParsePortMappings(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParsePortMappings(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}
