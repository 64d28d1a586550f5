package lsof

import (
	"strings"
	"testing"

	"github.com/mwhesse/OpenPorts/pkg/model"
)

const sampleListing = `COMMAND     PID      USER   FD   TYPE             DEVICE SIZE/OFF NODE NAME
node       4321      matt   23u  IPv4 0xab12cd34ef5601       0t0  TCP 127.0.0.1:3000 (LISTEN)
node       4321      matt   24u  IPv6 0xab12cd34ef5602       0t0  TCP [::1]:3000 (LISTEN)
postgres    512 _postgres    7u  IPv6 0x99887766554433       0t0  TCP [::1]:5432 (LISTEN)
rapportd    602      matt    8u  IPv4 0x11223344556677       0t0  TCP *:50928 (LISTEN)
sshd          9      root   10u  IPv6 0x66778899001122       0t0  TCP *:22 (LISTEN)
`

func TestParseDeduplicatesPortFamilies(t *testing.T) {
	t.Parallel()
	records := Parse(sampleListing, true)

	seen := make(map[uint16]int)
	for _, r := range records {
		seen[r.Port]++
	}
	for port, n := range seen {
		if n != 1 {
			t.Fatalf("port %d appears %d times, want 1", port, n)
		}
	}

	var node *model.PortRecord
	for i := range records {
		if records[i].Port == 3000 {
			node = &records[i]
		}
	}
	if node == nil {
		t.Fatal("port 3000 missing from parse result")
	}
	if node.Family != model.FamilyIPv4 {
		t.Fatalf("port 3000 family = %q, want first-seen IPv4", node.Family)
	}
}

func TestParseSortsAscendingByPort(t *testing.T) {
	t.Parallel()
	records := Parse(sampleListing, true)
	for i := 1; i < len(records); i++ {
		if records[i-1].Port >= records[i].Port {
			t.Fatalf("records out of order: %d before %d", records[i-1].Port, records[i].Port)
		}
	}
}

func TestParseSystemUserFilter(t *testing.T) {
	t.Parallel()
	visible := Parse(sampleListing, false)
	for _, r := range visible {
		if r.User == "root" || strings.HasPrefix(r.User, "_") {
			t.Fatalf("system-owned record leaked through filter: %+v", r)
		}
	}

	all := Parse(sampleListing, true)
	if len(all) <= len(visible) {
		t.Fatalf("showSystem=true returned %d records, want more than %d", len(all), len(visible))
	}
}

func TestParseSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	raw := `COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME
short line only
node notapid matt 23u IPv4 0x1 0t0 TCP 127.0.0.1:3000 (LISTEN)
node -4 matt 23u IPv4 0x1 0t0 TCP 127.0.0.1:3001 (LISTEN)
node 4321 matt 23u IPv4 0x1 0t0 TCP noport (LISTEN)
node 4321 matt 23u IPv4 0x1 0t0 TCP 127.0.0.1:notdigits (LISTEN)
node 4321 matt 23u IPv4 0x1 0t0 TCP 127.0.0.1:70000 (LISTEN)
good 4321 matt 23u IPv4 0x1 0t0 TCP 127.0.0.1:8080 (LISTEN)
`
	records := Parse(raw, true)
	if len(records) != 1 {
		t.Fatalf("Parse returned %d records, want only the well-formed one: %+v", len(records), records)
	}
	if records[0].Port != 8080 || records[0].ProcessName != "good" {
		t.Fatalf("surviving record = %+v, want port 8080 owned by %q", records[0], "good")
	}
}

func TestSplitAddressPort(t *testing.T) {
	t.Parallel()
	for name, tc := range map[string]struct {
		in      string
		address string
		port    uint16
		ok      bool
	}{
		"wildcard":      {in: "*:3000", address: "*", port: 3000, ok: true},
		"ipv4":          {in: "127.0.0.1:8080", address: "127.0.0.1", port: 8080, ok: true},
		"ipv6 loopback": {in: "[::1]:5432", address: "[::1]", port: 5432, ok: true},
		"ipv6 any":      {in: "[::]:443", address: "[::]", port: 443, ok: true},
		"no colon":      {in: "localhost", ok: false},
		"empty port":    {in: "127.0.0.1:", ok: false},
		"word port":     {in: "*:http", ok: false},
		"overflow":      {in: "*:70000", ok: false},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			address, port, ok := splitAddressPort(tc.in)
			if ok != tc.ok || address != tc.address || port != tc.port {
				t.Fatalf("splitAddressPort(%q) = (%q, %d, %t), want (%q, %d, %t)",
					tc.in, address, port, ok, tc.address, tc.port, tc.ok)
			}
		})
	}
}

func TestDecodeCommand(t *testing.T) {
	t.Parallel()
	for name, tc := range map[string]struct {
		in   string
		want string
	}{
		"space escape":    {in: `node\x20server`, want: "node server"},
		"plain name":      {in: "postgres", want: "postgres"},
		"letter byte":     {in: `\x41pp`, want: "App"},
		"two escapes":     {in: `a\x20b\x20c`, want: "a b c"},
		"bad hex":         {in: `node\xzz`, want: `node\xzz`},
		"truncated":       {in: `node\x2`, want: `node\x2`},
		"lone backslash":  {in: `node\`, want: `node\`},
		"tab escape":      {in: `tab\x09sep`, want: "tab\tsep"},
		"escaped escape":  {in: `\x5cx20`, want: `\x20`},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := DecodeCommand(tc.in); got != tc.want {
				t.Fatalf("DecodeCommand(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func FuzzDecodeCommand(f *testing.F) {
	f.Add("node")
	f.Add(`node\x20server`)
	f.Add(`\x5cx20`)
	f.Add(`\x`)
	f.Add(`\xff\xfe`)

	f.Fuzz(func(t *testing.T, in string) {
		out := DecodeCommand(in)
		if len(out) > len(in) {
			t.Fatalf("DecodeCommand(%q) grew input to %q", in, out)
		}
		if !strings.Contains(in, `\`) && out != in {
			t.Fatalf("DecodeCommand(%q) = %q, want identity without escapes", in, out)
		}
	})
}
