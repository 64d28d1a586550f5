// Package lsof turns the tabular output of the socket listing tool into
// port records. Parsing is tolerant: a malformed line is dropped, never an
// error, because lsof output routinely mixes valid rows with noise.
package lsof

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mwhesse/OpenPorts/pkg/model"
)

// ListCommand enumerates listening TCP sockets only, with numeric ports and
// addresses (-P -n) and untruncated command names (+c 0).
const ListCommand = "lsof -iTCP -sTCP:LISTEN -P -n +c 0"

// Expected column layout, after the header line:
//
//	COMMAND PID USER FD TYPE DEVICE SIZE/OFF NODE NAME (LISTEN)
//	[0]     [1] [2]     [4]                  [len-2]
//
// NAME is address:port ("*:3000", "127.0.0.1:8080", "[::1]:5432").
const minColumns = 9

// systemUsers are daemon accounts hidden unless system processes are shown.
// The underscore prefix rule catches most of them; this list pins the common
// ones that predate the convention.
var systemUsers = map[string]bool{
	"_postgres":      true,
	"_mysql":         true,
	"_www":           true,
	"_windowserver":  true,
	"_spotlight":     true,
	"_mdnsresponder": true,
}

// Parse converts raw listing output into deduplicated, port-sorted records.
// When showSystem is false, rows owned by root or daemon accounts are
// dropped here, before they ever reach a snapshot.
func Parse(raw string, showSystem bool) []model.PortRecord {
	var records []model.PortRecord
	seen := make(map[uint16]bool)

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < minColumns {
			continue
		}

		pid, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil || pid <= 0 {
			continue
		}

		user := fields[2]
		if !showSystem && isSystemUser(user) {
			continue
		}

		address, port, ok := splitAddressPort(fields[len(fields)-2])
		if !ok {
			continue
		}

		// A service bound on both families reports one row per family;
		// the first row for a port wins and the twin is dropped.
		if seen[port] {
			continue
		}
		seen[port] = true

		records = append(records, model.PortRecord{
			Port:        port,
			PID:         int32(pid),
			ProcessName: DecodeCommand(fields[0]),
			User:        user,
			Address:     address,
			Family:      model.SocketFamily(fields[4]),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Port < records[j].Port
	})
	return records
}

func isSystemUser(user string) bool {
	return user == "root" || strings.HasPrefix(user, "_") || systemUsers[user]
}

// splitAddressPort takes the NAME column apart at its last colon, which
// keeps bracketed IPv6 literals like "[::1]:5432" intact, and reads the
// maximal run of digits after it as the port.
func splitAddressPort(name string) (address string, port uint16, ok bool) {
	idx := strings.LastIndex(name, ":")
	if idx < 0 {
		return "", 0, false
	}

	digits := name[idx+1:]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", 0, false
	}

	n, err := strconv.ParseUint(digits[:end], 10, 16)
	if err != nil {
		return "", 0, false
	}
	return name[:idx], uint16(n), true
}

// DecodeCommand rewrites the \xHH escapes the listing tool uses for
// non-printable bytes in command names ("node\x20server" → "node server").
// Sequences that are not two hex digits are left untouched.
func DecodeCommand(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			hi, okHi := hexNibble(s[i+2])
			lo, okLo := hexNibble(s[i+3])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 4
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
