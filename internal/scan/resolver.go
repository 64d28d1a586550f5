package scan

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mwhesse/OpenPorts/internal/runner"
	"github.com/mwhesse/OpenPorts/pkg/model"
)

const resolveTimeout = 5 * time.Second

// ResolveNames replaces each record's provisional process name with the
// canonical executable name from a single batch ps lookup. One invocation
// covers every distinct PID; records missing from the output keep the name
// the listing reported. ps exits non-zero when any requested PID is gone,
// so the output is parsed regardless of exit code.
func ResolveNames(r runner.Runner, records []model.PortRecord) []model.PortRecord {
	if len(records) == 0 {
		return records
	}

	seen := make(map[int32]bool, len(records))
	pids := make([]string, 0, len(records))
	for _, rec := range records {
		if seen[rec.PID] {
			continue
		}
		seen[rec.PID] = true
		pids = append(pids, strconv.Itoa(int(rec.PID)))
	}

	res, err := r.Run("ps -o pid=,comm= -p "+strings.Join(pids, ","), resolveTimeout)
	if err != nil {
		return records
	}

	names := make(map[int32]string, len(pids))
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		i := strings.IndexAny(line, " \t")
		if i < 0 {
			continue
		}
		pid, err := strconv.ParseInt(line[:i], 10, 32)
		if err != nil {
			continue
		}
		name := strings.TrimSpace(line[i+1:])
		if name == "" {
			continue
		}
		names[int32(pid)] = filepath.Base(name)
	}

	out := make([]model.PortRecord, len(records))
	copy(out, records)
	for i := range out {
		if name, ok := names[out[i].PID]; ok {
			out[i].ProcessName = name
		}
	}
	return out
}
