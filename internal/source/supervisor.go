package source

import (
	"strings"

	"github.com/mwhesse/OpenPorts/internal/process"
)

var knownSupervisors = map[string]string{
	"pm2":          "pm2",
	"pm2 god":      "pm2",
	"supervisord":  "supervisord",
	"supervisor":   "supervisord",
	"gunicorn":     "gunicorn",
	"uwsgi":        "uwsgi",
	"s6-supervise": "s6",
	"s6":           "s6",
	"s6-svscan":    "s6",
	"runsv":        "runit",
	"runit":        "runit",
	"runit-init":   "runit",
	"openrc":       "openrc",
	"openrc-init":  "openrc",
	"monit":        "monit",
	"circusd":      "circus",
	"circus":       "circus",
	"systemd":      "systemd",
	"daemontools":  "daemontools",
	"init":         "init",
	"tini":         "tini",
	"docker-init":  "docker-init",
	"podman-init":  "podman-init",
	"launchd":      "launchd",
	"god":          "god",
	"forever":      "forever",
}

func detectSupervisor(ancestry []process.AncestryEntry) (Origin, bool) {
	hasShell := false
	for _, p := range ancestry {
		if shells[p.Name] {
			hasShell = true
			break
		}
	}

	for _, p := range ancestry {
		name := strings.ToLower(p.Name)
		// pm2 renames its workers ("PM2 v5.3.0: God Daemon"), so match loosely.
		if strings.Contains(strings.ReplaceAll(name, " ", ""), "pm2") {
			return Origin{Kind: KindSupervisor, Name: "pm2"}, true
		}
		label, ok := knownSupervisors[name]
		if !ok {
			continue
		}
		// A shell in the chain means the user launched it; reaching init
		// above the shell says nothing about supervision.
		if label == "init" && hasShell {
			continue
		}
		return Origin{Kind: KindSupervisor, Name: label}, true
	}
	return Origin{}, false
}
