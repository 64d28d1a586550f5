//go:build linux || darwin

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/mwhesse/OpenPorts/internal/docker"
	"github.com/mwhesse/OpenPorts/internal/logger"
	"github.com/mwhesse/OpenPorts/internal/output"
	"github.com/mwhesse/OpenPorts/internal/process"
	"github.com/mwhesse/OpenPorts/internal/reconcile"
	"github.com/mwhesse/OpenPorts/internal/runner"
	"github.com/mwhesse/OpenPorts/internal/scan"
	"github.com/mwhesse/OpenPorts/internal/settings"
	"github.com/mwhesse/OpenPorts/internal/tui"
)

var version = "dev"
var commit = ""
var buildDate = ""

func printHelp() {
	fmt.Println("Usage: openports [--once] [--json] [--config path] [--debug path] [--help] [--version]")
	fmt.Println("  --once            Print one snapshot and exit (default when stdout is not a terminal)")
	fmt.Println("  --json            Print the snapshot as JSON and exit")
	fmt.Println("  --config <path>   Settings file (default: user config dir)")
	fmt.Println("  --debug <path>    Append debug logs to the given file")
	fmt.Println("  --help            Show this help message")
	fmt.Println("  --version         Show version and exit")
}

func main() {
	onceFlag := flag.Bool("once", false, "print one snapshot and exit")
	jsonFlag := flag.Bool("json", false, "print the snapshot as JSON and exit")
	configFlag := flag.String("config", "", "settings file path")
	debugFlag := flag.String("debug", "", "append debug logs to the given file")
	helpFlag := flag.Bool("help", false, "show help")
	versionFlag := flag.Bool("version", false, "show version and exit")

	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		// To embed these, build with:
		// go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X 'main.buildDate=$(date +%Y-%m-%d)'" ./cmd/openports
		if commit != "" {
			fmt.Printf("openports %s (commit %s, built %s)\n", version, commit, buildDate)
		} else {
			fmt.Printf("openports %s\n", version)
		}
		os.Exit(0)
	}

	if *debugFlag != "" {
		f, err := os.OpenFile(*debugFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = settings.DefaultPath()
	}
	store, err := settings.Open(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sh := runner.Shell{}
	scanner := scan.New(sh, store)
	defer scanner.Close()
	engine := docker.New(sh, store)
	defer engine.Close()

	if *onceFlag || *jsonFlag || !isatty.IsTerminal(os.Stdout.Fd()) {
		runOnce(store, scanner, engine, *jsonFlag)
		return
	}

	control := process.New(sh)
	if err := tui.Run(store, scanner, engine, control, sh); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runOnce scans synchronously and prints a single snapshot.
func runOnce(store *settings.Store, scanner *scan.Scanner, engine *docker.Engine, asJSON bool) {
	cfg := store.Get()

	scanner.Scan()
	if cfg.ShowDockerContainers {
		engine.Refresh()
	}

	snap := scanner.Snapshot()
	dsnap := engine.Snapshot()
	if snap.Err != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", snap.Err)
		os.Exit(1)
	}

	res := reconcile.Build(snap.Ports, dsnap.Containers, cfg, dsnap.Available, "", nil)

	if asJSON {
		rep := output.Report{Ports: res.Visible, Hidden: res.Hidden}
		if cfg.ShowDockerContainers && dsnap.Available {
			rep.Containers = dsnap.Containers
		}
		if err := output.JSON(os.Stdout, rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	output.PortTable(os.Stdout, res.Visible)
	if cfg.ShowDockerContainers && dsnap.Available && len(dsnap.Containers) > 0 {
		fmt.Println()
		output.ContainerTable(os.Stdout, dsnap.Containers)
	}
	if dsnap.Err != "" {
		fmt.Fprintf(os.Stderr, "docker: %s\n", dsnap.Err)
	}
}
