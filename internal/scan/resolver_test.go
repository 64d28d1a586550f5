package scan

import (
	"errors"
	"testing"

	"github.com/mwhesse/OpenPorts/internal/runner"
	"github.com/mwhesse/OpenPorts/pkg/model"
)

func TestResolveNamesBatchesOneCall(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(func(string) (runner.Result, error) {
		return runner.Result{Stdout: "  10 nginx\n  20 redis-server\n"}, nil
	})

	records := []model.PortRecord{
		{Port: 80, PID: 10, ProcessName: "ngin"},
		{Port: 443, PID: 10, ProcessName: "ngin"},
		{Port: 6379, PID: 20, ProcessName: "redis"},
	}
	ResolveNames(r, records)

	cmds := r.commands()
	if len(cmds) != 1 {
		t.Fatalf("got %d invocations, want 1: %v", len(cmds), cmds)
	}
	if want := "ps -o pid=,comm= -p 10,20"; cmds[0] != want {
		t.Fatalf("command = %q, want %q", cmds[0], want)
	}
}

func TestResolveNamesOverwritesAndFallsBack(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(func(string) (runner.Result, error) {
		out := "  10 /Applications/Google Chrome.app/Contents/MacOS/Google Chrome\n" +
			"garbage\n" +
			"30\n" +
			"nan /usr/bin/thing\n"
		return runner.Result{Stdout: out, ExitCode: 1}, nil
	})

	records := []model.PortRecord{
		{Port: 9222, PID: 10, ProcessName: "Google"},
		{Port: 8080, PID: 20, ProcessName: "pytho"},
	}
	got := ResolveNames(r, records)

	if got[0].ProcessName != "Google Chrome" {
		t.Fatalf("ProcessName = %q, want basename %q", got[0].ProcessName, "Google Chrome")
	}
	if got[1].ProcessName != "pytho" {
		t.Fatalf("unresolved record lost its original name: %q", got[1].ProcessName)
	}
	if records[0].ProcessName != "Google" {
		t.Fatalf("input slice mutated: %q", records[0].ProcessName)
	}
}

func TestResolveNamesEmptyInput(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(func(string) (runner.Result, error) {
		return runner.Result{}, nil
	})

	if got := ResolveNames(r, nil); len(got) != 0 {
		t.Fatalf("ResolveNames(nil) = %+v, want empty", got)
	}
	if cmds := r.commands(); len(cmds) != 0 {
		t.Fatalf("empty input still invoked %v", cmds)
	}
}

func TestResolveNamesSpawnFailureKeepsNames(t *testing.T) {
	t.Parallel()

	r := &scriptRunner{}
	r.setHandler(func(string) (runner.Result, error) {
		return runner.Result{}, errors.New("start ps: no such file")
	})

	records := []model.PortRecord{{Port: 3000, PID: 42, ProcessName: "node"}}
	got := ResolveNames(r, records)
	if got[0].ProcessName != "node" {
		t.Fatalf("ProcessName = %q, want original preserved", got[0].ProcessName)
	}
}
