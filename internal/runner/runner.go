// Package runner executes shell-level commands for the scan engine. Every
// read of host state (lsof, ps, docker, kill) goes through this one seam so
// timeouts and environment handling are uniform and tests can fake it.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result carries everything an external command produced. Stdout and Stderr
// hold the output accumulated up to completion or the timeout, whichever
// came first.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs a command line with a hard deadline.
type Runner interface {
	Run(command string, timeout time.Duration) (Result, error)
}

// searchPath is forced into the child environment in place of the inherited
// PATH. GUI and launchd parents often carry a PATH that misses Homebrew or
// Docker Desktop installs, and the engine must find its tools anyway.
const searchPath = "/usr/local/bin:/opt/homebrew/bin:/usr/bin:/bin:/usr/sbin:/sbin"

// Shell runs commands through /bin/sh -c.
type Shell struct{}

var _ Runner = Shell{}

// Run executes the command and waits for it to exit or for the timeout to
// fire. A non-zero exit status is not an error: it is reported through
// Result.ExitCode so callers can pair it with stderr. The returned error is
// non-nil only when the command could not be started or the watchdog killed
// it at the deadline.
func (Shell) Run(command string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Env = append(environWithoutPath(), "PATH="+searchPath)
	// If a child keeps the pipes open after the kill, stop waiting on them.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: timed out after %s", firstToken(command), timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("start %s: %w", firstToken(command), err)
}

func environWithoutPath() []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func firstToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "command"
	}
	return fields[0]
}
