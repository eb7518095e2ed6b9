package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/execabs"
)

// Runner executes an external program and returns its stdout.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs as child processes. Binaries resolved relative
// to the current directory are refused.
type ExecRunner struct {
	// Env is appended to the parent environment when non-empty.
	Env []string
}

var errProcessFailed = errors.New("process failed")

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	// os/exec refuses relative PATH matches since Go 1.19 as well; execabs
	// keeps that refusal independent of the GODEBUG=execerrdot setting.
	cmd := execabs.CommandContext(ctx, name, args...)

	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}

			return nil, fmt.Errorf("%w: %s exited with code %d: %s", errProcessFailed, name, exitErr.ExitCode(), msg)
		}

		return nil, fmt.Errorf("running %s: %w", name, runErr)
	}

	return stdout.Bytes(), nil
}
