// Package sas builds and supervises the Science Algorithm Software child
// process. The invoker is deliberately dumb: it launches the program, streams
// its combined output into the run log, and reports the exit code as data.
// Classifying a non-zero exit is the runner's job, because some SAS exit
// codes are pipeline-defined warnings rather than hard failures. Only a
// failure to launch at all is an error here.
package sas

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
)

// Mode selects how the command line is executed. The mode is always declared
// explicitly by configuration, never inferred from the command string.
type Mode int

const (
	// ModeDirect executes the program with an argument vector. Safe default.
	ModeDirect Mode = iota
	// ModeShell hands the full command line to /bin/sh -c verbatim,
	// enabling shell operators. Reserved for test and debug configurations.
	ModeShell
)

// String implements fmt.Stringer for Mode.
func (m Mode) String() string {
	if m == ModeShell {
		return "shell"
	}
	return "direct"
}

// Request describes one child-process invocation. The same request shape
// serves both the primary SAS executable and the optional QA executable.
type Request struct {
	// Program is the executable path (or, in shell mode, the first word of
	// the command line).
	Program string
	// Options are the ordered program arguments.
	Options []string
	// Dir is the working directory for the child process.
	Dir string
	// Env lists extra KEY=value entries appended to the parent environment.
	Env []string
	// Mode selects direct or shell execution.
	Mode Mode
	// LogSink receives the child's combined stdout and stderr.
	LogSink io.Writer
	// LogPath is the persistent location of LogSink, recorded in the result
	// for post-run inspection.
	LogPath string
}

// Result captures the outcome of one completed invocation. Created once,
// never mutated.
type Result struct {
	ExitCode    int
	CommandLine string
	Duration    time.Duration
	LogPath     string
}

// Invoke runs the requested program and blocks until it terminates. A
// non-zero child exit code is reported in the Result, not as an error; a
// failure to launch the process (missing executable, permission denied) is
// returned as an error.
func Invoke(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	cmdLine := commandLine(req)
	var cmd *exec.Cmd
	switch req.Mode {
	case ModeShell:
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
	default:
		cmd = exec.CommandContext(ctx, req.Program, req.Options...)
	}
	cmd.Dir = req.Dir
	cmd.Stdout = req.LogSink
	cmd.Stderr = req.LogSink
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}

	logger.Info("▶️ Starting executable.", "command", cmdLine, "mode", req.Mode.String(), "dir", req.Dir)
	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		CommandLine: cmdLine,
		Duration:    duration,
		LogPath:     req.LogPath,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The child started and terminated on its own terms.
			result.ExitCode = exitErr.ExitCode()
			logger.Info("🏁 Executable finished.", "exit_code", result.ExitCode, "duration", duration)
			return result, nil
		}
		return nil, fmt.Errorf("failed to launch %q: %w", req.Program, err)
	}

	logger.Info("🏁 Executable finished.", "exit_code", 0, "duration", duration)
	return result, nil
}

// commandLine renders the full command line for logging and for shell mode.
func commandLine(req Request) string {
	if len(req.Options) == 0 {
		return req.Program
	}
	return req.Program + " " + strings.Join(req.Options, " ")
}
