package sas

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
)

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

// writeScript materializes an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake_sas.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestInvoke_SuccessCapturesOutput(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `echo "processing granule"; echo "warning: cloudy" 1>&2`)
	var sink bytes.Buffer

	result, err := Invoke(testContext(), Request{
		Program: script,
		LogSink: &sink,
		LogPath: "/logs/run.log",
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, "/logs/run.log", result.LogPath)
	require.Equal(t, script, result.CommandLine)
	require.Greater(t, result.Duration, time.Duration(0))

	// stdout and stderr share one combined sink.
	require.Contains(t, sink.String(), "processing granule")
	require.Contains(t, sink.String(), "warning: cloudy")
}

func TestInvoke_NonZeroExitIsDataNotError(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "exit 123")

	result, err := Invoke(testContext(), Request{Program: script, LogSink: &bytes.Buffer{}})
	require.NoError(t, err)
	require.Equal(t, 123, result.ExitCode)
}

func TestInvoke_LaunchFailureIsError(t *testing.T) {
	t.Parallel()

	_, err := Invoke(testContext(), Request{
		Program: filepath.Join(t.TempDir(), "no_such_binary"),
		LogSink: &bytes.Buffer{},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to launch")
}

func TestInvoke_OptionsArePassedInOrder(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `echo "$1|$2|$3"`)
	var sink bytes.Buffer

	result, err := Invoke(testContext(), Request{
		Program: script,
		Options: []string{"alpha", "beta", "gamma"},
		LogSink: &sink,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Contains(t, sink.String(), "alpha|beta|gamma")
	require.Equal(t, script+" alpha beta gamma", result.CommandLine)
}

func TestInvoke_ShellModeHonorsOperators(t *testing.T) {
	t.Parallel()

	var sink bytes.Buffer
	result, err := Invoke(testContext(), Request{
		Program: "echo",
		Options: []string{"first", "&&", "echo", "second"},
		Mode:    ModeShell,
		LogSink: &sink,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Contains(t, sink.String(), "first")
	require.Contains(t, sink.String(), "second")
}

func TestInvoke_DirectModeTreatsOperatorsAsLiterals(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `echo "argc=$#"`)
	var sink bytes.Buffer

	_, err := Invoke(testContext(), Request{
		Program: script,
		Options: []string{"first", "&&", "echo", "second"},
		Mode:    ModeDirect,
		LogSink: &sink,
	})
	require.NoError(t, err)
	require.Contains(t, sink.String(), "argc=4")
	require.NotContains(t, sink.String(), "second\nsecond")
}

func TestInvoke_WorkingDirectoryAndEnv(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	script := writeScript(t, `pwd; echo "granule=$GRANULE_ID"`)
	var sink bytes.Buffer

	_, err := Invoke(testContext(), Request{
		Program: script,
		Dir:     workDir,
		Env:     []string{"GRANULE_ID=T18MVA"},
		LogSink: &sink,
	})
	require.NoError(t, err)
	require.Contains(t, sink.String(), workDir)
	require.Contains(t, sink.String(), "granule=T18MVA")
}
