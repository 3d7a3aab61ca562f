package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_FileFlag(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse([]string{"--file", "run.yaml"}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, "run.yaml", config.RunConfigPath)
	require.Equal(t, "pipelines", config.PipelinesPath, "pipelines path should default")
	require.Equal(t, "json", config.LogFormat, "log format should default to json")
	require.Equal(t, "info", config.LogLevel, "log level should default to info")
}

func TestParse_ShorthandAndPositional(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	config, _, err := Parse([]string{"-f", "short.yaml"}, out)
	require.NoError(t, err)
	require.Equal(t, "short.yaml", config.RunConfigPath)

	config, _, err = Parse([]string{"positional.yaml"}, out)
	require.NoError(t, err)
	require.Equal(t, "positional.yaml", config.RunConfigPath)

	// The --file flag wins over a positional argument.
	config, _, err = Parse([]string{"--file", "flag.yaml", "positional.yaml"}, out)
	require.NoError(t, err)
	require.Equal(t, "flag.yaml", config.RunConfigPath)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	require.True(t, shouldExit, "missing path should request a clean exit")
	require.Nil(t, config)
	require.Contains(t, out.String(), "Usage:")
}

func TestParse_Overrides(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, _, err := Parse([]string{
		"--file", "run.yaml",
		"--pipelines", "/etc/pge/pipelines",
		"--log-format", "TEXT",
		"--log-level", "DEBUG",
	}, out)

	require.NoError(t, err)
	require.Equal(t, "/etc/pge/pipelines", config.PipelinesPath)
	require.Equal(t, "text", config.LogFormat, "log format should be lowercased")
	require.Equal(t, "debug", config.LogLevel, "log level should be lowercased")
}

func TestParse_InvalidLogFormat(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"--file", "run.yaml", "--log-format", "xml"}, out)

	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok, "expected an *ExitError")
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, exitErr.Message, "invalid log-format")
}

func TestParse_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	_, _, err := Parse([]string{"--file", "run.yaml", "--log-level", "verbose"}, out)

	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok, "expected an *ExitError")
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, exitErr.Message, "invalid log-level")
}

func TestParse_HelpFlag(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	require.True(t, shouldExit)
	require.Nil(t, config)
	require.Contains(t, out.String(), "Usage:")
}
