// Package testutil provides the shared harness for end-to-end PGE tests: it
// materializes a temporary workspace (descriptors, schemas, templates,
// runconfig, fake SAS scripts), runs the app against it and captures the log
// output for assertions.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pgerun/internal/app"
)

// WorkspaceToken is replaced with the temp workspace root in every file
// written by the harness, so fixtures can reference absolute paths.
const WorkspaceToken = "@WORKSPACE@"

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an end-to-end test run.
type HarnessResult struct {
	LogOutput string
	ExitCode  int
	Workspace string
	App       *app.App
}

// RunPGETest provides a standardized harness for running a PGE end to end.
// files maps workspace-relative paths to contents; descriptor manifests go
// under "pipelines/", and the run configuration must be at
// "runconfig.yaml". Files ending in .sh are written executable. Every file
// has WorkspaceToken expanded before writing.
func RunPGETest(t *testing.T, files map[string]string) *HarnessResult {
	t.Helper()
	return RunPGETestWithContext(context.Background(), t, files)
}

// RunPGETestWithContext is RunPGETest with a caller-provided context.
func RunPGETestWithContext(ctx context.Context, t *testing.T, files map[string]string) *HarnessResult {
	t.Helper()

	// 1. Create a temporary root directory for the test.
	tmpDir, err := os.MkdirTemp("", ".tmp-pge-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	// 2. Write all fixture files, expanding the workspace token. Relative
	//    paths naturally create the subdirectory structure within tmpDir.
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))

		mode := os.FileMode(0o644)
		if strings.HasSuffix(name, ".sh") {
			mode = 0o755
		}
		expanded := strings.ReplaceAll(content, WorkspaceToken, tmpDir)
		require.NoError(t, os.WriteFile(filePath, []byte(expanded), mode))
	}

	// 3. Build and run the app exactly as the CLI entrypoint would.
	logBuf := &SafeBuffer{}
	appConfig, err := app.NewConfig(app.Config{
		RunConfigPath: filepath.Join(tmpDir, "runconfig.yaml"),
		PipelinesPath: filepath.Join(tmpDir, "pipelines"),
		LogFormat:     "text",
		LogLevel:      "debug",
	})
	require.NoError(t, err)

	pgeApp := app.NewApp(logBuf, appConfig)
	exitCode := pgeApp.Run(ctx)

	return &HarnessResult{
		LogOutput: logBuf.String(),
		ExitCode:  exitCode,
		Workspace: tmpDir,
		App:       pgeApp,
	}
}
