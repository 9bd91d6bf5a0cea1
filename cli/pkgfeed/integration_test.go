//go:build integration
// +build integration

package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestBinary(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	binaryPath := filepath.Join(tmpDir, "pkgfeed")
	if runtime.GOOS == "windows" {
		binaryPath += ".exe"
	}

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cli/pkgfeed")
	cmd.Dir = filepath.Clean(filepath.Join("..", ".."))

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build test binary: %s", string(output))

	return binaryPath
}

func writeTestArchive(t *testing.T, path, id, version string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	w, err := zw.Create(id + ".nuspec")
	require.NoError(t, err)
	_, err = w.Write([]byte(fmt.Sprintf(`<?xml version="1.0"?>
<package><metadata><id>%s</id><version>%s</version></metadata></package>`, id, version)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

type cliTest struct {
	name           string
	args           func(root string) []string
	expectedOutput string
	expectedError  string
}

func runCLITest(t *testing.T, binaryPath, root string, test cliTest) {
	t.Helper()

	t.Run(test.name, func(t *testing.T) {
		cmd := exec.Command(binaryPath, test.args(root)...)
		cmd.Env = append(os.Environ(), "NO_COLOR=true")

		var stdout, stderr strings.Builder
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		done := make(chan error, 1)
		go func() { done <- cmd.Run() }()

		select {
		case err := <-done:
			if test.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, stderr.String(), test.expectedError)
			} else {
				assert.NoError(t, err, "stderr: %s", stderr.String())
			}
			if test.expectedOutput != "" {
				assert.Contains(t, stdout.String(), test.expectedOutput)
			}
		case <-time.After(30 * time.Second):
			t.Fatal("test timed out after 30 seconds")
		}
	})
}

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	binaryPath := buildTestBinary(t)
	root := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "Foo.Bar.1.0.0.nupkg")
	writeTestArchive(t, archivePath, "Foo.Bar", "1.0.0")

	tests := []cliTest{
		{
			name:           "version command",
			args:           func(string) []string { return []string{"version"} },
			expectedOutput: "pkgfeed version",
		},
		{
			name:           "list empty feed",
			args:           func(root string) []string { return []string{"--root", root, "list"} },
			expectedOutput: "No packages in the feed",
		},
		{
			name: "push archive",
			args: func(root string) []string {
				return []string{"--root", root, "push", archivePath}
			},
			expectedOutput: "Pushed Foo.Bar 1.0.0",
		},
		{
			name:           "list after push",
			args:           func(root string) []string { return []string{"--root", root, "list"} },
			expectedOutput: "Foo.Bar",
		},
		{
			name:           "search matches pushed package",
			args:           func(root string) []string { return []string{"--root", root, "search", "Foo"} },
			expectedOutput: "Foo.Bar",
		},
		{
			name:           "cache info reports one package",
			args:           func(root string) []string { return []string{"--root", root, "cache", "info"} },
			expectedOutput: "Packages: 1",
		},
		{
			name:           "delete removes the package",
			args:           func(root string) []string { return []string{"--root", root, "delete", "Foo.Bar", "1.0.0"} },
			expectedOutput: "Removed Foo.Bar 1.0.0",
		},
		{
			name:           "list after delete is empty again",
			args:           func(root string) []string { return []string{"--root", root, "list"} },
			expectedOutput: "No packages in the feed",
		},
	}

	for _, test := range tests {
		runCLITest(t, binaryPath, root, test)
	}
}
