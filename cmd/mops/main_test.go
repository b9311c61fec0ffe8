package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getProjectRoot returns the absolute path to the project root.
func getProjectRoot(t *testing.T) string {
	dir, err := os.Getwd()
	require.NoError(t, err)
	// Walk up to find go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	t.Fatal("go.mod not found")
	return ""
}

// buildBinary compiles cmd/mops into a temp dir and returns its path.
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping build test in short mode")
	}
	binPath := filepath.Join(t.TempDir(), "mops")
	buildCmd := exec.Command("go", "build", "-o", binPath, ".")
	buildCmd.Dir = filepath.Join(getProjectRoot(t), "cmd", "mops")
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(output))
	return binPath
}

func TestMainHelpFlag(t *testing.T) {
	binPath := buildBinary(t)

	info, err := os.Stat(binPath)
	require.NoError(t, err)
	assert.True(t, info.Mode()&0111 != 0, "binary should be executable")

	out, err := exec.Command(binPath, "--help").CombinedOutput()
	require.NoError(t, err)
	assert.Contains(t, string(out), "mops")
	assert.Contains(t, string(out), "workspace document")
}

func TestMainUnknownCommand(t *testing.T) {
	binPath := buildBinary(t)

	out, err := exec.Command(binPath, "unknown-command-xyz").CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(string(out)), "unknown")
}

// TestMainEntryPoints tests that the main function is properly defined.
func TestMainEntryPoints(t *testing.T) {
	_ = main
}

func TestBinaryErrorHandling(t *testing.T) {
	binPath := buildBinary(t)

	cmd := exec.Command(binPath, "list")
	cmd.Dir = t.TempDir()
	out, err := cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(string(out)), "not a mops data directory")
}

func TestBinarySaveExportFlow(t *testing.T) {
	binPath := buildBinary(t)
	tmpDir := t.TempDir()

	cmd := exec.Command(binPath, "--no-color", "init", "store")
	cmd.Dir = tmpDir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "init failed: %s", string(out))
	assert.Contains(t, string(out), "Initialized")

	storePath := filepath.Join(tmpDir, "store")
	_, err = os.Stat(filepath.Join(storePath, ".mops"))
	require.NoError(t, err)

	cmd = exec.Command(binPath, "--no-color", "save", "acme")
	cmd.Dir = storePath
	cmd.Stdin = strings.NewReader(`{"clientName":"Acme"}`)
	out, err = cmd.CombinedOutput()
	require.NoError(t, err, "save failed: %s", string(out))
	assert.Contains(t, string(out), "Saved acme")

	cmd = exec.Command(binPath, "--json", "export", "acme", "--sink")
	cmd.Dir = storePath
	out, err = cmd.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "location")

	cmd = exec.Command(binPath, "--no-color", "verify")
	cmd.Dir = storePath
	out, err = cmd.CombinedOutput()
	require.NoError(t, err, "verify failed: %s", string(out))
	assert.Contains(t, string(out), "OK")
}
