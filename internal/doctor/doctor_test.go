package doctor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/mops/internal/backend"
	"github.com/jvs-project/mops/internal/clock"
	"github.com/jvs-project/mops/internal/doctor"
	"github.com/jvs-project/mops/internal/keyspace"
	"github.com/jvs-project/mops/internal/repo"
	"github.com/jvs-project/mops/internal/workspace"
	"github.com/jvs-project/mops/pkg/logging"
	"github.com/jvs-project/mops/pkg/model"
)

func setupTestRepo(t *testing.T) string {
	dir := t.TempDir()
	_, err := repo.Init(dir, nil)
	require.NoError(t, err)
	return dir
}

func findCategory(result *doctor.Result, category string) *doctor.Finding {
	for i := range result.Findings {
		if result.Findings[i].Category == category {
			return &result.Findings[i]
		}
	}
	return nil
}

func TestDoctor_Check_Healthy(t *testing.T) {
	repoPath := setupTestRepo(t)

	result, err := doctor.NewDoctor(repoPath, nil).Check(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
}

func TestDoctor_Check_MissingFormatVersion(t *testing.T) {
	repoPath := setupTestRepo(t)
	require.NoError(t, os.Remove(filepath.Join(repoPath, ".mops", repo.FormatVersionFile)))

	result, err := doctor.NewDoctor(repoPath, nil).Check(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	f := findCategory(result, "format")
	require.NotNil(t, f)
	assert.Equal(t, "critical", f.Severity)
}

func TestDoctor_Check_FutureFormat(t *testing.T) {
	repoPath := setupTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".mops", repo.FormatVersionFile), []byte("99\n"), 0644))

	result, err := doctor.NewDoctor(repoPath, nil).Check(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	require.NotNil(t, findCategory(result, "format"))
	assert.Contains(t, findCategory(result, "format").Description, "99")
}

func TestDoctor_Check_BadConfig(t *testing.T) {
	repoPath := setupTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, ".mops", "config.yaml"), []byte("backend:\n  type: redis\n"), 0644))

	result, err := doctor.NewDoctor(repoPath, nil).Check(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	f := findCategory(result, "config")
	require.NotNil(t, f)
	assert.Equal(t, "error", f.Severity)
}

func TestDoctor_Check_MissingKVDir(t *testing.T) {
	repoPath := setupTestRepo(t)
	require.NoError(t, os.RemoveAll(filepath.Join(repoPath, ".mops", "kv")))

	result, err := doctor.NewDoctor(repoPath, nil).Check(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.NotNil(t, findCategory(result, "layout"))
}

func TestDoctor_Check_MissingStoreID(t *testing.T) {
	repoPath := setupTestRepo(t)
	require.NoError(t, os.Remove(filepath.Join(repoPath, ".mops", repo.StoreIDFile)))

	result, err := doctor.NewDoctor(repoPath, nil).Check(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Healthy, "a missing store_id is only a warning")
	f := findCategory(result, "store_id")
	require.NotNil(t, f)
	assert.Equal(t, "warning", f.Severity)
}

func TestDoctor_OrphanTmpAndRepair(t *testing.T) {
	repoPath := setupTestRepo(t)
	tmpPath := filepath.Join(repoPath, ".mops", "kv", ".mops-tmp-12345")
	require.NoError(t, os.WriteFile(tmpPath, []byte("partial"), 0644))

	d := doctor.NewDoctor(repoPath, nil)
	result, err := d.Check(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	f := findCategory(result, "tmp")
	require.NotNil(t, f)
	assert.Equal(t, tmpPath, f.Path)

	removed, err := d.Repair()
	require.NoError(t, err)
	assert.Equal(t, []string{tmpPath}, removed)
	assert.NoFileExists(t, tmpPath)

	result, err = d.Check(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}

func TestDoctor_Check_Strict(t *testing.T) {
	ctx := context.Background()
	repoPath := setupTestRepo(t)
	kv := backend.NewMemory(0)
	store := workspace.New(kv, workspace.Options{
		Clock:  clock.NewFake(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Logger: logging.Discard(),
	})
	t.Cleanup(func() { store.Close() })

	_, err := store.Save(ctx, &model.Workspace{ID: "acme"})
	require.NoError(t, err)

	d := doctor.NewDoctor(repoPath, store)
	result, err := d.Check(ctx, true)
	require.NoError(t, err)
	assert.True(t, result.Healthy)

	require.NoError(t, kv.Set(ctx, keyspace.Data("acme"), "{garbage"))
	result, err = d.Check(ctx, true)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	f := findCategory(result, "integrity")
	require.NotNil(t, f)
	assert.Equal(t, "critical", f.Severity)
	assert.Contains(t, f.Description, "acme")
}

func TestDoctor_Check_StrictNeedsStore(t *testing.T) {
	_, err := doctor.NewDoctor(setupTestRepo(t), nil).Check(context.Background(), true)
	assert.Error(t, err)
}
