package diff_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/mops/internal/backend"
	"github.com/jvs-project/mops/internal/clock"
	"github.com/jvs-project/mops/internal/diff"
	"github.com/jvs-project/mops/internal/workspace"
	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/logging"
	"github.com/jvs-project/mops/pkg/model"
)

func TestCompare_NoChanges(t *testing.T) {
	doc := &model.Workspace{ID: "acme", KPIs: map[string]model.KPI{"sales": {Value: 1, Goal: 2}}}

	result, err := diff.Compare(doc, doc)
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Contains(t, result.FormatHuman(), "No changes.")
}

func TestCompare_AddedRemovedModified(t *testing.T) {
	from := &model.Workspace{
		ID:         "acme",
		ClientName: "Acme",
		KPIs:       map[string]model.KPI{"sales": {Value: 1, Goal: 10}},
		Vault:      model.Vault{Brand: model.Section{"tone": "calm"}},
	}
	to := &model.Workspace{
		ID:         "acme",
		ClientName: "Acme",
		KPIs:       map[string]model.KPI{"sales": {Value: 777, Goal: 10}},
		Dashboards: model.Dashboards{D1: []model.Row{{"week": 1}}},
	}

	result, err := diff.Compare(from, to)
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalAdded)
	assert.Equal(t, "dashboards.d1[0].week", result.Added[0].Path)
	assert.Equal(t, "1", result.Added[0].New)

	require.Equal(t, 1, result.TotalRemoved)
	assert.Equal(t, "vault.brand.tone", result.Removed[0].Path)
	assert.Equal(t, `"calm"`, result.Removed[0].Old)

	require.Equal(t, 1, result.TotalModified)
	c := result.Modified[0]
	assert.Equal(t, "kpis.sales.value", c.Path)
	assert.Equal(t, diff.ChangeModified, c.Type)
	assert.Equal(t, "1", c.Old)
	assert.Equal(t, "777", c.New)

	human := result.FormatHuman()
	assert.Contains(t, human, "+ dashboards.d1[0].week = 1")
	assert.Contains(t, human, "- vault.brand.tone")
	assert.Contains(t, human, "~ kpis.sales.value (1 -> 777)")
}

func TestCompare_FromNil(t *testing.T) {
	to := &model.Workspace{ID: "acme", ClientName: "Acme"}

	result, err := diff.Compare(nil, to)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRemoved)
	assert.Equal(t, 0, result.TotalModified)

	var paths []string
	for _, c := range result.Added {
		paths = append(paths, c.Path)
	}
	assert.Contains(t, paths, "clientName")
	assert.Contains(t, paths, "id")
	assert.NotContains(t, paths, "kpis", "empty containers produce no entries")
}

func TestCompare_Extensions(t *testing.T) {
	from := &model.Workspace{ID: "acme"}
	var to model.Workspace
	require.NoError(t, json.Unmarshal([]byte(`{"id":"acme","theme":{"dark":true}}`), &to))

	result, err := diff.Compare(from, &to)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalAdded)
	assert.Equal(t, "theme.dark", result.Added[0].Path)
}

func setupStore(t *testing.T) *workspace.Store {
	store := workspace.New(backend.NewMemory(0), workspace.Options{
		Clock:  clock.NewFake(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Logger: logging.Discard(),
	})
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDiffer_Diff(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	for _, v := range []float64{1, 2, 3} {
		_, err := store.Save(ctx, &model.Workspace{ID: "acme", KPIs: map[string]model.KPI{"sales": {Value: v}}})
		require.NoError(t, err)
	}
	snaps, err := store.Snapshots(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	d := diff.NewDiffer(store)

	result, err := d.Diff(ctx, "acme", snaps[0].TS, snaps[1].TS)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalModified)
	assert.Equal(t, "2", result.Modified[0].New)
	assert.Equal(t, snaps[0].TS, result.FromTS)
	assert.Equal(t, model.ClientID("acme"), result.ClientID)

	result, err = d.Diff(ctx, "acme", snaps[0].TS, diff.Current)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalModified)
	assert.Equal(t, "3", result.Modified[0].New)
	assert.True(t, strings.HasPrefix(result.FormatHuman(), "Diff acme "))
	assert.Contains(t, result.FormatHuman(), "-> current")

	result, err = d.Diff(ctx, "acme", snaps[2].TS, diff.Current)
	require.NoError(t, err)
	assert.True(t, result.Empty(), "newest snapshot should equal the current document")
}

func TestDiffer_Diff_Errors(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	d := diff.NewDiffer(store)

	_, err := d.Diff(ctx, "../x", diff.Current, diff.Current)
	assert.ErrorIs(t, err, errclass.ErrValidation)

	_, err = d.Diff(ctx, "ghost", diff.Current, diff.Current)
	assert.ErrorIs(t, err, errclass.ErrNotFound)

	_, err = store.Save(ctx, &model.Workspace{ID: "acme"})
	require.NoError(t, err)
	_, err = d.Diff(ctx, "acme", 42, diff.Current)
	assert.ErrorIs(t, err, errclass.ErrNotFound)
}
