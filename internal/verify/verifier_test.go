package verify_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/mops/internal/backend"
	"github.com/jvs-project/mops/internal/clock"
	"github.com/jvs-project/mops/internal/keyspace"
	"github.com/jvs-project/mops/internal/verify"
	"github.com/jvs-project/mops/internal/workspace"
	"github.com/jvs-project/mops/pkg/logging"
	"github.com/jvs-project/mops/pkg/model"
)

func setupStore(t *testing.T) (*workspace.Store, *backend.Memory) {
	kv := backend.NewMemory(0)
	store := workspace.New(kv, workspace.Options{
		MaxSnapshots: 3,
		Clock:        clock.NewFake(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Logger:       logging.Discard(),
	})
	t.Cleanup(func() { store.Close() })
	return store, kv
}

func saveN(t *testing.T, store *workspace.Store, id string, n int) {
	for i := 0; i < n; i++ {
		_, err := store.Save(context.Background(), &model.Workspace{
			ID:   model.ClientID(id),
			KPIs: map[string]model.KPI{"sales": {Value: float64(i)}},
		})
		require.NoError(t, err)
	}
}

func TestVerifier_VerifyClient(t *testing.T) {
	store, _ := setupStore(t)
	saveN(t, store, "acme", 4)

	result, err := verify.NewVerifier(store).VerifyClient(context.Background(), "acme")
	require.NoError(t, err)
	assert.True(t, result.OK(), "unexpected problem: %s", result.Error)
	assert.True(t, result.DataValid)
	assert.True(t, result.HistoryValid)
	assert.True(t, result.HeadMatches)
	assert.True(t, result.JournalValid)
	assert.False(t, result.TamperDetected)
	assert.Equal(t, 3, result.SnapshotCount)
	assert.Equal(t, 4, result.JournalRecords)
}

func TestVerifier_VerifyClient_Missing(t *testing.T) {
	store, _ := setupStore(t)

	result, err := verify.NewVerifier(store).VerifyClient(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, verify.SeverityError, result.Severity)
	assert.Contains(t, result.Error, "missing")
	assert.False(t, result.TamperDetected)
}

func TestVerifier_VerifyClient_InvalidID(t *testing.T) {
	store, _ := setupStore(t)

	result, err := verify.NewVerifier(store).VerifyClient(context.Background(), "../up")
	require.NoError(t, err)
	assert.Equal(t, verify.SeverityCritical, result.Severity)
	assert.True(t, result.TamperDetected)
}

func TestVerifier_VerifyClient_CorruptData(t *testing.T) {
	ctx := context.Background()
	store, kv := setupStore(t)
	saveN(t, store, "acme", 1)
	require.NoError(t, kv.Set(ctx, keyspace.Data("acme"), "{oops"))

	result, err := verify.NewVerifier(store).VerifyClient(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, result.DataValid)
	assert.True(t, result.TamperDetected)
	assert.Equal(t, verify.SeverityCritical, result.Severity)
	assert.Contains(t, result.Error, "E_DATA_CORRUPT")
}

func TestVerifier_VerifyClient_HeadDiffers(t *testing.T) {
	ctx := context.Background()
	store, kv := setupStore(t)
	saveN(t, store, "acme", 2)
	require.NoError(t, kv.Set(ctx, keyspace.Data("acme"), `{"id":"acme","clientName":"edited"}`))

	result, err := verify.NewVerifier(store).VerifyClient(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, result.DataValid)
	assert.False(t, result.HeadMatches)
	assert.Equal(t, verify.SeverityWarning, result.Severity)
	assert.Contains(t, result.Error, "differs from newest snapshot")
}

func TestVerifier_VerifyClient_HistoryOutOfOrder(t *testing.T) {
	ctx := context.Background()
	store, kv := setupStore(t)
	saveN(t, store, "acme", 1)

	doc, err := store.Load(ctx, "acme")
	require.NoError(t, err)
	raw := `[{"ts":20,"data":{"id":"acme"}},{"ts":10,"data":{"id":"acme"}}]`
	require.NoError(t, kv.Set(ctx, keyspace.Snapshots("acme"), raw))
	require.NotNil(t, doc)

	result, err := verify.NewVerifier(store).VerifyClient(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, result.HistoryValid)
	assert.True(t, result.TamperDetected)
	assert.Equal(t, verify.SeverityCritical, result.Severity)
}

func TestVerifier_VerifyClient_OverRetention(t *testing.T) {
	ctx := context.Background()
	store, kv := setupStore(t)
	saveN(t, store, "acme", 1)

	snaps := `[{"ts":1,"data":{}},{"ts":2,"data":{}},{"ts":3,"data":{}},{"ts":4,"data":{"id":"acme"}}]`
	require.NoError(t, kv.Set(ctx, keyspace.Snapshots("acme"), snaps))

	result, err := verify.NewVerifier(store).VerifyClient(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, result.HistoryValid)
	assert.Equal(t, verify.SeverityWarning, result.Severity)
	assert.Contains(t, result.Error, "exceed retention")
}

func TestVerifier_VerifyClient_JournalTampering(t *testing.T) {
	ctx := context.Background()
	store, kv := setupStore(t)
	saveN(t, store, "acme", 2)

	raw, ok, err := kv.Get(ctx, keyspace.Journal("acme"))
	require.NoError(t, err)
	require.True(t, ok)
	tampered := strings.Replace(raw, `"snapshots":1`, `"snapshots":9`, 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, kv.Set(ctx, keyspace.Journal("acme"), tampered))

	result, err := verify.NewVerifier(store).VerifyClient(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, result.JournalValid)
	assert.True(t, result.TamperDetected)
	assert.Equal(t, verify.SeverityCritical, result.Severity)
	assert.Contains(t, result.Error, "E_AUDIT_CHAIN_BROKEN")
}

func TestVerifier_VerifyAll(t *testing.T) {
	ctx := context.Background()
	store, kv := setupStore(t)
	saveN(t, store, "beta", 1)
	saveN(t, store, "alpha", 2)
	// A document the directory does not know about.
	require.NoError(t, kv.Set(ctx, keyspace.Data("orphan"), `{"id":"orphan"}`))

	results, err := verify.NewVerifier(store).VerifyAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, model.ClientID("alpha"), results[0].ClientID)
	assert.Equal(t, model.ClientID("beta"), results[1].ClientID)
	assert.Equal(t, model.ClientID("orphan"), results[2].ClientID)
	assert.True(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.True(t, results[2].DataValid)
	assert.Equal(t, 0, results[2].SnapshotCount)
}

func TestVerifier_VerifyAll_Empty(t *testing.T) {
	store, _ := setupStore(t)

	results, err := verify.NewVerifier(store).VerifyAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
