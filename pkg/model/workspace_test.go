package model_test

import (
	"encoding/json"
	"testing"

	"github.com/jvs-project/mops/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FillsDefaults(t *testing.T) {
	w := model.Normalize(&model.Workspace{ID: "acme"})

	assert.Equal(t, model.ClientID("acme"), w.ID)
	assert.Equal(t, "acme", w.ClientName)
	assert.NotNil(t, w.Vault.Brand)
	assert.NotNil(t, w.Vault.Commerce)
	assert.NotNil(t, w.Vault.Funnel)
	assert.NotNil(t, w.Vault.Ops)
	assert.NotNil(t, w.Vault.Design)
	assert.NotNil(t, w.Vault.Learning)
	assert.NotNil(t, w.Dashboards.D1)
	assert.NotNil(t, w.Dashboards.D5)
	assert.NotNil(t, w.KPIs)
	assert.NotNil(t, w.MeasurementContract.Objectives)
	assert.NotNil(t, w.MeasurementContract.KPIDefinitions)
	assert.NotNil(t, w.MeasurementContract.AuditLog)
}

func TestNormalize_Nil(t *testing.T) {
	w := model.Normalize(nil)
	require.NotNil(t, w)
	assert.Empty(t, w.ID)
	assert.NotNil(t, w.Vault.Brand)
}

func TestNormalize_KeepsProvidedValues(t *testing.T) {
	in := &model.Workspace{
		ID:         "acme",
		ClientName: "Acme Corp",
		Vault:      model.Vault{Brand: model.Section{"voice": "bold"}},
		KPIs:       map[string]model.KPI{"roas": {Value: 3.1, Goal: 4}},
	}
	w := model.Normalize(in)

	assert.Equal(t, "Acme Corp", w.ClientName)
	assert.Equal(t, "bold", w.Vault.Brand["voice"])
	assert.Equal(t, 3.1, w.KPIs["roas"].Value)
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	in := &model.Workspace{ID: "acme"}
	_ = model.Normalize(in)
	assert.Empty(t, in.ClientName)
	assert.Nil(t, in.Vault.Brand)
	assert.Nil(t, in.KPIs)
}

func TestNormalize_Idempotent(t *testing.T) {
	once := model.Normalize(&model.Workspace{ID: "acme", ClientName: "A"})
	twice := model.Normalize(once)
	assert.Equal(t, once, twice)
}

func TestWorkspaceJSON_EmptyCollectionsNotNull(t *testing.T) {
	data, err := json.Marshal(model.Normalize(&model.Workspace{ID: "acme"}))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["dashboards"].(map[string]any)["d1"])
	assert.Equal(t, map[string]any{}, raw["vault"].(map[string]any)["brand"])
	assert.Equal(t, []any{}, raw["measurementContract"].(map[string]any)["auditLog"])
}

func TestWorkspaceJSON_PreservesUnknownKeys(t *testing.T) {
	in := `{"id":"acme","clientName":"Acme","notes":{"pinned":true},"theme":"dark"}`

	var w model.Workspace
	require.NoError(t, json.Unmarshal([]byte(in), &w))
	assert.Equal(t, model.ClientID("acme"), w.ID)
	require.Len(t, w.Extensions, 2)
	assert.JSONEq(t, `{"pinned":true}`, string(w.Extensions["notes"]))

	out, err := json.Marshal(w)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, "dark", raw["theme"])
	assert.Equal(t, map[string]any{"pinned": true}, raw["notes"])
}

func TestWorkspaceJSON_ExtensionShadowingSchemaFails(t *testing.T) {
	w := model.Workspace{
		ID:         "acme",
		Extensions: map[string]json.RawMessage{"kpis": json.RawMessage(`1`)},
	}
	_, err := json.Marshal(w)
	assert.Error(t, err)
}

func TestAuditLogEntryJSON_RoundTrip(t *testing.T) {
	in := `{"id":"a1","action":"kpi_changed","by":"ops","at":1700000000000}`

	var e model.AuditLogEntry
	require.NoError(t, json.Unmarshal([]byte(in), &e))
	assert.Equal(t, "a1", e.ID)
	assert.Equal(t, "kpi_changed", e.Fields["action"])

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestAuditLogEntryJSON_NonStringID(t *testing.T) {
	var e model.AuditLogEntry
	require.NoError(t, json.Unmarshal([]byte(`{"id":7,"action":"x"}`), &e))
	assert.Empty(t, e.ID)
	assert.Equal(t, float64(7), e.Fields["id"])

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"action":"x"}`, string(out))
}

func TestAuditLogEntryJSON_NullStaysNull(t *testing.T) {
	var log []model.AuditLogEntry
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a"},null]`), &log))
	require.Len(t, log, 2)
	assert.False(t, log[0].Null)
	assert.True(t, log[1].Null)

	out, err := json.Marshal(log)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"},null]`, string(out))
}

func TestAuditLogEntryJSON_EmptyObjectIsNotNull(t *testing.T) {
	var e model.AuditLogEntry
	require.NoError(t, json.Unmarshal([]byte(`{}`), &e))
	assert.False(t, e.Null)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestWorkspaceJSON_PreservesNestedUnknownKeys(t *testing.T) {
	in := `{
		"id": "acme",
		"kpis": {"sales": {"value": 1, "goal": 2, "unit": "BRL", "status": "on_track"}},
		"measurementContract": {
			"cycleId": "q1",
			"status": "signed",
			"kpiDefinitions": [{"id": "sales", "owner": "ana"}]
		}
	}`

	var w model.Workspace
	require.NoError(t, json.Unmarshal([]byte(in), &w))
	sales := w.KPIs["sales"]
	assert.Equal(t, float64(1), sales.Value)
	assert.Equal(t, float64(2), sales.Goal)
	assert.JSONEq(t, `"BRL"`, string(sales.Extensions["unit"]))
	assert.Equal(t, "q1", w.MeasurementContract.CycleID)
	assert.JSONEq(t, `"signed"`, string(w.MeasurementContract.Extensions["status"]))
	require.Len(t, w.MeasurementContract.KPIDefinitions, 1)
	assert.JSONEq(t, `"ana"`, string(w.MeasurementContract.KPIDefinitions[0].Extensions["owner"]))
	assert.Nil(t, w.Extensions)

	out, err := json.Marshal(w)
	require.NoError(t, err)

	var raw struct {
		KPIs                map[string]map[string]any `json:"kpis"`
		MeasurementContract map[string]any            `json:"measurementContract"`
	}
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, map[string]any{"value": float64(1), "goal": float64(2), "unit": "BRL", "status": "on_track"}, raw.KPIs["sales"])
	assert.Equal(t, "signed", raw.MeasurementContract["status"])
	assert.Equal(t, []any{map[string]any{"id": "sales", "owner": "ana"}}, raw.MeasurementContract["kpiDefinitions"])
}

func TestKPIJSON_NonNumericValues(t *testing.T) {
	var k model.KPI
	require.NoError(t, json.Unmarshal([]byte(`{"value":"R$ 10k","goal":null}`), &k))
	assert.Zero(t, k.Value)
	assert.Zero(t, k.Goal)
	assert.JSONEq(t, `"R$ 10k"`, string(k.Extensions["value"]))
	assert.JSONEq(t, `null`, string(k.Extensions["goal"]))

	out, err := json.Marshal(k)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"R$ 10k","goal":null}`, string(out))

	// A number set later wins over the carried text.
	k.Value = 42
	out, err = json.Marshal(k)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":42,"goal":null}`, string(out))
}

func TestMeasurementContractJSON_ExtensionShadowingFails(t *testing.T) {
	mc := model.MeasurementContract{
		Extensions: map[string]json.RawMessage{"cycleId": json.RawMessage(`"x"`)},
	}
	_, err := json.Marshal(mc)
	assert.Error(t, err)
}

func TestSnapshotTime(t *testing.T) {
	s := model.Snapshot{TS: 1700000000123}
	assert.Equal(t, int64(1700000000123), s.Time().UnixMilli())
}
