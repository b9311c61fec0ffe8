package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Section is one vault section. Its contents are owned by the dashboard
// that edits it; the store only guarantees the map is never nil.
type Section map[string]any

// Row is a single dashboard table row.
type Row map[string]any

// Vault groups the strategic data categories of a workspace.
type Vault struct {
	Brand    Section `json:"brand"`
	Commerce Section `json:"commerce"`
	Funnel   Section `json:"funnel"`
	Ops      Section `json:"ops"`
	Design   Section `json:"design"`
	Learning Section `json:"learning"`
}

// Dashboards holds the D1-D5 dashboard tables.
type Dashboards struct {
	D1 []Row `json:"d1"`
	D2 []Row `json:"d2"`
	D3 []Row `json:"d3"`
	D4 []Row `json:"d4"`
	D5 []Row `json:"d5"`
}

// KPI is the tracked value of a single KPI against its goal.
//
// A value or goal that is not a JSON number (null, or text such as
// "R$ 10k") reads as zero and is kept verbatim in Extensions under its own
// key. It is written back as long as the numeric field is still zero.
type KPI struct {
	Value float64 `json:"value"`
	Goal  float64 `json:"goal"`

	Extensions map[string]json.RawMessage `json:"-"`
}

type kpiFields KPI

// MarshalJSON writes value and goal followed by extension fields.
func (k KPI) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(kpiFields(k))
	if err != nil {
		return nil, err
	}
	ext := make(map[string]json.RawMessage, len(k.Extensions))
	for key, v := range k.Extensions {
		if (key == "value" && k.Value != 0) || (key == "goal" && k.Goal != 0) {
			continue
		}
		ext[key] = v
	}
	return withExtensions(known, ext, nil)
}

// UnmarshalJSON reads numeric value and goal and keeps everything else,
// including non-numeric value and goal, as extensions.
func (k *KPI) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	var out KPI
	for key, raw := range all {
		if key == "value" || key == "goal" {
			if f, ok := number(raw); ok {
				if key == "value" {
					out.Value = f
				} else {
					out.Goal = f
				}
				continue
			}
		}
		if out.Extensions == nil {
			out.Extensions = make(map[string]json.RawMessage)
		}
		out.Extensions[key] = raw
	}
	*k = out
	return nil
}

func number(raw json.RawMessage) (float64, bool) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// KPIDefinition describes a KPI the measurement contract commits to.
// Unknown keys are kept in Extensions.
type KPIDefinition struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Direction string `json:"direction,omitempty"` // "up" or "down"

	Extensions map[string]json.RawMessage `json:"-"`
}

type kpiDefinitionFields KPIDefinition

var kpiDefinitionKeys = keySet("id", "label", "unit", "direction")

func (d KPIDefinition) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(kpiDefinitionFields(d))
	if err != nil {
		return nil, err
	}
	return withExtensions(known, d.Extensions, kpiDefinitionKeys)
}

func (d *KPIDefinition) UnmarshalJSON(data []byte) error {
	var fields kpiDefinitionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	ext, err := extensions(data, kpiDefinitionKeys)
	if err != nil {
		return err
	}
	fields.Extensions = ext
	*d = KPIDefinition(fields)
	return nil
}

// MeasurementContract is the agreed measurement cycle for a client.
// Unknown keys, such as a signing status, are kept in Extensions.
type MeasurementContract struct {
	CycleID        string          `json:"cycleId"`
	CycleLabel     string          `json:"cycleLabel"`
	Objectives     []string        `json:"objectives"`
	KPIDefinitions []KPIDefinition `json:"kpiDefinitions"`
	AuditLog       []AuditLogEntry `json:"auditLog"`

	Extensions map[string]json.RawMessage `json:"-"`
}

type contractFields MeasurementContract

var contractKeys = keySet("cycleId", "cycleLabel", "objectives", "kpiDefinitions", "auditLog")

func (c MeasurementContract) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(contractFields(c))
	if err != nil {
		return nil, err
	}
	return withExtensions(known, c.Extensions, contractKeys)
}

func (c *MeasurementContract) UnmarshalJSON(data []byte) error {
	var fields contractFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	ext, err := extensions(data, contractKeys)
	if err != nil {
		return err
	}
	fields.Extensions = ext
	*c = MeasurementContract(fields)
	return nil
}

// Workspace is the full persisted state for one client.
//
// Saves replace the whole document. Keys the schema does not know, at the
// top level and inside KPIs and the measurement contract, are kept in
// Extensions and written back unchanged.
type Workspace struct {
	ID                  ClientID            `json:"id"`
	ClientName          string              `json:"clientName"`
	Vault               Vault               `json:"vault"`
	Dashboards          Dashboards          `json:"dashboards"`
	KPIs                map[string]KPI      `json:"kpis"`
	MeasurementContract MeasurementContract `json:"measurementContract"`

	Extensions map[string]json.RawMessage `json:"-"`
}

// workspaceFields mirrors Workspace without its JSON methods.
type workspaceFields Workspace

var workspaceKeys = keySet("id", "clientName", "vault", "dashboards", "kpis", "measurementContract")

// MarshalJSON writes the schema fields followed by extension fields.
func (w Workspace) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(workspaceFields(w))
	if err != nil {
		return nil, err
	}
	return withExtensions(known, w.Extensions, workspaceKeys)
}

// UnmarshalJSON reads the schema fields and keeps unknown keys as extensions.
func (w *Workspace) UnmarshalJSON(data []byte) error {
	var fields workspaceFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	ext, err := extensions(data, workspaceKeys)
	if err != nil {
		return err
	}
	fields.Extensions = ext
	*w = Workspace(fields)
	return nil
}

func keySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// withExtensions adds ext to the JSON object known. An extension may not
// replace a key in reserved.
func withExtensions(known []byte, ext map[string]json.RawMessage, reserved map[string]struct{}) ([]byte, error) {
	if len(ext) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(reserved)+len(ext))
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range ext {
		if _, ok := reserved[k]; ok {
			return nil, fmt.Errorf("extension field %q shadows a schema field", k)
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// extensions returns the keys of the JSON object data that are not in
// known, or nil when there are none.
func extensions(data []byte, known map[string]struct{}) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// Normalize returns a copy of partial with every section filled in, so
// readers never have to nil-check. It never fails; a nil partial yields an
// empty document with no ID. The input is not modified.
func Normalize(partial *Workspace) *Workspace {
	var w Workspace
	if partial != nil {
		w = *partial
	}

	if w.ClientName == "" {
		w.ClientName = string(w.ID)
	}

	w.Vault.Brand = defaultSection(w.Vault.Brand)
	w.Vault.Commerce = defaultSection(w.Vault.Commerce)
	w.Vault.Funnel = defaultSection(w.Vault.Funnel)
	w.Vault.Ops = defaultSection(w.Vault.Ops)
	w.Vault.Design = defaultSection(w.Vault.Design)
	w.Vault.Learning = defaultSection(w.Vault.Learning)

	w.Dashboards.D1 = defaultRows(w.Dashboards.D1)
	w.Dashboards.D2 = defaultRows(w.Dashboards.D2)
	w.Dashboards.D3 = defaultRows(w.Dashboards.D3)
	w.Dashboards.D4 = defaultRows(w.Dashboards.D4)
	w.Dashboards.D5 = defaultRows(w.Dashboards.D5)

	if w.KPIs == nil {
		w.KPIs = map[string]KPI{}
	}

	mc := &w.MeasurementContract
	if mc.Objectives == nil {
		mc.Objectives = []string{}
	}
	if mc.KPIDefinitions == nil {
		mc.KPIDefinitions = []KPIDefinition{}
	}
	if mc.AuditLog == nil {
		mc.AuditLog = []AuditLogEntry{}
	}

	if len(w.Extensions) == 0 {
		w.Extensions = nil
	}
	return &w
}

func defaultSection(s Section) Section {
	if s == nil {
		return Section{}
	}
	return s
}

func defaultRows(rows []Row) []Row {
	if rows == nil {
		return []Row{}
	}
	return rows
}
