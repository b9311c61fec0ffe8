package workspace

import (
	"bytes"
	"encoding/json"

	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/model"
)

// ParseBundle decodes a serialized export bundle and checks its envelope:
// the type marker, the schema version and the presence of a payload. The
// payload is kept as received so its checksum can be recomputed exactly.
// A missing schema version is read as version 1.
func ParseBundle(data []byte) (*model.RawExportBundle, error) {
	var b model.RawExportBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errclass.ErrValidation.WithMessagef("malformed export bundle: %v", err)
	}
	if b.Type != model.ExportMarker {
		return nil, errclass.ErrValidation.WithMessagef("not a workspace export: type is %q, want %q", b.Type, model.ExportMarker)
	}
	if b.SchemaVersion == 0 {
		b.SchemaVersion = 1
	}
	if b.SchemaVersion < 1 || b.SchemaVersion > model.SchemaVersion {
		return nil, errclass.ErrFormatUnsupported.WithMessagef("bundle schema version %d is not supported (max %d)", b.SchemaVersion, model.SchemaVersion)
	}
	payload := bytes.TrimSpace(b.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, errclass.ErrValidation.WithMessage("export bundle has no payload")
	}
	if b.Checksum == "" {
		return nil, errclass.ErrValidation.WithMessage("export bundle has no checksum")
	}
	b.Payload = payload
	return &b, nil
}
