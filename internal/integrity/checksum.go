// Package integrity computes and verifies content checksums for export bundles.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jvs-project/mops/pkg/errclass"
	"github.com/jvs-project/mops/pkg/jsonutil"
	"github.com/jvs-project/mops/pkg/model"
)

// ComputePayloadChecksum computes the SHA-256 of the canonical JSON form of
// payload. Key order and whitespace do not affect the result.
func ComputePayloadChecksum(payload any) (model.HashValue, error) {
	data, err := jsonutil.CanonicalMarshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonical marshal payload: %w", err)
	}
	return hashBytes(data), nil
}

// ComputeRawChecksum computes the checksum of an already-encoded payload,
// exactly as received. It agrees with ComputePayloadChecksum for the value
// the bytes decode to.
func ComputeRawChecksum(raw []byte) (model.HashValue, error) {
	data, err := jsonutil.Canonicalize(raw)
	if err != nil {
		return "", errclass.ErrDataCorrupt.WithMessagef("payload is not valid JSON: %v", err)
	}
	return hashBytes(data), nil
}

// VerifyRawChecksum recomputes the checksum of raw and compares it with want.
// A difference fails with E_CHECKSUM_MISMATCH.
func VerifyRawChecksum(raw []byte, want model.HashValue) error {
	got, err := ComputeRawChecksum(raw)
	if err != nil {
		return err
	}
	if got != want {
		return errclass.ErrChecksumMismatch.WithMessagef("Checksum mismatch: bundle declares %q, payload hashes to %q", want, got)
	}
	return nil
}

func hashBytes(data []byte) model.HashValue {
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:]))
}
