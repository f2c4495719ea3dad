// Package engine implements the immutable rig execution state machine of
// §3 and §4.3–§4.5 of the rig spec: per-handle component state, the
// grouped execution order, JSON metadata hashing, and the single `step`
// operation that folds an Instruction into a new state.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// JsonMetadata pairs a JSON value's canonical serialized form with its
// SHA-256 hash, computed once and retained so equality of inputs/outputs
// across steps can be checked cheaply by comparing hashes rather than
// deep-comparing values.
//
// encoding/json already serializes map[string]any keys in sorted order,
// which is what makes this serialization canonical without any extra
// normalization step — the same guarantee the teacher leans on when it
// hashes content with crypto/sha256 elsewhere in the pack (and
// crypto/md5 in the dagu example's DAG-content hashing).
type JsonMetadata struct {
	Value      any
	Serialized string
	Hash       string
}

// NewJsonMetadata computes the JsonMetadata for v.
func NewJsonMetadata(v any) (*JsonMetadata, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, slerr.Internal("failed to serialize value for hashing", err)
	}
	sum := sha256.Sum256(data)
	return &JsonMetadata{
		Value:      v,
		Serialized: string(data),
		Hash:       hex.EncodeToString(sum[:]),
	}, nil
}
