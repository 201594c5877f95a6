package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeRequireStrict parses a RequireBlock document rejecting unknown
// fields. Used at the admin API write boundary so operators get immediate
// feedback on typos instead of a silently-ignored field (spec.md §9).
func DecodeRequireStrict(raw []byte) (RequireBlock, error) {
	var block RequireBlock
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&block); err != nil {
		return RequireBlock{}, fmt.Errorf("require: %w", err)
	}
	return block, nil
}

// DecodeRequireLoose parses a RequireBlock document tolerating unknown
// fields, used when reading back from the database so forward-compatible
// documents written by a newer version don't break older readers.
func DecodeRequireLoose(raw []byte) (RequireBlock, error) {
	var block RequireBlock
	if len(bytes.TrimSpace(raw)) == 0 {
		return block, nil
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return RequireBlock{}, fmt.Errorf("require: %w", err)
	}
	return block, nil
}

// EncodeRequire serializes a RequireBlock for storage.
func EncodeRequire(block RequireBlock) ([]byte, error) {
	return json.Marshal(block)
}
