package badger

import (
	"encoding/json"
	"fmt"

	"github.com/lakshmanb4u/v7files/pkg/metadata"
)

// Serialization Strategy
// ======================
//
// Records are stored as JSON. The format is human-readable, debuggable with
// plain badger tooling, and tolerant of schema evolution (new optional
// fields decode as their zero value in old data). Index entries (children,
// roots) carry no payload at all; the key is the data.

// encodeRecord serializes a record to JSON bytes.
func encodeRecord(rec *metadata.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	return data, nil
}

// decodeRecord deserializes a record from JSON bytes.
func decodeRecord(data []byte) (*metadata.Record, error) {
	var rec metadata.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}
