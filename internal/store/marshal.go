package store

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/sketchsync/internal/ir"
)

// marshalPayload converts an envelope payload to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalPayload(payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// encMode is the CBOR encoder configured with Core Deterministic Encoding
// (RFC 8949 §4.2): the same sketch always produces identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
}

// encodeSketch encodes a normalized sketch as deterministic CBOR.
func encodeSketch(s ir.Sketch) ([]byte, error) {
	data, err := encMode.Marshal(ir.Normalize(s))
	if err != nil {
		return nil, fmt.Errorf("encode sketch: %w", err)
	}
	return data, nil
}

// decodeSketch decodes a CBOR sketch blob and normalizes it.
func decodeSketch(data []byte) (ir.Sketch, error) {
	var s ir.Sketch
	if err := cbor.Unmarshal(data, &s); err != nil {
		return ir.Sketch{}, fmt.Errorf("decode sketch: %w", err)
	}
	return ir.Normalize(s), nil
}
