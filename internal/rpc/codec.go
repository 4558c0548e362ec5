package rpc

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

var _ connect.Codec = JSONCodec{}

// JSONCodec serializes plain Go structs with encoding/json. Messages are not
// protobuf types, so the codec replaces connect's protojson codec under the
// same name and both ends must opt into it with connect.WithCodec.
type JSONCodec struct{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", msg, err)
	}
	return nil
}
