// Package api exposes the controller over gRPC on a Unix domain socket.
// There is no .proto/protoc toolchain available to this project, so every
// RPC payload is carried as a google.protobuf.Struct (a real, already
// vendored proto.Message) with a JSON-shaped encode/decode boundary at the
// edge; every other line of the codebase works with the typed structs in
// pkg/types.
package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// encode marshals v to JSON and lifts it into a *structpb.Struct.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal payload to map: %w", err)
	}

	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return s, nil
}

// decode lowers a *structpb.Struct back to JSON and unmarshals it into v.
func decode(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
