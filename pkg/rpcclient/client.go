// Package rpcclient is a thin typed wrapper over the controller's gRPC
// service for use by the CLI and other local tools.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/transctrl/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps a gRPC connection to the controller's Unix domain socket.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the controller at socketPath. There is no credential exchange:
// filesystem permissions on the socket are the access control boundary.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix:"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, payload any, out any) error {
	req, err := structpbFrom(payload)
	if err != nil {
		return err
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/transctrl.Controller/"+method, req, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return structpbInto(resp, out)
}

// Reconcile submits a desired state and returns the aggregated result.
func (c *Client) Reconcile(ctx context.Context, ds *types.DesiredState) (*types.ReconcileResult, error) {
	var result types.ReconcileResult
	if err := c.invoke(ctx, "Reconcile", ds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStatus returns the status of every managed instance.
func (c *Client) GetStatus(ctx context.Context) (*types.CurrentState, error) {
	var state types.CurrentState
	if err := c.invoke(ctx, "GetStatus", struct{}{}, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetInstance returns the status of a single instance.
func (c *Client) GetInstance(ctx context.Context, instanceID string) (*types.InstanceStatus, error) {
	req := struct {
		InstanceID string `json:"instance_id"`
	}{InstanceID: instanceID}

	var status types.InstanceStatus
	if err := c.invoke(ctx, "GetInstance", req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DefaultTimeout bounds any single RPC issued through this client.
const DefaultTimeout = 30 * time.Second

// structpbFrom mirrors pkg/api's wire encoding: JSON marshal, then lift
// into a google.protobuf.Struct.
func structpbFrom(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal request to map: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("build request struct: %w", err)
	}
	return s, nil
}

// structpbInto is the client-side mirror of pkg/api's decode.
func structpbInto(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return json.Unmarshal(raw, v)
}
