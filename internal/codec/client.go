// Package codec talks to the external inference service (sentiment
// classifier and entity extractor) over gRPC. Messages are
// google.protobuf.Struct values, so no generated stubs are required.
package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/signals"
)

// #region methods
const (
	classifyMethod = "/refiner.v1.Inference/Classify"
	extractMethod  = "/refiner.v1.Inference/Extract"
)
// #endregion methods

// #region client-struct

// invoker is the unary half of grpc.ClientConnInterface.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// Client wraps the gRPC connection to the inference service.
type Client struct {
	conn *grpc.ClientConn
	inv  invoker
}

// #endregion client-struct

// #region constructor

// NewClient connects to the inference gRPC server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, inv: conn}, nil
}

// NewClientWithInvoker creates a Client over an injected invoker.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(inv invoker) *Client {
	return &Client{inv: inv}
}

// #endregion constructor

// #region close

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region classify

// Classify returns the sentiment label and confidence for text.
func (c *Client) Classify(ctx context.Context, text string) (signals.Classification, error) {
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return signals.Classification{}, fmt.Errorf("classify request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.inv.Invoke(ctx, classifyMethod, req, resp); err != nil {
		return signals.Classification{}, fmt.Errorf("classify rpc: %w", err)
	}

	fields := resp.GetFields()
	label, ok := fields["label"]
	if !ok || label.GetStringValue() == "" {
		return signals.Classification{}, fmt.Errorf("classify rpc: response missing label")
	}
	return signals.Classification{
		Label: label.GetStringValue(),
		Score: fields["score"].GetNumberValue(),
	}, nil
}

// #endregion classify

// #region extract

// Extract returns the named entities found in text.
func (c *Client) Extract(ctx context.Context, text string) ([]record.Entity, error) {
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("extract request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.inv.Invoke(ctx, extractMethod, req, resp); err != nil {
		return nil, fmt.Errorf("extract rpc: %w", err)
	}

	list := resp.GetFields()["entities"].GetListValue().GetValues()
	ents := make([]record.Entity, 0, len(list))
	for _, v := range list {
		f := v.GetStructValue().GetFields()
		if f == nil {
			continue
		}
		ents = append(ents, record.Entity{
			Text:  f["text"].GetStringValue(),
			Label: f["label"].GetStringValue(),
		})
	}
	return ents, nil
}

// #endregion extract
