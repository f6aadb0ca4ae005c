package grpcapi

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lemonberrylabs/calculator/pkg/compiler"
	"github.com/lemonberrylabs/calculator/pkg/types"
)

// Client calls a calculator.v1.Calculator service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection. Close closes conn.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Evaluate evaluates expression remotely at level. Calculator failures are
// returned as *types.Error.
func (c *Client) Evaluate(ctx context.Context, expression string, level compiler.OptimizationLevel, opts ...grpc.CallOption) (float64, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, LevelMetadataKey, level.String())
	out := new(wrapperspb.DoubleValue)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Evaluate", wrapperspb.String(expression), out, opts...); err != nil {
		return 0, fromStatus(err)
	}
	return out.GetValue(), nil
}

// Parse returns the rendered tree of expression.
func (c *Client) Parse(ctx context.Context, expression string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Parse", wrapperspb.String(expression), out, opts...); err != nil {
		return "", fromStatus(err)
	}
	return out.GetValue(), nil
}

// fromStatus rebuilds a *types.Error from an ErrorInfo detail. Errors
// without one are returned unchanged.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		md := info.GetMetadata()
		e := &types.Error{
			Kind:     types.Kind(info.GetReason()),
			Message:  st.Message(),
			Char:     md["char"],
			Token:    md["token"],
			Operator: md["operator"],
			Pos:      -1,
		}
		if v, err := strconv.Atoi(md["position"]); err == nil {
			e.Pos = v
		}
		if v, err := strconv.Atoi(md["depth"]); err == nil {
			e.Depth = v
		}
		return e
	}
	return err
}
