package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/interfect/Kruna/internal/app/notification"
)

// Client talks to a PlayerService.
type Client struct {
	send      *connect.Client[structpb.Struct, emptypb.Empty]
	subscribe *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithInterceptors(NewAuthInterceptor(token))}, opts...)
	return &Client{
		send:      connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+SendProcedure, opts...),
		subscribe: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

// Send issues one player command.
func (c *Client) Send(ctx context.Context, name string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	msg, err := structpb.NewStruct(map[string]any{
		notification.FieldName: name,
		notification.FieldArgs: args,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode command %s", name)
	}
	if _, err := c.send.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return errors.Wrapf(err, "command %s failed", name)
	}
	return nil
}

// Subscribe calls fn for each notification until ctx is done, the server
// closes the stream or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(notification.Decoded) error) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return errors.Wrap(err, "failed to subscribe")
	}
	defer stream.Close()

	for stream.Receive() {
		n, err := notification.Decode(stream.Msg())
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "subscription failed")
	}
	return nil
}
