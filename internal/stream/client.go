package stream

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client consumes the FrameStream service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target. The connection is established lazily.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// FrameReceiver reads frames from an open stream.
type FrameReceiver struct {
	cs grpc.ClientStream
}

// Recv blocks for the next frame. It returns io.EOF when the server ends
// the stream.
func (r *FrameReceiver) Recv() (Frame, error) {
	msg := new(structpb.Struct)
	if err := r.cs.RecvMsg(msg); err != nil {
		return Frame{}, err
	}
	return Decode(msg)
}

// StreamFrames opens a frame stream. Cancel ctx to end it.
func (c *Client) StreamFrames(ctx context.Context, opts ...grpc.CallOption) (*FrameReceiver, error) {
	cs, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], streamFramesPath, opts...)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &FrameReceiver{cs: cs}, nil
}
