package stream

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"
)

// Client receives one stream from a Server.
type Client struct {
	id   ID
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to addr and selects the stream id. A rejected selection
// shows up as io.EOF on the first read, since the server simply closes
// the connection.
func Dial(ctx context.Context, addr string, id ID) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if err := WriteHandshake(conn, id); err != nil {
		conn.Close()
		return nil, fmt.Errorf("select stream %s: %w", id, err)
	}
	conn.SetWriteDeadline(time.Time{})

	return &Client{id: id, conn: conn, r: bufio.NewReaderSize(conn, 64*1024)}, nil
}

// ID returns the selected stream.
func (c *Client) ID() ID { return c.id }

// SetReadDeadline bounds the next reads.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// ReadSkeleton reads the next skeleton message.
func (c *Client) ReadSkeleton() (SkeletonMessage, error) {
	var m SkeletonMessage
	payload, err := ReadMessage(c.r)
	if err != nil {
		return m, err
	}
	if err := m.UnmarshalBinary(payload); err != nil {
		return m, err
	}
	return m, nil
}

// ReadColor reads the next colour message.
func (c *Client) ReadColor() (ColorMessage, error) {
	var m ColorMessage
	payload, err := ReadMessage(c.r)
	if err != nil {
		return m, err
	}
	if err := m.UnmarshalBinary(payload); err != nil {
		return m, err
	}
	return m, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
