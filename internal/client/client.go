// Package client talks to a running thord over its unix socket.
package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jmylchreest/thor/internal/proto"
)

// DefaultTimeout bounds a whole exchange with the daemon.
const DefaultTimeout = 2 * time.Second

// ErrNotRunning is returned when nothing is listening on the socket.
var ErrNotRunning = errors.New("daemon not running")

// Client sends requests to the daemon socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// New creates a client for the socket at socketPath.
func New(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    DefaultTimeout,
	}
}

// setTimeout overrides the per-exchange timeout.
func (c *Client) setTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SocketPath returns the socket path the client dials.
func (c *Client) SocketPath() string {
	return c.socketPath
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	return conn, nil
}

// Send delivers a display request.
func (c *Client) Send(msg *proto.Message) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := proto.Send(conn, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// QueryPID asks the daemon for its process ID.
func (c *Client) QueryPID() (int, error) {
	conn, err := c.dial()
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	return QueryPID(conn)
}

// QueryPID performs a PID query over an established connection.
func QueryPID(conn net.Conn) (int, error) {
	if err := proto.Send(conn, &proto.Message{Flags: proto.FlagQueryPID}); err != nil {
		return 0, fmt.Errorf("failed to send query: %w", err)
	}
	pid, err := proto.ReadPID(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to read pid: %w", err)
	}
	return pid, nil
}
