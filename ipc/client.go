package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// DefaultSocketPath is where stillpointd listens unless configured otherwise.
const DefaultSocketPath = "/tmp/stillpoint.sock"

// Send delivers one message to the daemon and waits for its reply.
func Send(ctx context.Context, socketPath string, m Message) error {
	data, err := MarshalMessage(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}
