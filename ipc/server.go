package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
)

// Serve listens on socketPath and forwards decoded messages to out.
// It runs until ctx is canceled, then closes the listener and removes the socket.
func Serve(ctx context.Context, socketPath string, out chan<- Message, logger *slog.Logger) error {
	// Remove a stale socket left by an earlier run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleConnection(ctx, conn, out, logger)
	}
}

func handleConnection(ctx context.Context, conn net.Conn, out chan<- Message, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	// Unblock the scanner on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	reply := func(resp Response) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))

		msg, err := UnmarshalMessage(line)
		if err != nil {
			reply(Response{Status: "error", Error: fmt.Sprintf("parse message: %v", err)})
			continue
		}

		select {
		case out <- msg:
			reply(Response{Status: "ok"})
		default:
			reply(Response{Status: "error", Error: "message queue full"})
		}
	}

	logger.Debug("IPC connection closed")
}
