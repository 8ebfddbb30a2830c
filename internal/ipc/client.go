package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Send delivers one command to the session owning path and waits for its
// answer. The timeout bounds the whole exchange, dial included.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("arm deadline: %w", err)
	}

	if err := writeFrame(conn, req); err != nil {
		return Response{}, fmt.Errorf("send command %q: %w", req.Command, err)
	}

	var resp Response
	if err := readFrame(bufio.NewReader(conn), &resp, "response"); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Probe asks whoever holds path for its status. It reports the owner's
// snapshot and whether a responsive owner exists. An unreachable socket
// means no owner; any other failure is inconclusive and surfaces as an
// error so callers do not unlink a socket that may still be live.
func Probe(ctx context.Context, path string, timeout time.Duration) (Response, bool, error) {
	resp, err := Send(ctx, path, Request{Command: "status"}, timeout)
	if err == nil {
		return resp, true, nil
	}
	if Unreachable(err) {
		return Response{}, false, nil
	}
	return Response{}, false, fmt.Errorf("probe socket: %w", err)
}

// Unreachable reports whether err means nothing is listening at the socket
// path: the file is gone, or it exists but no process accepts on it.
func Unreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(err.Error(), "no such file or directory")
}
