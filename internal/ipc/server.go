package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// connGrace bounds how long a connected client may take to send its one
// request frame. A stalled client must not pin a session goroutine.
const connGrace = 5 * time.Second

// Serve answers commands on listener until the context is cancelled or the
// listener closes. Each connection carries exactly one request/response
// exchange; in-flight exchanges are allowed to finish on shutdown.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var inflight sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				inflight.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			answer(ctx, conn, handler)
		}()
	}
}

// answer runs one request/response exchange and closes the connection.
// Malformed requests get an error Response rather than a dropped line so
// CLI callers always see why they were refused.
func answer(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connGrace))

	var req Request
	if err := readFrame(bufio.NewReader(conn), &req, "request"); err != nil {
		_ = writeFrame(conn, Response{OK: false, Error: err.Error()})
		return
	}

	_ = writeFrame(conn, handler.Handle(ctx, req))
}
