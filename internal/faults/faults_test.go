package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExhaustedWrapsLastFailure(t *testing.T) {
	last := errors.New("upstream said no")
	err := Exhausted(last)
	require.ErrorIs(t, err, ErrAllMethodsExhausted)
	require.ErrorIs(t, err, last)

	require.ErrorIs(t, Exhausted(nil), ErrAllMethodsExhausted)
}

func TestTimeoutCarriesWindow(t *testing.T) {
	err := Timeout("streaming", 30*time.Second)
	require.ErrorIs(t, err, ErrNetworkTimeout)
	require.Contains(t, err.Error(), "streaming exceeded 30s")
}

func TestProtocolFormats(t *testing.T) {
	err := Protocol("unexpected frame %q", "telemetry")
	require.ErrorIs(t, err, ErrProtocolError)
	require.Contains(t, err.Error(), `unexpected frame "telemetry"`)
}

func TestIsConnectivity(t *testing.T) {
	require.False(t, IsConnectivity(nil))
	require.False(t, IsConnectivity(errors.New("bad request")))
	require.False(t, IsConnectivity(ErrProtocolError))

	require.True(t, IsConnectivity(ErrNetworkTimeout))
	require.True(t, IsConnectivity(fmt.Errorf("wrapped: %w", ErrNetworkTimeout)))
	require.True(t, IsConnectivity(context.DeadlineExceeded))
	require.True(t, IsConnectivity(&net.OpError{Op: "dial", Err: errors.New("refused")}))
}
