// Package faults defines the failure taxonomy shared by capture, transcription,
// and recovery layers.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrPermissionDenied means microphone access was refused by the platform.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable means no usable capture device could be acquired,
	// or an acquired device was lost mid-recording.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrCapabilityUnsupported means a transcription method's runtime
	// dependency is missing at call time. Absorbed by the fallback loop,
	// never surfaced per method.
	ErrCapabilityUnsupported = errors.New("capability unsupported")

	// ErrNetworkTimeout means a method exceeded its bounded attempt window.
	ErrNetworkTimeout = errors.New("network timeout")

	// ErrProtocolError means a malformed frame or response from a backend.
	ErrProtocolError = errors.New("protocol error")

	// ErrAllMethodsExhausted means every method in the fallback chain failed.
	// It always wraps the last underlying failure.
	ErrAllMethodsExhausted = errors.New("all transcription methods exhausted")
)

// Exhausted wraps the final method failure into the aggregate error surfaced
// to callers.
func Exhausted(last error) error {
	if last == nil {
		return ErrAllMethodsExhausted
	}
	return fmt.Errorf("%w: last failure: %w", ErrAllMethodsExhausted, last)
}

// Timeout tags an operation's failure as a bounded-window expiry.
func Timeout(op string, window fmt.Stringer) error {
	return fmt.Errorf("%w: %s exceeded %s", ErrNetworkTimeout, op, window)
}

// Protocol tags a malformed frame or response.
func Protocol(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolError, fmt.Sprintf(format, args...))
}

// IsConnectivity reports whether an error was caused by the network being
// unreachable or slow, as opposed to the backend rejecting the request.
// Connectivity failures route segments into the offline queue.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetworkTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
