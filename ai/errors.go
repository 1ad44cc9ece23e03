package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrBackendUnreachable indicates the model service could not be reached.
	ErrBackendUnreachable = errors.New("model backend unreachable")

	// ErrEmptyResponse indicates the model answered with no content.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// IsConnectionError reports whether err is a transport failure: refused or
// reset connections, DNS failures and network timeouts.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBackendUnreachable) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// WrapError marks transport failures with ErrBackendUnreachable and leaves
// every other error as is. Context cancellation is never treated as a
// connection failure.
func WrapError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if IsConnectionError(err) && !errors.Is(err, ErrBackendUnreachable) {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	return err
}
