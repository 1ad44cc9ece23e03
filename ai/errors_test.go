package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsConnectionError(t *testing.T) {
	refused := &url.Error{
		Op:  "Post",
		URL: "http://localhost:11434/api/chat",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
	}

	assert.True(t, IsConnectionError(refused))
	assert.True(t, IsConnectionError(fmt.Errorf("generate: %w", refused)))
	assert.True(t, IsConnectionError(&net.DNSError{Err: "no such host", Name: "ollama"}))
	assert.True(t, IsConnectionError(ErrBackendUnreachable))

	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(errors.New("model not found")))
	assert.False(t, IsConnectionError(context.Canceled))
}

func TestWrapError(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

	err := WrapError(refused)
	assert.ErrorIs(t, err, ErrBackendUnreachable)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)

	plain := errors.New("bad request")
	assert.Same(t, plain, WrapError(plain))
	assert.NoError(t, WrapError(nil))
	assert.Equal(t, context.Canceled, WrapError(context.Canceled))
}
