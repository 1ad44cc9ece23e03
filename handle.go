package knowledgebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/knowledgebot/config"
)

// ErrServiceUnavailable is returned by a Handle whose service failed to
// initialize.
var ErrServiceUnavailable = errors.New("RAG service is not available or failed to initialize")

// Handle holds the process-wide Service, or the error that prevented it
// from starting. A process keeps running with an unavailable handle and
// reports the condition per request.
type Handle struct {
	svc *Service
	err error
}

// Open builds a Service and wraps the outcome. It never returns nil.
func Open(ctx context.Context, cfg *config.Config, opts ...ServiceOption) *Handle {
	svc, err := NewService(ctx, cfg, opts...)
	if err != nil {
		slog.Default().Error("failed to initialize service", "err", err)
		return Unavailable(err)
	}
	return Ready(svc)
}

// Ready wraps a running service.
func Ready(svc *Service) *Handle {
	return &Handle{svc: svc}
}

// Unavailable records why the service could not start.
func Unavailable(cause error) *Handle {
	if cause == nil {
		cause = errors.New("service not configured")
	}
	return &Handle{err: cause}
}

// Service returns the service, or ErrServiceUnavailable wrapping the
// startup failure.
func (h *Handle) Service() (*Service, error) {
	if h.svc == nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, h.err)
	}
	return h.svc, nil
}

// Err returns the startup failure, or nil when the service is ready.
func (h *Handle) Err() error {
	return h.err
}

// Close closes the service if there is one.
func (h *Handle) Close() error {
	if h.svc == nil {
		return nil
	}
	return h.svc.Close()
}
