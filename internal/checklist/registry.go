package checklist

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"reportline/internal/domain"
)

// RequestFinder resolves request ids. catalog.Store satisfies it.
type RequestFinder interface {
	FindByID(ctx context.Context, id string) (domain.Request, error)
}

// Registry hands out one Session per request id for the life of the process.
type Registry struct {
	finder   RequestFinder
	opts     []Option
	logger   *zap.Logger
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds sessions lazily with opts applied to each.
func NewRegistry(finder RequestFinder, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		finder:   finder,
		opts:     append([]Option{WithLogger(logger)}, opts...),
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for requestID, creating it on first use.
// Lookup errors from the finder are returned unchanged.
func (r *Registry) Session(ctx context.Context, requestID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[requestID]; ok {
		return s, nil
	}
	req, err := r.finder.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s, err := Initialize(req, r.opts...)
	if err != nil {
		return nil, err
	}
	r.sessions[requestID] = s
	r.logger.Info("checklist session opened", zap.String("request_id", requestID))
	return s, nil
}
