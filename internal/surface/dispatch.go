package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/duskfolk/duskfolk/internal/observe"
)

// Handler executes one operation. The request is the kind's payload struct;
// the response is whatever the owning service returns for it.
type Handler func(ctx context.Context, req any) (any, error)

// Typed adapts a strongly typed handler to the registry signature. A request
// of the wrong type is an InvalidArgument, not a panic.
func Typed[Req, Resp any](fn func(ctx context.Context, req Req) (Resp, error)) Handler {
	return func(ctx context.Context, raw any) (any, error) {
		req, ok := raw.(Req)
		if !ok {
			return nil, fmt.Errorf("%w: request is %T, want %T", ErrInvalidArgument, raw, req)
		}
		return fn(ctx, req)
	}
}

// Dispatcher routes operations to registered handlers and stamps every
// failure with its taxonomy code.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher returns an empty registry.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[Kind]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds a handler to a kind. Registering the same kind twice is a
// wiring bug and fails loudly.
func (d *Dispatcher) Register(kind Kind, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[kind]; ok {
		return fmt.Errorf("surface: handler for %q already registered", kind)
	}
	d.handlers[kind] = h
	return nil
}

// Kinds returns every registered operation, sorted.
func (d *Dispatcher) Kinds() []Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Kind, 0, len(d.handlers))
	for k := range d.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs one operation. Every error that comes back carries the
// operation name and its taxonomy code; an unregistered kind is an
// InvalidArgument.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, req any) (any, error) {
	ctx, span := observe.StartSpan(ctx, "surface."+string(kind))
	defer span.End()

	d.mu.RLock()
	h, ok := d.handlers[kind]
	d.mu.RUnlock()
	if !ok {
		return nil, E(kind, fmt.Errorf("%w: unknown operation %q", ErrInvalidArgument, kind))
	}

	resp, err := h(ctx, req)
	if err != nil {
		err = E(kind, err)
		d.logger.Debug("operation failed",
			slog.String("kind", string(kind)),
			slog.String("code", string(CodeOf(err))),
			slog.Any("error", err))
		return nil, err
	}
	return resp, nil
}
