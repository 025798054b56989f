package inject

import (
	"context"
	"log/slog"
	"sync"

	"bluticconsent/internal/consent"
)

// MessageQueue receives the diagnostics produced for each render.
type MessageQueue interface {
	Enqueue(ctx context.Context, d consent.Diagnostic)
}

// SlogQueue writes diagnostics to the default slog logger.
type SlogQueue struct{}

func (SlogQueue) Enqueue(ctx context.Context, d consent.Diagnostic) {
	attrs := []any{"severity", d.Severity.String()}
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if d.Kind != nil {
		attrs = append(attrs, "kind", d.Kind.Error())
	}
	if d.Severity == consent.SeverityError {
		slog.ErrorContext(ctx, d.String(), attrs...)
		return
	}
	slog.InfoContext(ctx, d.String(), attrs...)
}

// Recorder keeps every diagnostic it is handed.
type Recorder struct {
	mu    sync.Mutex
	diags []consent.Diagnostic
}

func (r *Recorder) Enqueue(_ context.Context, d consent.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

func (r *Recorder) Diagnostics() []consent.Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]consent.Diagnostic(nil), r.diags...)
}

// Queues fans a diagnostic out to several queues.
type Queues []MessageQueue

func (q Queues) Enqueue(ctx context.Context, d consent.Diagnostic) {
	for _, mq := range q {
		mq.Enqueue(ctx, d)
	}
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
