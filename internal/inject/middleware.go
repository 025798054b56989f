// Package inject wires the consent banner into an http.Handler chain. Finished responses are
// buffered, the render context is read off the request and response, and HTML pages get the
// banner script added to their head.
package inject

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"bluticconsent/internal/consent"
	bhtml "bluticconsent/internal/html"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ParamsFunc returns the plugin configuration to use for a render.
type ParamsFunc func(ctx context.Context) consent.Config

type Options struct {
	Params        ParamsFunc
	Debug         bool
	AdminPrefixes []string
	Queue         MessageQueue
	Metrics       *Metrics
	Tracer        trace.Tracer
}

type Middleware struct {
	opts Options
	// renderPage replaces Document.Render in tests.
	renderPage func(*bhtml.Document, io.Writer) error
}

func New(opts Options) *Middleware {
	if opts.Params == nil {
		opts.Params = func(context.Context) consent.Config { return consent.DefaultConfig() }
	}
	if opts.Queue == nil {
		opts.Queue = SlogQueue{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("bluticconsent/internal/inject")
	}
	return &Middleware{opts: opts}
}

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := newResponseBuffer()
		next.ServeHTTP(buf, r)

		body := buf.Bytes()
		switch {
		case !bodyAllowed(buf.Status()):
			body = nil
		case r.Method != http.MethodHead && len(body) > 0:
			body = m.Render(r, buf.Header(), body)
		}

		for k, v := range buf.Header() {
			w.Header()[k] = v
		}
		if len(body) > 0 {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		}
		w.WriteHeader(buf.Status())
		if len(body) == 0 {
			return
		}
		if _, err := w.Write(body); err != nil {
			slog.ErrorContext(r.Context(), "failed to write response", "error", err)
		}
	})
}

// bodyAllowed reports whether a response with this status may carry a body.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// Render runs the consent hook for one finished response and returns the body to send.
// The original body comes back untouched whenever nothing was added or rewriting failed.
func (m *Middleware) Render(r *http.Request, header http.Header, body []byte) []byte {
	ctx := WithRequestID(r.Context(), uuid.NewString())
	ctx, span := m.opts.Tracer.Start(ctx, "consent.inject", trace.WithAttributes(
		attribute.String("request.id", RequestID(ctx)),
		attribute.String("http.path", r.URL.Path),
	))
	defer span.End()

	rc := RenderContextFor(r, header, body, m.opts.AdminPrefixes)
	cfg := m.opts.Params(ctx)
	span.SetAttributes(
		attribute.Bool("consent.frontend", rc.Frontend),
		attribute.String("consent.document_type", rc.DocumentType),
	)

	var doc *bhtml.Document
	var head consent.Head = discardHead{}
	if rc.DocumentType == consent.DocumentHTML {
		parsed, err := bhtml.Parse(bytes.NewReader(body))
		if err != nil {
			head = brokenHead{err: err}
		} else {
			doc = parsed
			head = doc
		}
	}

	diags := consent.Apply(cfg, rc, head)
	if doc == nil {
		m.report(ctx, span, diags)
		return body
	}

	out, err := m.rewrite(doc, diags, rc.DocumentType)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render rewritten page", "error", err, "path", r.URL.Path)
		span.RecordError(err)
		// nothing reaches the page, so a success must not be reported
		diags = consent.Failed(err)
		m.report(ctx, span, diags)
		return body
	}
	m.report(ctx, span, diags)
	if out == nil {
		return body
	}
	return out
}

// rewrite adds the console statements and serializes the document. It returns nil when
// the page was left unchanged.
func (m *Middleware) rewrite(doc *bhtml.Document, diags []consent.Diagnostic, documentType string) ([]byte, error) {
	for _, js := range consent.ConsoleStatements(diags, m.opts.Debug, documentType) {
		_ = doc.AddScriptDeclaration(js)
	}
	if !doc.Modified() {
		return nil, nil
	}
	var out bytes.Buffer
	if err := m.render(doc, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (m *Middleware) render(doc *bhtml.Document, w io.Writer) error {
	if m.renderPage != nil {
		return m.renderPage(doc, w)
	}
	return doc.Render(w)
}

func (m *Middleware) report(ctx context.Context, span trace.Span, diags []consent.Diagnostic) {
	for _, d := range diags {
		m.opts.Queue.Enqueue(ctx, d)
		m.opts.Metrics.observe(d)
		span.SetAttributes(attribute.String("consent.severity", d.Severity.String()))
		if d.Severity == consent.SeverityError {
			span.SetStatus(codes.Error, d.Message)
		}
	}
}

// discardHead stands in for non-HTML documents, where nothing is ever added.
type discardHead struct{}

func (discardHead) AddScript(string, map[string]string) error { return nil }
func (discardHead) AddScriptDeclaration(string) error        { return nil }

// brokenHead reports why an HTML page could not be parsed.
type brokenHead struct{ err error }

func (b brokenHead) AddScript(string, map[string]string) error { return b.err }
func (b brokenHead) AddScriptDeclaration(string) error        { return b.err }
