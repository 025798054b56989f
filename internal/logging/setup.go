// Package logging builds the process-wide slog logger and OpenTelemetry providers.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"bluticconsent/internal/config"
	"bluticconsent/internal/logsink"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const ServiceName = "bluticconsent"

// Providers owns whatever Setup started.
type Providers struct {
	closers []func(context.Context) error
	sink    *logsink.Handler
}

// Shutdown flushes and closes in reverse start order.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// Ready checks the log sink, when there is one.
func (p *Providers) Ready(ctx context.Context) error {
	if p.sink == nil {
		return nil
	}
	return p.sink.Ready(ctx)
}

// Setup installs the default slog logger. Records always go to out as JSON; the OTLP bridge
// and the Azure log sink are added when configured.
func Setup(ctx context.Context, cfg *config.Config, out io.Writer) (*Providers, error) {
	p := &Providers{}
	handlers := []slog.Handler{slog.NewJSONHandler(out, nil)}

	if cfg.OTLP.Enabled() {
		res := resource.NewSchemaless(attribute.String("service.name", ServiceName))

		logExporter, err := otlploghttp.New(ctx)
		if err != nil {
			return p, fmt.Errorf("otlp log exporter: %w", err)
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		)
		global.SetLoggerProvider(lp)
		p.closers = append(p.closers, lp.Shutdown)
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(lp)))

		traceExporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return p, fmt.Errorf("otlp trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExporter),
		)
		otel.SetTracerProvider(tp)
		p.closers = append(p.closers, tp.Shutdown)
	}

	if cfg.Logsink.Enabled() {
		sink, err := logsink.New(ctx, cfg.Logsink)
		if err != nil {
			return p, fmt.Errorf("log sink: %w", err)
		}
		p.sink = sink
		handlers = append(handlers, sink)
		p.closers = append(p.closers, func(context.Context) error { return sink.Close() })
	}

	slog.SetDefault(slog.New(slog.NewMultiHandler(handlers...)))
	return p, nil
}
