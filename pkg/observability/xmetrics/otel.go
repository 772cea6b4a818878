package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xadmin/pkg/context/xctx"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xadmin/xmetrics"

	// MetricOperationTotal 操作计数指标名。
	MetricOperationTotal = "xadmin.operation.total"
	// MetricOperationDuration 操作耗时指标名（秒）。
	MetricOperationDuration = "xadmin.operation.duration"
)

type otelConfig struct {
	name           string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option OTel Observer 选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(c *otelConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，默认全局。
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(c *otelConfig) {
		if p != nil {
			c.tracerProvider = p
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认全局。
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(c *otelConfig) {
		if p != nil {
			c.meterProvider = p
		}
	}
}

// NewOTelObserver 创建基于 OpenTelemetry 的 Observer。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		name:           defaultInstrumentationName,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.name)
	total, err := meter.Int64Counter(MetricOperationTotal,
		metric.WithDescription("total operations"), metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create counter: %w", err)
	}
	duration, err := meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("operation duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create histogram: %w", err)
	}

	return &otelObserver{
		tracer:   cfg.tracerProvider.Tracer(cfg.name),
		total:    total,
		duration: duration,
	}, nil
}

type otelObserver struct {
	tracer   trace.Tracer
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	component := orUnknown(opts.Component)
	operation := orUnknown(opts.Operation)

	attrs := append([]attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("operation", operation),
	}, toOTel(opts.Attrs)...)
	if rid := xctx.RequestID(ctx); rid != "" {
		attrs = append(attrs, attribute.String(xctx.KeyRequestID, rid))
	}

	ctx, span := o.tracer.Start(ctx, component+"."+operation,
		trace.WithSpanKind(spanKind(opts.Kind)),
		trace.WithAttributes(attrs...),
	)
	// 让日志能拿到 trace_id
	if sc := span.SpanContext(); sc.IsValid() {
		if next, err := xctx.WithTraceID(ctx, sc.TraceID().String()); err == nil {
			ctx = next
		}
		if next, err := xctx.WithSpanID(ctx, sc.SpanID().String()); err == nil {
			ctx = next
		}
	}

	return ctx, &otelSpan{
		span:      span,
		observer:  o,
		ctx:       ctx,
		component: component,
		operation: operation,
		start:     time.Now(),
	}
}

type otelSpan struct {
	span      trace.Span
	observer  *otelObserver
	ctx       context.Context
	component string
	operation string
	start     time.Time
	once      sync.Once
}

// End 幂等，重复调用只记录一次。
func (s *otelSpan) End(result Result) {
	s.once.Do(func() {
		status := result.status()
		if result.Err != nil {
			s.span.RecordError(result.Err)
		}
		if status == StatusError {
			msg := "operation failed"
			if result.Err != nil {
				msg = result.Err.Error()
			}
			s.span.SetStatus(codes.Error, msg)
		} else {
			s.span.SetStatus(codes.Ok, "")
		}
		if len(result.Attrs) > 0 {
			s.span.SetAttributes(toOTel(result.Attrs)...)
		}
		s.span.End()

		// 请求已取消时指标仍需记录
		ctx := context.WithoutCancel(s.ctx)
		attrs := metric.WithAttributes(
			attribute.String("component", s.component),
			attribute.String("operation", s.operation),
			attribute.String("status", string(status)),
		)
		s.observer.total.Add(ctx, 1, attrs)
		s.observer.duration.Record(ctx, time.Since(s.start).Seconds(), attrs)
	})
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func spanKind(k Kind) trace.SpanKind {
	switch k {
	case KindClient:
		return trace.SpanKindClient
	case KindServer:
		return trace.SpanKindServer
	default:
		return trace.SpanKindInternal
	}
}

func toOTel(attrs []Attr) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.Key == "" || a.Value == nil {
			continue
		}
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		case int:
			out = append(out, attribute.Int(a.Key, v))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case float64:
			out = append(out, attribute.Float64(a.Key, v))
		case time.Duration:
			out = append(out, attribute.Int64(a.Key, v.Nanoseconds()))
		default:
			out = append(out, attribute.String(a.Key, fmt.Sprint(v)))
		}
	}
	return out
}
