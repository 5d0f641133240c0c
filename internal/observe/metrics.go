package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/zhouzirui/z-shelter/backend"

// Metrics 服务使用的全部指标
type Metrics struct {
	HTTPRequestDuration metric.Float64Histogram
	GatewayDuration     metric.Float64Histogram
	GatewayErrors       metric.Int64Counter
	Turns               metric.Int64Counter
	DatasetLoads        metric.Int64Counter
}

// NewMetrics registers instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.HTTPRequestDuration, err = meter.Float64Histogram("shelter_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	m.GatewayDuration, err = meter.Float64Histogram("shelter_gateway_duration_seconds",
		metric.WithDescription("Latency of transcription, generation and synthesis calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	m.GatewayErrors, err = meter.Int64Counter("shelter_gateway_errors_total",
		metric.WithDescription("Failed external service calls"),
	)
	if err != nil {
		return nil, err
	}

	m.Turns, err = meter.Int64Counter("shelter_turns_total",
		metric.WithDescription("Completed conversation turns by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.DatasetLoads, err = meter.Int64Counter("shelter_dataset_loads_total",
		metric.WithDescription("Dataset load attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NopMetrics 指标关闭时使用
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// ObserveGateway 记录一次外部调用的耗时与结果
func (m *Metrics) ObserveGateway(ctx context.Context, gateway string, started time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("gateway", gateway))
	m.GatewayDuration.Record(ctx, time.Since(started).Seconds(), attrs)
	if err != nil {
		m.GatewayErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordDatasetLoad(ctx context.Context, result string) {
	m.DatasetLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
