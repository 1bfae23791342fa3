package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *promclient.Registry
	collector     Collector

	// OTel meters and instruments
	meter               metric.Meter
	mappingsGauge       metric.Int64ObservableGauge
	activeClientsGauge  metric.Int64ObservableGauge
	registrationCounter metric.Int64Counter
	forwardCounter      metric.Int64Counter
	rejectionCounter    metric.Int64Counter
	forwardDuration     metric.Float64Histogram
}

var _ Recorder = (*OTelExporter)(nil)

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Create Prometheus exporter
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-proxy",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.mappingsGauge, err = oe.meter.Int64ObservableGauge(
		"proxy.mappings.count",
		metric.WithDescription("Number of registered proxy identifiers"),
		metric.WithUnit("{mappings}"),
		metric.WithInt64Callback(oe.observeMappings),
	)
	if err != nil {
		return fmt.Errorf("creating mappings gauge: %w", err)
	}

	// Active clients gauge (per limiter)
	oe.activeClientsGauge, err = oe.meter.Int64ObservableGauge(
		"ratelimit.clients.active",
		metric.WithDescription("Number of clients holding an open rate limit window"),
		metric.WithUnit("{clients}"),
		metric.WithInt64Callback(oe.observeActiveClients),
	)
	if err != nil {
		return fmt.Errorf("creating active clients gauge: %w", err)
	}

	oe.registrationCounter, err = oe.meter.Int64Counter(
		"proxy.registrations",
		metric.WithDescription("Registration requests by result"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating registration counter: %w", err)
	}

	oe.forwardCounter, err = oe.meter.Int64Counter(
		"proxy.forwards",
		metric.WithDescription("Forward requests by result"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating forward counter: %w", err)
	}

	oe.rejectionCounter, err = oe.meter.Int64Counter(
		"ratelimit.rejections",
		metric.WithDescription("Requests rejected by a rate limiter"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating rejection counter: %w", err)
	}

	oe.forwardDuration, err = oe.meter.Float64Histogram(
		"proxy.forward.duration",
		metric.WithDescription("Time spent resolving and relaying a payload"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating forward duration histogram: %w", err)
	}

	return nil
}

// observeMappings is a callback that reports the mapping count
func (oe *OTelExporter) observeMappings(ctx context.Context, observer metric.Int64Observer) error {
	n, err := oe.collector.GetMappingCount(ctx)
	if err != nil {
		return err
	}
	observer.Observe(n)
	return nil
}

// observeActiveClients is a callback that reports active clients per limiter
func (oe *OTelExporter) observeActiveClients(ctx context.Context, observer metric.Int64Observer) error {
	clients, err := oe.collector.GetActiveClients(ctx)
	if err != nil {
		return err
	}

	for name, n := range clients {
		observer.Observe(n, metric.WithAttributes(
			attribute.String("ratelimit.limiter", name),
		))
	}

	return nil
}

func (oe *OTelExporter) RecordRegistration(ctx context.Context, result string) {
	oe.registrationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (oe *OTelExporter) RecordForward(ctx context.Context, result string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	oe.forwardCounter.Add(ctx, 1, attrs)
	oe.forwardDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (oe *OTelExporter) RecordRateLimited(ctx context.Context, limiter string) {
	oe.rejectionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("ratelimit.limiter", limiter)))
}

// ServeHTTP serves Prometheus-formatted metrics from the exporter's registry
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
