package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/funnelhq/funnel360"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Record metrics
	ClientsCreatedTotal  metric.Int64Counter
	ProjectsCreatedTotal metric.Int64Counter
	RecordsDeletedTotal  metric.Int64Counter

	// Access metrics
	AccessDeniedTotal   metric.Int64Counter
	GuardRedirectsTotal metric.Int64Counter
	SessionsIssuedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ClientsCreatedTotal, _ = meter.Int64Counter(
		"funnel.clients.created.total",
		metric.WithDescription("Total number of clients created"),
		metric.WithUnit("{client}"),
	)

	m.ProjectsCreatedTotal, _ = meter.Int64Counter(
		"funnel.projects.created.total",
		metric.WithDescription("Total number of projects created"),
		metric.WithUnit("{project}"),
	)

	m.RecordsDeletedTotal, _ = meter.Int64Counter(
		"funnel.records.deleted.total",
		metric.WithDescription("Total number of clients and projects deleted"),
		metric.WithUnit("{record}"),
	)

	m.AccessDeniedTotal, _ = meter.Int64Counter(
		"funnel.access.denied.total",
		metric.WithDescription("Total number of requests rejected by the authorization policy"),
		metric.WithUnit("{request}"),
	)

	m.GuardRedirectsTotal, _ = meter.Int64Counter(
		"funnel.guard.redirects.total",
		metric.WithDescription("Total number of page navigations redirected by the route guard"),
		metric.WithUnit("{redirect}"),
	)

	m.SessionsIssuedTotal, _ = meter.Int64Counter(
		"funnel.sessions.issued.total",
		metric.WithDescription("Total number of sign-in sessions issued"),
		metric.WithUnit("{session}"),
	)

	return m
}

// RecordDenied counts an authorization failure by its kind.
func (m *Metrics) RecordDenied(ctx context.Context, kind string) {
	m.AccessDeniedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDeleted counts a deleted record by resource type.
func (m *Metrics) RecordDeleted(ctx context.Context, resource string) {
	m.RecordsDeletedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", resource)))
}

// RecordRedirect counts a guard redirect by target.
func (m *Metrics) RecordRedirect(ctx context.Context, target string) {
	m.GuardRedirectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}
