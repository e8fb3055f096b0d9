package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/drugorders/identity-service/internal/config"
)

const meterName = "github.com/drugorders/identity-service"

type AppMetrics struct {
	registerCounter   metric.Int64Counter
	loginCounter      metric.Int64Counter
	logoutCounter     metric.Int64Counter
	resolveCounter    metric.Int64Counter
	repositoryCounter metric.Int64Counter
	scriptCounter     metric.Int64Counter
	revokedCounter    metric.Int64Counter
	rateLimitCounter  metric.Int64Counter
	requestDuration   metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	var mp *sdkmetric.MeterProvider
	if !cfg.OTELMetricsEnabled {
		mp = sdkmetric.NewMeterProvider()
		logger.Info("otel metrics disabled")
	} else {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
		if cfg.OTELExporterOTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		res, err := newResource(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create metric resource: %w", err)
		}
		reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	}
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var (
		m   AppMetrics
		err error
	)
	if m.registerCounter, err = meter.Int64Counter("auth.register.attempts"); err != nil {
		return nil, err
	}
	if m.loginCounter, err = meter.Int64Counter("auth.login.attempts"); err != nil {
		return nil, err
	}
	if m.logoutCounter, err = meter.Int64Counter("auth.logout.attempts"); err != nil {
		return nil, err
	}
	if m.resolveCounter, err = meter.Int64Counter("identity.resolve.outcomes"); err != nil {
		return nil, err
	}
	if m.repositoryCounter, err = meter.Int64Counter("repository.operations"); err != nil {
		return nil, err
	}
	if m.scriptCounter, err = meter.Int64Counter("store.script.executions"); err != nil {
		return nil, err
	}
	if m.revokedCounter, err = meter.Int64Counter("token.revocations"); err != nil {
		return nil, err
	}
	if m.rateLimitCounter, err = meter.Int64Counter("http.rate_limit.decisions"); err != nil {
		return nil, err
	}
	if m.requestDuration, err = meter.Float64Histogram("http.server.request.duration", metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return &m, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthRegister(ctx context.Context, outcome string) {
	if m := current(); m != nil {
		m.registerCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func RecordAuthLogin(ctx context.Context, outcome string) {
	if m := current(); m != nil {
		m.loginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func RecordAuthLogout(ctx context.Context, outcome string) {
	if m := current(); m != nil {
		m.logoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// RecordIdentityResolution counts resolver results by credential source
// (bearer, session, none) and outcome (resolved, rejected, anonymous, unavailable).
func RecordIdentityResolution(ctx context.Context, source, outcome string) {
	if m := current(); m != nil {
		m.resolveCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	if m := current(); m != nil {
		m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("repository", repo),
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordScriptExecution(ctx context.Context, script, outcome string) {
	if m := current(); m != nil {
		m.scriptCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("script", script),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordTokenRevocations(ctx context.Context, scope string, n int) {
	if n <= 0 {
		return
	}
	if m := current(); m != nil {
		m.revokedCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("scope", scope)))
	}
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	if m := current(); m != nil {
		m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordHTTPRequest(ctx context.Context, method, route string, status int, durationMS float64) {
	if m := current(); m != nil {
		m.requestDuration.Record(ctx, durationMS, metric.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		))
	}
}
