package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsOnce sync.Once
	configLoadCounter metric.Int64Counter
)

// recordConfigValidationEvent counts config loads by outcome. The global
// meter provider may still be the no-op one at this point in startup; the
// counter then silently drops.
func recordConfigValidationEvent(ctx context.Context, profile, outcome, errorClass string) {
	configMetricsOnce.Do(func() {
		counter, err := otel.Meter("identity-service/config").Int64Counter(
			"config.load.events",
			metric.WithDescription("configuration load attempts by outcome"),
		)
		if err == nil {
			configLoadCounter = counter
		}
	})
	if configLoadCounter == nil {
		return
	}
	configLoadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "validate config:") && strings.Contains(msg, "is required"):
		return "missing_required"
	case strings.Contains(msg, "validate config:"):
		return "validation"
	case strings.HasPrefix(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
