package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drugorders/identity-service/internal/observability"
)

// ScriptExecutor runs the check-then-write programs against the store. It is
// stateless apart from the client and safe for concurrent use.
type ScriptExecutor struct {
	client redis.UniversalClient
	tracer trace.Tracer
}

func NewScriptExecutor(client redis.UniversalClient) *ScriptExecutor {
	return &ScriptExecutor{
		client: client,
		tracer: otel.Tracer("github.com/drugorders/identity-service/internal/store"),
	}
}

func (e *ScriptExecutor) Client() redis.UniversalClient { return e.client }

// Run executes s with EVALSHA, falling back to EVAL when the server has not
// cached it yet. A nil script reply is returned as redis.Nil.
func (e *ScriptExecutor) Run(ctx context.Context, s *Script, keys []string, args ...any) (any, error) {
	ctx, span := e.tracer.Start(ctx, "store.script "+s.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "EVALSHA"),
			attribute.String("store.script", s.Name),
		),
	)
	defer span.End()

	res, err := s.script.Run(ctx, e.client, keys, args...).Result()
	switch {
	case err == nil:
		observability.RecordScriptExecution(ctx, s.Name, "ok")
	case IsMiss(err):
		observability.RecordScriptExecution(ctx, s.Name, "miss")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "script failed")
		observability.RecordScriptExecution(ctx, s.Name, "error")
	}
	return res, Classify("script "+s.Name, err)
}

// Load caches every script on the server and runs the probe. Used at startup
// and by the store check command to fail fast when scripting is disabled.
func (e *ScriptExecutor) Load(ctx context.Context) error {
	for _, s := range AllScripts() {
		if err := s.script.Load(ctx, e.client).Err(); err != nil {
			return Classify("load script "+s.Name, err)
		}
	}
	res, err := e.Run(ctx, ScriptingProbe, nil)
	if err != nil {
		return err
	}
	if res != "OK" {
		return fmt.Errorf("scripting probe returned %v", res)
	}
	return nil
}
