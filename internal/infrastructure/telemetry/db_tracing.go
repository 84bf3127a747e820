package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables in spans
	SlowQueryThresh time.Duration
	DBName          string
	TracerProvider  trace.TracerProvider // nil uses the global provider
}

// DBTracingPlugin wraps otelgorm and marks slow or failed statements on the span.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBName == "" {
		cfg.DBName = "inventory"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs otelgorm and the slow query callbacks on db.
// It is a no-op when tracing is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	// the annotations must land before otelgorm ends the statement span
	if err := registerAroundCallbacks(db, "otel_slow_query", "otel:after:", markStart, p.afterStatement); err != nil {
		return err
	}

	p.logger.Info("database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) afterStatement(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
	if elapsed, ok := sinceStart(ctx); ok && elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}

type contextKey string

const queryStartTimeKey contextKey = "telemetry_query_start_time"

func markStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartTimeKey, time.Now())
}

func sinceStart(ctx context.Context) (time.Duration, bool) {
	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

// registerAroundCallbacks registers before and after hooks for every gorm
// processor under the given name prefix. When endBefore is set the after
// hooks run ahead of the callbacks named endBefore+<operation>, using the
// operation names otelgorm registers its hooks under.
func registerAroundCallbacks(db *gorm.DB, prefix, endBefore string, before, after func(*gorm.DB)) error {
	cb := db.Callback()
	steps := []struct {
		name   string
		op     string
		before func(string) error
		after  func(string, string) error
	}{
		{"create", "create",
			func(n string) error { return cb.Create().Before("gorm:create").Register(n, before) },
			func(n, b string) error { return cb.Create().After("gorm:create").Before(b).Register(n, after) }},
		{"query", "select",
			func(n string) error { return cb.Query().Before("gorm:query").Register(n, before) },
			func(n, b string) error { return cb.Query().After("gorm:query").Before(b).Register(n, after) }},
		{"update", "update",
			func(n string) error { return cb.Update().Before("gorm:update").Register(n, before) },
			func(n, b string) error { return cb.Update().After("gorm:update").Before(b).Register(n, after) }},
		{"delete", "delete",
			func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, before) },
			func(n, b string) error { return cb.Delete().After("gorm:delete").Before(b).Register(n, after) }},
		{"row", "row",
			func(n string) error { return cb.Row().Before("gorm:row").Register(n, before) },
			func(n, b string) error { return cb.Row().After("gorm:row").Before(b).Register(n, after) }},
		{"raw", "raw",
			func(n string) error { return cb.Raw().Before("gorm:raw").Register(n, before) },
			func(n, b string) error { return cb.Raw().After("gorm:raw").Before(b).Register(n, after) }},
	}
	for _, s := range steps {
		if err := s.before(prefix + ":before_" + s.name); err != nil {
			return err
		}
		var b string
		if endBefore != "" {
			b = endBefore + s.op
		}
		if err := s.after(prefix+":after_"+s.name, b); err != nil {
			return err
		}
	}
	return nil
}
