package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type pantryItem struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&pantryItem{}))
	return db
}

func setupTracedDB(t *testing.T, cfg DBTracingConfig) (*gorm.DB, *sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg.Enabled = true
	cfg.TracerProvider = tp
	db := setupTestDB(t)
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))
	return db, tp, sr
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, NewDBTracingPlugin(DBTracingConfig{}, nil).Register(db))
	assert.Nil(t, db.Callback().Query().Get("otel_slow_query:after_query"))
}

func TestDBTracingPlugin_RecordsStatementSpans(t *testing.T) {
	db, tp, sr := setupTracedDB(t, DBTracingConfig{})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "request")
	tx := db.WithContext(ctx)
	require.NoError(t, tx.Create(&pantryItem{Name: "flour"}).Error)
	var found pantryItem
	require.NoError(t, tx.First(&found, "name = ?", "flour").Error)
	parent.End()

	var tables []string
	for _, s := range sr.Ended() {
		if s.Name() == "request" {
			continue
		}
		assert.Equal(t, parent.SpanContext().TraceID(), s.SpanContext().TraceID())
		for _, kv := range s.Attributes() {
			if kv.Key == "db.sql.table" {
				tables = append(tables, kv.Value.AsString())
			}
		}
	}
	assert.Contains(t, tables, "pantry_items")
}

func TestDBTracingPlugin_MarksErrors(t *testing.T) {
	db, _, sr := setupTracedDB(t, DBTracingConfig{})

	err := db.WithContext(context.Background()).Exec("SELECT * FROM missing_table").Error
	require.Error(t, err)

	var failed bool
	for _, s := range sr.Ended() {
		if s.Status().Code == codes.Error {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestDBTracingPlugin_NotFoundIsNotAnError(t *testing.T) {
	db, _, sr := setupTracedDB(t, DBTracingConfig{})

	var p pantryItem
	err := db.WithContext(context.Background()).First(&p, "name = ?", "none").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	for _, s := range sr.Ended() {
		assert.NotEqual(t, codes.Error, s.Status().Code, s.Name())
	}
}

func TestDBTracingPlugin_SlowQuery(t *testing.T) {
	db, _, sr := setupTracedDB(t, DBTracingConfig{SlowQueryThresh: time.Nanosecond})

	require.NoError(t, db.WithContext(context.Background()).Create(&pantryItem{Name: "salt"}).Error)

	var slow bool
	for _, s := range sr.Ended() {
		for _, e := range s.Events() {
			if e.Name == "slow_query_warning" {
				slow = true
			}
		}
	}
	assert.True(t, slow)
}

func TestDBTracingPlugin_AnnotatesEveryStatementSpan(t *testing.T) {
	db, tp, sr := setupTracedDB(t, DBTracingConfig{SlowQueryThresh: time.Nanosecond})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "request")
	tx := db.WithContext(ctx)
	p := pantryItem{Name: "yeast"}
	require.NoError(t, tx.Create(&p).Error)
	require.NoError(t, tx.First(&pantryItem{}, p.ID).Error)
	require.NoError(t, tx.Model(&p).Update("name", "dry yeast").Error)
	var n int
	require.NoError(t, tx.Raw("SELECT count(*) FROM pantry_items").Row().Scan(&n))
	require.NoError(t, tx.Exec("UPDATE pantry_items SET name = ?", "fresh yeast").Error)
	require.NoError(t, tx.Delete(&p).Error)
	parent.End()

	var statements int
	for _, s := range sr.Ended() {
		if s.Name() == "request" {
			continue
		}
		statements++
		var slow bool
		for _, kv := range s.Attributes() {
			if kv.Key == "db.slow_query" {
				slow = kv.Value.AsBool()
			}
		}
		assert.True(t, slow, "span %s ended before it was annotated", s.Name())
	}
	assert.GreaterOrEqual(t, statements, 6)
}

func TestDBTracingPlugin_DoubleRegistration(t *testing.T) {
	db, _, _ := setupTracedDB(t, DBTracingConfig{})
	err := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil).Register(db)
	assert.Error(t, err)
}
