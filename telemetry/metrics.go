// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	RoomsCreated    prometheus.Counter
	RoomsDeleted    prometheus.Counter
	RoomsReused     prometheus.Counter
	CreateFailures  prometheus.Counter
	DeleteFailures  prometheus.Counter
	MoveFailures    prometheus.Counter
	StaleMappings   prometheus.Counter
	ReconcilePasses prometheus.Counter

	// Histograms (seconds)
	EventHandleDuration prometheus.Observer

	// Gauges
	ActiveRoomsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_rooms_created_total", Help: "Number of voice rooms created"})
		RoomsDeleted = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_rooms_deleted_total", Help: "Number of voice rooms deleted after emptying"})
		RoomsReused = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_rooms_reused_total", Help: "Number of trigger joins routed to an already owned room"})
		CreateFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_create_failures_total", Help: "Number of failed channel create calls"})
		DeleteFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_delete_failures_total", Help: "Number of failed channel delete calls"})
		MoveFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_move_failures_total", Help: "Number of failed member move calls"})
		StaleMappings = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_stale_mappings_total", Help: "Number of mappings pruned because the channel was gone"})
		ReconcilePasses = promauto.NewCounter(prometheus.CounterOpts{Name: "room_tender_reconcile_passes_total", Help: "Number of reconciliation sweeps"})
		EventHandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "room_tender_event_handle_duration_seconds", Help: "Voice event handling duration seconds", Buckets: prometheus.DefBuckets})
		ActiveRoomsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "room_tender_active_rooms", Help: "Current number of tracked rooms"})
	})
}

// SetActiveRooms records the current number of tracked rooms.
func SetActiveRooms(n int) {
	if ActiveRoomsGauge != nil {
		ActiveRoomsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
