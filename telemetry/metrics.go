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
	CommandsDispatched  *prometheus.CounterVec
	UnknownCommands     prometheus.Counter
	MessagesLogged      prometheus.Counter
	LogWriteFailures    prometheus.Counter
	PollTicks           prometheus.Counter
	PollFailures        prometheus.Counter
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter

	// Histograms (seconds)
	PollDuration    prometheus.Observer
	CommandDuration prometheus.Observer

	// Gauges
	LiveStreamers prometheus.Gauge
	PowerGauge    prometheus.Gauge // 1=on,0=off
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "kawbot_commands_dispatched_total", Help: "Commands dispatched by name"}, []string{"command"})
		UnknownCommands = promauto.NewCounter(prometheus.CounterOpts{Name: "kawbot_unknown_commands_total", Help: "Commands that matched no handler"})
		MessagesLogged = promauto.NewCounter(prometheus.CounterOpts{Name: "kawbot_messages_logged_total", Help: "Chat messages appended to the history log"})
		LogWriteFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "kawbot_log_write_failures_total", Help: "History appends that failed"})
		PollTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "kawbot_poll_ticks_total", Help: "Live-status poll ticks"})
		PollFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "kawbot_poll_failures_total", Help: "Live-status poll ticks skipped because the source failed"})
		NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "kawbot_notifications_sent_total", Help: "Newly-live notifications delivered"})
		NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "kawbot_notifications_failed_total", Help: "Newly-live notifications that failed to deliver"})
		PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "kawbot_poll_duration_seconds", Help: "Live-status fetch duration seconds", Buckets: prometheus.DefBuckets})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "kawbot_command_duration_seconds", Help: "Command handler duration seconds", Buckets: prometheus.DefBuckets})
		LiveStreamers = promauto.NewGauge(prometheus.GaugeOpts{Name: "kawbot_live_streamers", Help: "Streamers live as of the last successful poll"})
		PowerGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "kawbot_power", Help: "Bot power on=1 off=0"})
	})
}

// IncCommand counts a dispatched command.
func IncCommand(name string) {
	if CommandsDispatched != nil {
		CommandsDispatched.WithLabelValues(name).Inc()
	}
}

// Inc increments c if it has been registered.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetLiveStreamers records the size of the live snapshot.
func SetLiveStreamers(n int) {
	if LiveStreamers != nil {
		LiveStreamers.Set(float64(n))
	}
}

// UpdatePowerGauge sets gauge to 1 if on else 0.
func UpdatePowerGauge(on bool) {
	if PowerGauge == nil {
		return
	}
	if on {
		PowerGauge.Set(1)
	} else {
		PowerGauge.Set(0)
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

// WithCorrelation returns a new context embedding correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
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
