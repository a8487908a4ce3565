package consolida

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Option configures an Agent at construction time.
type Option func(*resolvedOptions)

type resolvedOptions struct {
	logger       *slog.Logger
	embedTimeout time.Duration
	totalTimeout time.Duration
	maxWorkers   int
	meter        metric.Meter
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithEmbedTimeout overrides the embedding timeout passed to the internal
// agent (default Config.EmbeddingTimeout). The agent stores the value but
// puts no deadline on individual embedding calls; they run under the
// whole-consolidation timeout.
func WithEmbedTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.embedTimeout = d }
}

// WithConsolidationTimeout overrides the whole-call timeout (default 5m,
// spec.md §5).
func WithConsolidationTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.totalTimeout = d }
}

// WithMaxWorkers overrides the cross-interview worker cap (default 4,
// spec.md §5).
func WithMaxWorkers(n int) Option {
	return func(o *resolvedOptions) { o.maxWorkers = n }
}

// WithMeter mirrors MetricsRegistry counters onto an OpenTelemetry Meter
// (e.g. one obtained from internal/telemetry.Meter). Defaults to nil, in
// which case no OTEL mirroring happens.
func WithMeter(meter metric.Meter) Option {
	return func(o *resolvedOptions) { o.meter = meter }
}
