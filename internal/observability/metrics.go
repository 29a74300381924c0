package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for LendLedger.
type Metrics struct {
	// --- Engine ---
	EngineOpsApplied  *prometheus.CounterVec
	EngineOpsRejected *prometheus.CounterVec
	EngineOpDuration  *prometheus.HistogramVec
	EngineJournals    *prometheus.CounterVec
	EngineSequence    prometheus.Gauge
	EnginePaused      prometheus.Gauge

	// --- Pool & risk ---
	PoolTotalFunds      prometheus.Gauge
	PoolOutstanding     prometheus.Gauge
	PoolUtilizationBps  prometheus.Gauge
	RiskMultiplier      prometheus.Gauge
	RepaymentRatioBps   prometheus.Gauge
	LoansActive         prometheus.Gauge
	LiquidationsOpen    prometheus.Gauge
	LiquidationsStarted prometheus.Counter
	LiquidationsDone    *prometheus.CounterVec

	// --- Oracle ---
	OracleLookups        *prometheus.CounterVec
	OracleStaleRejects   *prometheus.CounterVec
	OracleValuationSkips *prometheus.CounterVec

	// --- Channels & backpressure ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PublishDrops       prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge

	// --- Publishing ---
	EventsPublished *prometheus.CounterVec
	PublishErrors   *prometheus.CounterVec
	RewardGrants    *prometheus.CounterVec

	// --- HTTP API ---
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		EngineOpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_engine_ops_applied_total",
			Help: "Operations successfully applied by the engine",
		}, []string{"op"}),

		EngineOpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_engine_ops_rejected_total",
			Help: "Operations rejected (validation, state, authorization)",
		}, []string{"op", "reason"}),

		EngineOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lend_engine_op_duration_seconds",
			Help:    "Time to apply a single operation",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		EngineJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_engine_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_engine_sequence",
			Help: "Current global sequence number",
		}),

		EnginePaused: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_engine_paused",
			Help: "1 while the emergency pause is active",
		}),

		PoolTotalFunds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_pool_total_funds",
			Help: "Pool liquidity reserve (base currency, fixed-point)",
		}),

		PoolOutstanding: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_pool_outstanding_principal",
			Help: "Outstanding principal across active loans",
		}),

		PoolUtilizationBps: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_pool_utilization_bps",
			Help: "Pool utilization in basis points",
		}),

		RiskMultiplier: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_risk_multiplier",
			Help: "Global risk multiplier (10000 = 1.0x)",
		}),

		RepaymentRatioBps: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_repayment_ratio_bps",
			Help: "Historical repaid/borrowed ratio in basis points",
		}),

		LoansActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_loans_active",
			Help: "Active loan count",
		}),

		LiquidationsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_liquidations_open",
			Help: "Open liquidation windows",
		}),

		LiquidationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_liquidations_started_total",
			Help: "Liquidation windows opened",
		}),

		LiquidationsDone: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_liquidations_closed_total",
			Help: "Liquidation windows closed",
		}, []string{"outcome"}),

		OracleLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_oracle_lookups_total",
			Help: "Price lookups by outcome",
		}, []string{"asset", "outcome"}),

		OracleStaleRejects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_oracle_stale_rejects_total",
			Help: "Readings rejected for staleness or round regression",
		}, []string{"asset"}),

		OracleValuationSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_oracle_valuation_skips_total",
			Help: "Assets skipped during collateral valuation",
		}, []string{"asset"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lend_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lend_persist_batch_size",
			Help:    "Events per write batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lend_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lend_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lend_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lend_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_events_published_total",
			Help: "Events published to NATS",
		}, []string{"event_type"}),

		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_publish_errors_total",
			Help: "NATS publish errors",
		}, []string{"subject"}),

		RewardGrants: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_reward_grants_total",
			Help: "Best-effort reward grant publishes",
		}, []string{"outcome"}),

		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lend_api_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "status"}),

		APIDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lend_api_duration_seconds",
			Help:    "HTTP API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
