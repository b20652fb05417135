package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务指标，import 时注册到默认 registry
var (
	BlocksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "si_blocks_processed_total",
		Help: "Blocks applied to the game state",
	}, []string{"mode"}) // replay / live

	Transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "si_redistribution_transactions_total",
		Help: "Redistribution transactions seen",
	}, []string{"function", "status"})

	DepthConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "si_reveal_depth_conflicts_total",
		Help: "Reveals dropped because the hash was already seen at another depth",
	})

	BlockGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "si_block_gaps_total",
		Help: "Gaps detected in the live block feed",
	})

	Claims = promauto.NewCounter(prometheus.CounterOpts{
		Name: "si_claims_total",
		Help: "Claims recorded",
	})

	ClaimAmountBZZ = promauto.NewCounter(prometheus.CounterOpts{
		Name: "si_claim_amount_bzz_total",
		Help: "Total BZZ credited to winners",
	})

	CurrentRound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "si_current_round",
		Help: "Current round number",
	})

	SyncState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "si_sync_state",
		Help: "Synchronizer state (0 cold, 1 init, 2 warmup, 3 running)",
	})

	Players = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "si_players",
		Help: "Known players",
	})

	Rounds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "si_rounds",
		Help: "Tracked rounds",
	})

	TipLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "si_tip_lag_blocks",
		Help: "Blocks between chain tip and last processed block",
	})

	BlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "si_block_processing_seconds",
		Help:    "Time spent handling one block",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
)
