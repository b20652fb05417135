package service

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"si-monitor/internal/game"
	"si-monitor/internal/service/observer"
	"si-monitor/pkg/logger"
	"si-monitor/pkg/monitor"
)

// GameStats 游戏状态快照
type GameStats interface {
	Snapshot() game.Snapshot
}

// SyncStats 同步进度
type SyncStats interface {
	Stats() observer.Stats
}

type CronService struct {
	cron  *cron.Cron
	game  GameStats
	sync  SyncStats
	relay *RelayService
}

// NewCronService relay 为空时不注册锁续期任务
func NewCronService(g GameStats, sync SyncStats, relay *RelayService) *CronService {
	return &CronService{
		cron:  cron.New(),
		game:  g,
		sync:  sync,
		relay: relay,
	}
}

func (s *CronService) Start() {
	_, _ = s.cron.AddFunc("@every 1m", s.Summary)
	if s.relay != nil {
		_, _ = s.cron.AddFunc("@every 10s", func() {
			s.relay.RefreshLock(context.Background())
		})
	}

	s.cron.Start()
	logger.Info("Cron Service started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop 等待正在执行的任务结束
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// Summary 输出一行汇总并刷新 gauge
func (s *CronService) Summary() {
	snap := s.game.Snapshot()
	stats := s.sync.Stats()

	monitor.Players.Set(float64(snap.Players))
	monitor.Rounds.Set(float64(snap.Rounds))
	monitor.CurrentRound.Set(float64(snap.CurrentRound))

	fields := []zap.Field{
		zap.String("state", stats.State),
		zap.Uint64("round", snap.CurrentRound),
		zap.Uint64("last_block", stats.LastBlock),
		zap.Uint64("tip", stats.Tip),
		zap.Int("players", snap.Players),
		zap.Int("rounds", snap.Rounds),
		zap.Uint8("depth", snap.RunningDepth),
		zap.Int64("failed_txs", stats.FailedTransactions),
	}
	if s.relay != nil {
		rs := s.relay.Stats()
		fields = append(fields,
			zap.Bool("publisher", rs.Leader),
			zap.Int64("published", rs.Published),
			zap.Int64("dropped", rs.Dropped))
	}
	logger.Info("summary", fields...)
}
