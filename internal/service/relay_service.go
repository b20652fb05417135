package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"si-monitor/internal/event"
	"si-monitor/internal/service/mq"
	"si-monitor/pkg/logger"
	"si-monitor/pkg/utils/lock"
)

const (
	publisherLockKey = "si-monitor:publisher"
	publisherLockTTL = 30 * time.Second
)

// RelayService 把引擎产出的事件搬运到 MQ
// 多实例部署时只有持有 publisher 锁的实例发送，其余实例丢弃
type RelayService struct {
	producer mq.Producer
	locker   lock.DistributedLock // nil 表示单实例，总是发送
	topic    string
	queue    chan event.Event
	log      *zap.Logger

	leader    atomic.Bool
	published atomic.Int64
	dropped   atomic.Int64

	// claimed 由先调用的 Start 或 Stop 置位，Stop 只在 Start 真正运行过时等待 done
	claimed  atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func NewRelayService(producer mq.Producer, locker lock.DistributedLock, topic string, buffer int) *RelayService {
	if buffer <= 0 {
		buffer = 1024
	}
	return &RelayService{
		producer: producer,
		locker:   locker,
		topic:    topic,
		queue:    make(chan event.Event, buffer),
		log:      logger.Named("relay"),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Publish 实现 game.Publisher，队列满时直接丢弃，不阻塞引擎
func (s *RelayService) Publish(e event.Event) {
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
		s.log.Debug("relay queue full, event dropped", zap.String("type", e.Type()), zap.String("key", e.Key()))
	}
}

// Start 阻塞运行直到 ctx 取消或 Stop 被调用
// Stop 触发的退出会先把队列里剩余的事件发出去
func (s *RelayService) Start(ctx context.Context) {
	if !s.claimed.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)

	s.log.Info("relay started", zap.String("topic", s.topic))
	s.RefreshLock(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logStopped()
			return
		case <-s.quit:
			s.flush(ctx)
			s.logStopped()
			return
		case e := <-s.queue:
			s.relay(ctx, e)
		}
	}
}

func (s *RelayService) flush(ctx context.Context) {
	for {
		select {
		case e := <-s.queue:
			s.relay(ctx, e)
		default:
			return
		}
	}
}

func (s *RelayService) logStopped() {
	s.log.Info("relay stopped",
		zap.Int64("published", s.published.Load()),
		zap.Int64("dropped", s.dropped.Load()))
}

func (s *RelayService) relay(ctx context.Context, e event.Event) {
	if !s.IsLeader() {
		s.dropped.Add(1)
		s.log.Debug("not publisher, event dropped", zap.String("type", e.Type()))
		return
	}

	payload, err := json.Marshal(event.Wrap(e))
	if err != nil {
		s.log.Error("marshal event", zap.String("type", e.Type()), zap.Error(err))
		return
	}
	if err := s.producer.Publish(ctx, s.topic, e.Key(), payload); err != nil {
		s.dropped.Add(1)
		s.log.Warn("publish event", zap.String("type", e.Type()), zap.String("key", e.Key()), zap.Error(err))
		return
	}
	s.published.Add(1)
}

func (s *RelayService) IsLeader() bool {
	return s.locker == nil || s.leader.Load()
}

// RefreshLock 获取或续期 publisher 锁，由 cron 周期调用
func (s *RelayService) RefreshLock(ctx context.Context) {
	if s.locker == nil {
		return
	}

	if s.leader.Load() {
		ok, err := s.locker.Refresh(ctx, publisherLockKey, publisherLockTTL)
		if err != nil || !ok {
			s.leader.Store(false)
			s.log.Warn("publisher lock lost", zap.Error(err))
		}
		return
	}

	ok, err := s.locker.Acquire(ctx, publisherLockKey, publisherLockTTL)
	if err != nil {
		s.log.Warn("acquire publisher lock", zap.Error(err))
		return
	}
	if ok {
		s.leader.Store(true)
		s.log.Info("publisher lock acquired")
	}
}

// Stop 等待 Start 退出后释放锁并关闭生产者，ctx 到期则不再等待
func (s *RelayService) Stop(ctx context.Context) {
	s.quitOnce.Do(func() { close(s.quit) })
	if !s.claimed.CompareAndSwap(false, true) {
		select {
		case <-s.done:
		case <-ctx.Done():
			s.log.Warn("relay did not stop in time", zap.Error(ctx.Err()))
		}
	}

	if s.locker != nil && s.leader.Load() {
		if err := s.locker.Release(ctx, publisherLockKey); err != nil {
			s.log.Warn("release publisher lock", zap.Error(err))
		}
		s.leader.Store(false)
	}
	if err := s.producer.Close(); err != nil {
		s.log.Warn("close producer", zap.Error(err))
	}
}

type RelayStats struct {
	Leader    bool  `json:"leader"`
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
}

func (s *RelayService) Stats() RelayStats {
	return RelayStats{
		Leader:    s.IsLeader(),
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
	}
}
