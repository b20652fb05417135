package observer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"si-monitor/internal/contracts"
	"si-monitor/internal/game"
	"si-monitor/internal/gas"
	"si-monitor/pkg/cache"
	"si-monitor/pkg/config"
	"si-monitor/pkg/errno"
	"si-monitor/pkg/format"
	"si-monitor/pkg/logger"
	"si-monitor/pkg/monitor"
)

type State int32

const (
	StateCold State = iota
	StateInit
	StateWarmup
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "COLD"
	case StateInit:
		return "INIT"
	case StateWarmup:
		return "WARMUP"
	case StateRunning:
		return "RUNNING"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options 同步器配置
type Options struct {
	ChainID            uint64
	Chain              config.ChainConfig
	ShowGas            bool
	PreloadStakes      bool
	ReceiptConcurrency int
	GasHistoryWidth    int
	HeadBuffer         int
	// BlockTimes 为空时使用进程内缓存
	BlockTimes *cache.BlockTimeCache
}

func (o Options) withDefaults() Options {
	if o.ReceiptConcurrency <= 0 {
		o.ReceiptConcurrency = 8
	}
	if o.GasHistoryWidth <= 0 {
		o.GasHistoryWidth = 32
	}
	if o.HeadBuffer <= 0 {
		o.HeadBuffer = 16
	}
	if o.BlockTimes == nil {
		o.BlockTimes = cache.NewBlockTimeCache(cache.NewMemoryCache(time.Hour, 10*time.Minute), time.Hour)
	}
	return o
}

// ChainSync 把链上事件按顺序、无遗漏地应用到游戏引擎
// 核心设计:
// 1. 回放 (WARMUP): 从起点逐块顺序处理直到追上链高度
// 2. 实时 (RUNNING): 订阅新区块 -> Channel -> 单个 applier 处理
// 引擎只会被回放循环或 applier 调用，二者不会同时写
type ChainSync struct {
	source  DataSource
	engine  Engine
	display game.Display
	opts    Options
	log     *zap.Logger

	redistribution common.Address
	stakeRegistry  common.Address
	bzzToken       common.Address
	postageStamp   common.Address
	priceOracle    common.Address
	hasOracle      bool
	accountNames   map[string]string

	state     atomic.Int32
	failedTxs atomic.Int64
	// running 在进入 RUNNING 后关闭，applier 据此把 WARMUP 期间暂存的区块补上
	running chan struct{}

	mu           sync.Mutex
	lastBlock    game.BlockDetails
	tip          uint64
	tipTimestamp int64

	gasMu    sync.Mutex
	baseGas  *gas.Tracker
	gasPrice *gas.Tracker

	wg sync.WaitGroup
}

func NewChainSync(source DataSource, engine Engine, display game.Display, opts Options) *ChainSync {
	opts = opts.withDefaults()
	c := opts.Chain.Contracts
	s := &ChainSync{
		source:         source,
		engine:         engine,
		display:        display,
		opts:           opts,
		log:            logger.Named("chainsync"),
		redistribution: c.RedistributionAddress(),
		stakeRegistry:  c.StakeRegistryAddress(),
		bzzToken:       c.BzzTokenAddress(),
		postageStamp:   c.PostageStampAddress(),
		baseGas:        gas.New(opts.GasHistoryWidth),
		gasPrice:       gas.New(opts.GasHistoryWidth),
		running:        make(chan struct{}),
	}
	s.accountNames = map[string]string{
		strings.ToLower(s.redistribution.Hex()): "Redistribution",
		strings.ToLower(s.stakeRegistry.Hex()):  "StakeRegistry",
		strings.ToLower(s.postageStamp.Hex()):   "PostageStamp",
		strings.ToLower(s.bzzToken.Hex()):       "BZZ",
	}
	if s.priceOracle, s.hasOracle = c.PriceOracleAddress(); s.hasOracle {
		s.accountNames[strings.ToLower(s.priceOracle.Hex())] = "PriceOracle"
	}
	return s
}

func (s *ChainSync) State() State {
	return State(s.state.Load())
}

func (s *ChainSync) setState(st State) {
	s.state.Store(int32(st))
	monitor.SyncState.Set(float64(st))
	s.log.Info("state changed", zap.Stringer("state", st))
}

// mustBe 状态不对属于调用方的编程错误，直接 panic
func (s *ChainSync) mustBe(want State, op string) {
	if got := s.State(); got != want {
		panic(fmt.Errorf("%w: %s requires %s, got %s", errno.ErrSyncState, op, want, got))
	}
}

// Init 确认数据源可用且链 id 与配置一致
func (s *ChainSync) Init(ctx context.Context) error {
	s.mustBe(StateCold, "Init")

	id, err := s.source.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("data source unavailable: %w", err)
	}
	if s.opts.ChainID != 0 && id.Uint64() != s.opts.ChainID {
		return fmt.Errorf("data source is chain %d (%s), configured %d", id.Uint64(), format.ChainName(id.Uint64()), s.opts.ChainID)
	}
	s.log.Info("connected", zap.Uint64("chain_id", id.Uint64()), zap.String("chain", format.ChainName(id.Uint64())))
	s.setState(StateInit)
	return nil
}

// CurrentBlock 当前链高度
func (s *ChainSync) CurrentBlock(ctx context.Context) (uint64, error) {
	if s.State() == StateCold {
		panic(fmt.Errorf("%w: CurrentBlock requires INIT, got COLD", errno.ErrSyncState))
	}
	return s.source.BlockNumber(ctx)
}

// Start 回放 window 并在需要时开启实时跟踪，回放完成后返回
// 实时跟踪的 goroutine 在 ctx 取消后退出，用 Wait 等待
func (s *ChainSync) Start(ctx context.Context, w Window) error {
	s.mustBe(StateInit, "Start")
	s.log.Info("starting chain sync", zap.Stringer("window", w))
	s.setState(StateWarmup)

	// 先注册监听，避免回放期间产生的区块丢失
	if w.Live() {
		s.startLive(ctx)
	}

	if s.opts.PreloadStakes && s.opts.Chain.StakeDeployBlock > 0 {
		if err := s.preloadStakes(ctx); err != nil {
			s.log.Error("stake preload failed", zap.Error(err))
			s.display.Message(fmt.Sprintf("Stake preload failed: %v", err), "sync")
		}
	}

	if err := s.replay(ctx, w); err != nil {
		return err
	}

	s.verifyContracts(ctx)
	s.setState(StateRunning)
	close(s.running)
	return nil
}

// Wait 等待实时跟踪的 goroutine 退出
func (s *ChainSync) Wait() {
	s.wg.Wait()
}

func (s *ChainSync) replay(ctx context.Context, w Window) error {
	bpr := s.opts.Chain.BlocksPerRound
	next := w.Start
	if bpr > 0 {
		next = w.Start / bpr * bpr
	}

	tip, err := s.source.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get block number: %w", err)
	}
	s.setTip(tip, 0)

	s.log.Info("syncing blockchain", zap.Uint64("from", next), zap.Uint64("to", tip))
	s.display.Message(fmt.Sprintf("Syncing blockchain from block %d to %d", next, tip), "sync")
	started := time.Now()

	for {
		target := tip
		if !w.Live() && w.End < target {
			target = w.End
		}

		for ; next <= target; next++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := s.source.BlockByNumber(ctx, next)
			if err != nil {
				return fmt.Errorf("replay block %d: %w", next, err)
			}
			if b.Number%100 == 0 {
				end := tip
				if !w.Live() {
					end = w.End
				}
				s.display.Message(fmt.Sprintf("Sync: Processing block %d/%d", b.Number, end), "sync")
			}
			s.handleBlock(ctx, b, nil, "replay")
			s.setLastBlock(b.details())
		}

		if !w.Live() && next > w.End {
			break
		}
		// 回放期间链高度可能继续增长，追到不再增长为止
		latest, err := s.source.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get block number: %w", err)
		}
		if latest < next {
			break
		}
		tip = latest
		s.setTip(tip, 0)
	}

	last := s.LastBlock().Number
	s.log.Info("sync complete",
		zap.Uint64("from", w.Start),
		zap.Uint64("to", last),
		zap.Duration("elapsed", time.Since(started)))
	s.display.Message(fmt.Sprintf("Sync: Complete from block %d to %d in %.3fs", w.Start, last, time.Since(started).Seconds()), "sync")
	return nil
}

type contractCheck struct {
	method string
	data   []byte
	want   common.Address
	label  string
}

// verifyContracts 对比 Redistribution 合约引用的地址与配置，不一致只记录
// price oracle 只有配置了才校验
func (s *ChainSync) verifyContracts(ctx context.Context) {
	checks := []contractCheck{
		{"Stakes", contracts.PackStakes(), s.stakeRegistry, "stakes"},
		{"PostageContract", contracts.PackPostageContract(), s.postageStamp, "stamps"},
	}
	if s.hasOracle {
		checks = append(checks, contractCheck{"OracleContract", contracts.PackOracleContract(), s.priceOracle, "oracle"})
	}
	for _, c := range checks {
		out, err := s.source.CallContract(ctx, s.redistribution, c.data)
		if err != nil {
			s.log.Warn("contract check failed", zap.String("method", c.method), zap.Error(err))
			continue
		}
		got, err := contracts.UnpackAddress(c.method, out)
		if err != nil {
			s.log.Warn("contract check failed", zap.String("method", c.method), zap.Error(err))
			continue
		}
		if got != c.want {
			msg := fmt.Sprintf("%s: %s vs config %s", c.label, got.Hex(), c.want.Hex())
			s.log.Error("contract mismatch", zap.String("detail", msg))
			s.display.Message(msg, "config")
		}
	}
}

// roundAnchor 某些阶段 view 调用会 revert，失败时返回 nil
func (s *ChainSync) roundAnchor(ctx context.Context) *common.Hash {
	out, err := s.source.CallContract(ctx, s.redistribution, contracts.PackCurrentRoundAnchor())
	if err == nil {
		var anchor common.Hash
		if anchor, err = contracts.UnpackCurrentRoundAnchor(out); err == nil {
			return &anchor
		}
	}
	s.log.Debug("anchor", zap.Error(fmt.Errorf("%w: %v", errno.ErrAnchorUnavailable, err)))
	return nil
}

func (s *ChainSync) blockTime(ctx context.Context, number uint64) (int64, error) {
	return s.opts.BlockTimes.Get(ctx, number, s.source.HeaderTime)
}

// --- 进度指针

func (s *ChainSync) LastBlock() game.BlockDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBlock
}

func (s *ChainSync) setLastBlock(b game.BlockDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBlock = b
	s.updateLag()
}

func (s *ChainSync) setTip(tip uint64, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tip > s.tip {
		s.tip = tip
	}
	if ts > 0 {
		s.tipTimestamp = ts
	}
	s.updateLag()
}

func (s *ChainSync) updateLag() {
	if s.tip > s.lastBlock.Number {
		monitor.TipLag.Set(float64(s.tip - s.lastBlock.Number))
	} else {
		monitor.TipLag.Set(0)
	}
}

// Stats 同步进度
type Stats struct {
	State              string `json:"state"`
	LastBlock          uint64 `json:"last_block"`
	LastBlockTime      int64  `json:"last_block_time"`
	Tip                uint64 `json:"tip"`
	TipTime            int64  `json:"tip_time"`
	FailedTransactions int64  `json:"failed_transactions"`
}

func (s *ChainSync) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		State:              s.State().String(),
		LastBlock:          s.lastBlock.Number,
		LastBlockTime:      s.lastBlock.Timestamp,
		Tip:                s.tip,
		TipTime:            s.tipTimestamp,
		FailedTransactions: s.failedTxs.Load(),
	}
}

// GasView 一个 gas 跟踪器的当前状态
type GasView struct {
	History   string `json:"history"`
	Percent   int64  `json:"percent"`
	LastPrice string `json:"last_price"`
	Wei       string `json:"wei"`
}

type GasStats struct {
	BaseFee  GasView `json:"base_fee"`
	GasPrice GasView `json:"gas_price"`
}

func (s *ChainSync) Gas() GasStats {
	s.gasMu.Lock()
	defer s.gasMu.Unlock()
	return GasStats{BaseFee: gasView(s.baseGas), GasPrice: gasView(s.gasPrice)}
}

func gasView(t *gas.Tracker) GasView {
	return GasView{
		History:   t.History(),
		Percent:   t.Percent(),
		LastPrice: t.LastPrice(),
		Wei:       t.LastPriceWei().String(),
	}
}

func orOne(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(1)
	}
	return v
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
