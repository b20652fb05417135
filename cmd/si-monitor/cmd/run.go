package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"si-monitor/internal/display"
	"si-monitor/internal/game"
	"si-monitor/internal/handler"
	"si-monitor/internal/server"
	"si-monitor/internal/service"
	"si-monitor/internal/service/mq"
	"si-monitor/internal/service/observer"
	"si-monitor/pkg/cache"
	"si-monitor/pkg/config"
	"si-monitor/pkg/logger"
	"si-monitor/pkg/utils/lock"
)

const (
	// HTTP 接口保留的最近行数
	recorderLimit = 500
	// 退出时等待事件发送完的上限
	relayStopTimeout = 5 * time.Second
)

func runMonitor(cmd *cobra.Command, args []string) error {
	overlays, err := parseOverlays(args)
	if err != nil {
		return err
	}

	// 1. 配置与日志
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	config.Global = *cfg
	logger.Init(cfg.App.Env, cfg.App.LogFile)
	defer logger.Sync()

	chain := cfg.Current()
	logger.Info("starting si-monitor",
		zap.String("version", handler.Version),
		zap.Uint64("chain_id", cfg.Chain.ChainID),
		zap.String("chain", chain.Name),
		zap.String("rpc", cfg.Chain.RpcUrl))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Redis (可选): 区块时间二级缓存、事件流、publisher 锁
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var blockCache cache.Cache = cache.NewMemoryCache(time.Hour, 10*time.Minute)
	if rdb != nil {
		prefix := fmt.Sprintf("si:%d:", cfg.Chain.ChainID)
		blockCache = cache.NewTiered(blockCache, cache.NewRedisCache(rdb, prefix), 10*time.Minute)
	}

	// 3. 显示: 日志 + 最近行 (HTTP)
	rec := display.NewRecorder(recorderLimit)
	disp := display.Multi{display.NewLogDisplay(logger.Named("display")), rec}

	// 4. 事件发布 (可选)
	var (
		publisher game.Publisher
		relay     *service.RelayService
	)
	if cfg.MQ.Enabled {
		producer, err := mq.NewProducer(*cfg, rdb)
		if err != nil {
			return fmt.Errorf("mq: %w", err)
		}
		var locker lock.DistributedLock
		if rdb != nil {
			locker = lock.NewRedisLock(rdb)
		}
		relay = service.NewRelayService(producer, locker, cfg.MQ.Topic, 1024)
		publisher = relay
		go relay.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), relayStopTimeout)
			defer cancel()
			relay.Stop(stopCtx)
		}()
	}

	// 5. 游戏引擎
	g := game.New(game.Params{
		BlocksPerRound:    chain.BlocksPerRound,
		CommitPhaseBlocks: chain.CommitPhaseBlocks,
		RevealPhaseBlocks: chain.RevealPhaseBlocks,
	}, disp, publisher)
	for _, o := range cfg.Monitor.Overlays {
		overlays = append(overlays, common.HexToHash(o))
	}
	for _, o := range overlays {
		g.HighlightOverlay(o)
	}
	for _, a := range cfg.Monitor.Accounts {
		g.HighlightAccount(common.HexToAddress(a))
	}

	// 6. 链同步
	src, err := observer.DialEthSource(ctx, cfg.Chain.RpcUrl)
	if err != nil {
		return err
	}
	defer src.Close()

	sync := observer.NewChainSync(src, g, disp, observer.Options{
		ChainID:            cfg.Chain.ChainID,
		Chain:              chain,
		ShowGas:            cfg.Monitor.ShowGas,
		PreloadStakes:      cfg.Monitor.PreloadStakes,
		ReceiptConcurrency: cfg.Monitor.ReceiptConcurrency,
		GasHistoryWidth:    cfg.Monitor.GasHistoryWidth,
		HeadBuffer:         cfg.Monitor.HeadBuffer,
		BlockTimes:         cache.NewBlockTimeCache(blockCache, 24*time.Hour),
	})
	if err := sync.Init(ctx); err != nil {
		return err
	}
	tip, err := sync.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("get current block: %w", err)
	}
	window, err := observer.ResolveWindow(observer.Selector{
		Rounds:      cfg.Monitor.PreloadRounds,
		Block:       cfg.Monitor.StartBlock,
		Round:       cfg.Monitor.StartRound,
		SingleRound: cfg.Monitor.SingleRound,
	}, chain.BlocksPerRound, tip)
	if err != nil {
		return err
	}

	// 7. 定时任务与 HTTP
	cron := service.NewCronService(g, sync, relay)
	cron.Start()
	defer cron.Stop()

	httpDone := make(chan struct{})
	if cfg.App.EnableHttp {
		router := server.NewHTTPRouter(handler.NewGameHandler(g, sync, rec))
		app := server.New(cfg.App.HttpPort, router)
		go func() {
			defer close(httpDone)
			if err := app.Run(ctx); err != nil {
				logger.Error("http server stopped", zap.Error(err))
				stop()
			}
		}()
	} else {
		close(httpDone)
	}

	// 8. 回放 (阻塞)，之后实时跟踪直到退出
	if err := sync.Start(ctx, window); err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupted during replay")
			return nil
		}
		return err
	}
	cron.Summary()

	if window.Live() || cfg.App.EnableHttp {
		<-ctx.Done()
	}
	stop()
	sync.Wait()
	<-httpDone
	logger.Info("si-monitor stopped")
	return nil
}

func connectRedis(ctx context.Context, rc config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
	}
	return rdb, nil
}
