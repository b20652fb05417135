package cmd

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"si-monitor/internal/game"
	"si-monitor/internal/handler"
	"si-monitor/internal/service/observer"
	"si-monitor/pkg/config"
)

// rootCmd 不带子命令时启动监控
var rootCmd = &cobra.Command{
	Use:   "si-monitor [overlays...]",
	Short: "Monitor Storage Incentives for Swarm",
	Long: `跟踪 Swarm Redistribution 合约的 commit/reveal/claim，输出每一轮和每个节点的状态。
可以传入若干 overlay 进行高亮。`,
	Version: handler.Version,
	Args: func(cmd *cobra.Command, args []string) error {
		_, err := parseOverlays(args)
		return err
	},
	SilenceUsage: true,
	RunE:         runMonitor,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "配置文件路径 (默认 ./config.yaml 或 ./config/config.yaml)")

	monitorFlags(rootCmd.Flags())
	rootCmd.MarkFlagsMutuallyExclusive("rounds", "block", "round", "single-round")
}

func monitorFlags(f *pflag.FlagSet) {
	f.Bool("mainnet", false, "Use Swarm mainnet (gnosis)")
	f.String("rpc-endpoint", "", "RPC endpoint for the blockchain node (env RPC_URL)")
	f.Uint64P("rounds", "r", observer.DefaultPreloadRounds, "Load the last number of rounds from the blockchain")
	f.Uint64P("block", "b", 0, "Block number to start loading from")
	f.Uint64P("round", "R", 0, "Round number to start loading from")
	f.Uint64P("single-round", "S", 0, "Load a single round and stop")
	f.Bool("show-gas", false, "Sample gas prices on every block")
	f.Bool("preload-stakes", false, "Replay StakeRegistry logs before syncing")
	f.Bool("http", false, "Serve the status API")
	f.String("http-port", "", "Status API port")
}

// parseOverlays 每个 overlay 必须是 32 字节
func parseOverlays(args []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(args))
	for _, a := range args {
		h, err := game.ParseOverlay(a)
		if err != nil {
			return nil, fmt.Errorf("not a valid overlay: %w", err)
		}
		out = append(out, h)
	}
	return out, nil
}

// loadConfig 读取配置文件，再用命令行参数覆盖
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// changedUint64 只有命令行显式给出时才返回值，--round 0 表示第 0 轮
func changedUint64(f *pflag.FlagSet, name string) *uint64 {
	if !f.Changed(name) {
		return nil
	}
	v, _ := f.GetUint64(name)
	return &v
}

func applyFlags(f *pflag.FlagSet, cfg *config.Config) error {
	if mainnet, _ := f.GetBool("mainnet"); mainnet {
		cfg.Chain.ChainID = 100
	}
	if f.Changed("rpc-endpoint") {
		cfg.Chain.RpcUrl, _ = f.GetString("rpc-endpoint")
	}

	// 命令行指定的起点覆盖配置文件中的全部起点
	if f.Changed("rounds") || f.Changed("block") || f.Changed("round") || f.Changed("single-round") {
		m := &cfg.Monitor
		m.PreloadRounds = 0
		if f.Changed("rounds") {
			m.PreloadRounds, _ = f.GetUint64("rounds")
		}
		m.StartBlock = changedUint64(f, "block")
		m.StartRound = changedUint64(f, "round")
		m.SingleRound = changedUint64(f, "single-round")
	}

	if f.Changed("show-gas") {
		cfg.Monitor.ShowGas, _ = f.GetBool("show-gas")
	}
	if f.Changed("preload-stakes") {
		cfg.Monitor.PreloadStakes, _ = f.GetBool("preload-stakes")
	}
	if f.Changed("http") {
		cfg.App.EnableHttp, _ = f.GetBool("http")
	}
	if f.Changed("http-port") {
		cfg.App.HttpPort, _ = f.GetString("http-port")
	}

	for i, o := range cfg.Monitor.Overlays {
		norm, err := game.NormalizeOverlay(o)
		if err != nil {
			return fmt.Errorf("monitor.overlays: %w", err)
		}
		cfg.Monitor.Overlays[i] = norm
	}
	return nil
}
