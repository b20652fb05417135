package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"si-monitor/pkg/config"
)

const overlayHex = "A000000000000000000000000000000000000000000000000000000000000001"

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	monitorFlags(f)
	require.NoError(t, f.Parse(args))
	return f
}

func u64(n uint64) *uint64 { return &n }

func baseConfig() *config.Config {
	return &config.Config{
		Chain:   config.ChainSelect{ChainID: 5, RpcUrl: "ws://localhost:8546"},
		Monitor: config.MonitorConfig{PreloadRounds: 4, StartBlock: u64(100)},
		Chains:  config.DefaultChains(),
	}
}

func TestParseOverlays(t *testing.T) {
	got, err := parseOverlays([]string{overlayHex, "0x" + overlayHex})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1])

	_, err = parseOverlays([]string{"0x1234"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid overlay")
}

func TestApplyFlags_Defaults(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, applyFlags(testFlags(t), cfg))

	assert.Equal(t, uint64(5), cfg.Chain.ChainID)
	assert.Equal(t, "ws://localhost:8546", cfg.Chain.RpcUrl)
	// 没有命令行起点时保留配置文件的值
	assert.Equal(t, uint64(4), cfg.Monitor.PreloadRounds)
	assert.Equal(t, u64(100), cfg.Monitor.StartBlock)
}

func TestApplyFlags_Overrides(t *testing.T) {
	cfg := baseConfig()
	cfg.Monitor.Overlays = []string{overlayHex}
	f := testFlags(t, "--mainnet", "--rpc-endpoint", "ws://gnosis:8546", "-S", "1234", "--show-gas", "--http", "--http-port", "9090")
	require.NoError(t, applyFlags(f, cfg))

	assert.Equal(t, uint64(100), cfg.Chain.ChainID)
	assert.Equal(t, "ws://gnosis:8546", cfg.Chain.RpcUrl)
	assert.Equal(t, u64(1234), cfg.Monitor.SingleRound)
	assert.Nil(t, cfg.Monitor.StartBlock)
	assert.Zero(t, cfg.Monitor.PreloadRounds)
	assert.True(t, cfg.Monitor.ShowGas)
	assert.True(t, cfg.App.EnableHttp)
	assert.Equal(t, "9090", cfg.App.HttpPort)
	assert.Equal(t, []string{"0xa000000000000000000000000000000000000000000000000000000000000001"}, cfg.Monitor.Overlays)
}

func TestApplyFlags_Rounds(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, applyFlags(testFlags(t, "-r", "10"), cfg))
	assert.Equal(t, uint64(10), cfg.Monitor.PreloadRounds)
	assert.Nil(t, cfg.Monitor.StartBlock)
}

func TestApplyFlags_RoundZero(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, applyFlags(testFlags(t, "--round", "0"), cfg))
	assert.Equal(t, u64(0), cfg.Monitor.StartRound)
	assert.Nil(t, cfg.Monitor.StartBlock)
	assert.Nil(t, cfg.Monitor.SingleRound)

	cfg = baseConfig()
	require.NoError(t, applyFlags(testFlags(t, "-S", "0"), cfg))
	assert.Equal(t, u64(0), cfg.Monitor.SingleRound)
}

func TestApplyFlags_BadOverlayInConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Monitor.Overlays = []string{"0xbeef"}
	assert.Error(t, applyFlags(testFlags(t), cfg))
}

func TestRootCmd_SelectorsMutuallyExclusive(t *testing.T) {
	rootCmd.SetArgs([]string{"-b", "10", "-R", "2"})
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}
