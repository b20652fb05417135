package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"

	"si-monitor/pkg/validator"
)

type Config struct {
	App     AppConfig              `mapstructure:"app"`
	Chain   ChainSelect            `mapstructure:"chain"`
	Monitor MonitorConfig          `mapstructure:"monitor"`
	Redis   RedisConfig            `mapstructure:"redis"`
	Kafka   KafkaConfig            `mapstructure:"kafka"`
	MQ      MQConfig               `mapstructure:"mq"`
	Chains  map[uint64]ChainConfig `mapstructure:"chains"`
}

type AppConfig struct {
	Env        string `mapstructure:"env"`
	HttpPort   string `mapstructure:"http_port"`
	EnableHttp bool   `mapstructure:"enable_http"`
	LogFile    string `mapstructure:"log_file"`
}

// ChainSelect 选择要监控的链
type ChainSelect struct {
	ChainID uint64 `mapstructure:"chain_id" validate:"required"`
	RpcUrl  string `mapstructure:"rpc_url" validate:"required"`
}

type MonitorConfig struct {
	Overlays           []string `mapstructure:"overlays" validate:"dive,hexadecimal,len=66"`
	Accounts           []string `mapstructure:"accounts" validate:"dive,hexadecimal,len=42"`
	PreloadRounds      uint64   `mapstructure:"preload_rounds"`
	StartBlock         *uint64  `mapstructure:"start_block"` // nil = 未设置
	StartRound         *uint64  `mapstructure:"start_round"`
	SingleRound        *uint64  `mapstructure:"single_round"`
	ShowGas            bool     `mapstructure:"show_gas"`
	PreloadStakes      bool     `mapstructure:"preload_stakes"`
	ReceiptConcurrency int      `mapstructure:"receipt_concurrency" validate:"gt=0"`
	GasHistoryWidth    int      `mapstructure:"gas_history_width" validate:"gt=0"`
	HeadBuffer         int      `mapstructure:"head_buffer" validate:"gt=0"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// MQConfig 游戏事件对外发布
type MQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type" validate:"oneof=redis kafka"` // "redis" or "kafka"
	Topic   string `mapstructure:"topic"`
}

var Global Config

func Init(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Fatal error config file: %s \n", err)
	}
	Global = *cfg
	log.Printf("Configuration loaded successfully. Env: %s, Chain: %d", Global.App.Env, Global.Chain.ChainID)
}

// Load 读取配置文件 + 环境变量，path 为空时按默认路径查找
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 环境变量: SI_CHAIN_RPC_URL -> chain.rpc_url
	v.SetEnvPrefix("SI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("chain.rpc_url", "SI_CHAIN_RPC_URL", "RPC_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// YAML 里的 chains 只覆盖同 id 的条目，其余保留内置值
	merged := DefaultChains()
	for id, c := range cfg.Chains {
		merged[id] = c.withDefaults()
	}
	cfg.Chains = merged

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置结构及所选链是否存在
func (c *Config) Validate() error {
	if err := validator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %s", validator.GetErrorMsg(err))
	}
	chain, ok := c.Chains[c.Chain.ChainID]
	if !ok {
		return fmt.Errorf("invalid config: chain %d is not configured", c.Chain.ChainID)
	}
	if err := validator.Struct(chain); err != nil {
		return fmt.Errorf("invalid chain %d: %s", c.Chain.ChainID, validator.GetErrorMsg(err))
	}
	return nil
}

// Current 返回当前选择的链配置
func (c *Config) Current() ChainConfig {
	return c.Chains[c.Chain.ChainID]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.enable_http", false)
	v.SetDefault("app.log_file", "")

	v.SetDefault("chain.chain_id", 5)
	v.SetDefault("chain.rpc_url", "ws://goerli-geth.dappnode:8546")

	v.SetDefault("monitor.overlays", []string{})
	v.SetDefault("monitor.accounts", []string{})
	v.SetDefault("monitor.preload_rounds", 4)
	v.SetDefault("monitor.show_gas", false)
	v.SetDefault("monitor.preload_stakes", false)
	v.SetDefault("monitor.receipt_concurrency", 8)
	v.SetDefault("monitor.gas_history_width", 32)
	v.SetDefault("monitor.head_buffer", 16)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("mq.enabled", false)
	v.SetDefault("mq.type", "redis")
	v.SetDefault("mq.topic", "si_events_game")
}
