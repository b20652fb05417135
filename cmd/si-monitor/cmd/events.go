package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"si-monitor/internal/service/mq"
	"si-monitor/pkg/config"
	"si-monitor/pkg/logger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅并打印已发布的游戏事件",
	Long:  `从 Redis Stream 或 Kafka 读取 si-monitor 发布的事件，每行输出一个 JSON。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		logger.Init(cfg.App.Env, cfg.App.LogFile)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		group, _ := cmd.Flags().GetString("group")
		host, _ := os.Hostname()

		var rdb *redis.Client
		if cfg.Redis.Enabled {
			if rdb, err = connectRedis(ctx, cfg.Redis); err != nil {
				return err
			}
			defer rdb.Close()
		}
		consumer, err := mq.NewConsumer(*cfg, rdb, group, host)
		if err != nil {
			return err
		}
		defer consumer.Close()

		return consumer.Subscribe(ctx, cfg.MQ.Topic, func(msg *mq.Message) error {
			var env struct {
				ID   string          `json:"id"`
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				logger.Warn("bad event payload", zap.String("id", msg.ID), zap.Error(err))
				return nil
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", msg.ID, env.ID, env.Type, msg.Key, env.Data)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().String("group", "si-monitor-events", "消费者组")
}
