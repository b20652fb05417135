package mq

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"si-monitor/pkg/config"
)

// NewProducer 按 mq.type 创建生产者，redis 类型需要传入 client
func NewProducer(cfg config.Config, rdb *redis.Client) (Producer, error) {
	switch cfg.MQ.Type {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("mq type redis requires redis.enabled")
		}
		return NewRedisProducer(rdb), nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("mq type kafka requires kafka.brokers")
		}
		return NewKafkaProducer(cfg.Kafka.Brokers, cfg.MQ.Topic), nil
	}
	return nil, fmt.Errorf("unknown mq type %q", cfg.MQ.Type)
}

// NewConsumer group 同时用作 kafka GroupID 和 redis 消费者组名
func NewConsumer(cfg config.Config, rdb *redis.Client, group, name string) (Consumer, error) {
	switch cfg.MQ.Type {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("mq type redis requires redis.enabled")
		}
		return NewRedisConsumer(rdb, group, name), nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("mq type kafka requires kafka.brokers")
		}
		return NewKafkaConsumer(cfg.Kafka.Brokers, group), nil
	}
	return nil, fmt.Errorf("unknown mq type %q", cfg.MQ.Type)
}
