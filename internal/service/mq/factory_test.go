package mq

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"si-monitor/pkg/config"
)

func TestNewProducer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	cfg := config.Config{MQ: config.MQConfig{Type: "redis", Topic: "si_events_game"}}
	p, err := NewProducer(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &RedisProducer{}, p)

	_, err = NewProducer(cfg, nil)
	assert.Error(t, err)

	cfg.MQ.Type = "kafka"
	_, err = NewProducer(cfg, nil)
	assert.Error(t, err)

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	p, err = NewProducer(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &KafkaProducer{}, p)
	assert.NoError(t, p.Close())

	cfg.MQ.Type = "nats"
	_, err = NewProducer(cfg, rdb)
	assert.Error(t, err)
}

func TestKafkaProducer_TopicMismatch(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, "si_events_game")
	defer p.Close()

	err := p.Publish(context.Background(), "other", "1", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "si_events_game")
}

func TestNewConsumer(t *testing.T) {
	cfg := config.Config{MQ: config.MQConfig{Type: "kafka"}, Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}}}
	c, err := NewConsumer(cfg, nil, "si-monitor", "host-1")
	require.NoError(t, err)
	assert.IsType(t, &KafkaConsumer{}, c)
	assert.NoError(t, c.Close())

	cfg.MQ.Type = "redis"
	_, err = NewConsumer(cfg, nil, "si-monitor", "host-1")
	assert.Error(t, err)
}
