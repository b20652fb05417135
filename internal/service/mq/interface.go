package mq

import "context"

// Message 代表一条游戏事件消息
type Message struct {
	ID      string // Redis Stream ID 或 Kafka partition/offset
	Topic   string
	Key     string // 分区键 (轮次或 overlay)
	Payload []byte // event.Envelope JSON
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息
	// key: 分区键，同一 key 的消息保持有序
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 阻塞消费直到 ctx 取消
	// handler 返回 error 时消息不会被确认
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error
	Close() error
}
