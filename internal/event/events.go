package event

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event 对外发布的游戏事件
type Event interface {
	// Type 事件类型，例如 "round_closed"
	Type() string
	// Key 分区键，保证同一轮/同一节点的消息有序
	Key() string
}

// RoundClosedEvent 轮次结束 (指针前移时发出)
// Topic: si_events_game
type RoundClosedEvent struct {
	Round     uint64 `json:"round"`
	Commits   int    `json:"commits"`
	Reveals   int    `json:"reveals"`
	Claimed   bool   `json:"claimed"`
	Unclaimed bool   `json:"unclaimed"`
	LastBlock uint64 `json:"last_block"`
	Timestamp int64  `json:"timestamp"` // ms
}

func (e RoundClosedEvent) Type() string { return "round_closed" }
func (e RoundClosedEvent) Key() string  { return strconv.FormatUint(e.Round, 10) }

// ClaimRecordedEvent 某一轮的奖励被领取
type ClaimRecordedEvent struct {
	Round     uint64 `json:"round"`
	Overlay   string `json:"overlay"`
	Account   string `json:"account"`
	Truth     string `json:"truth"`
	Depth     uint8  `json:"depth"`
	Amount    string `json:"amount"` // BZZ, Decimal string
	Freezes   int    `json:"freezes"`
	Slashes   int    `json:"slashes"`
	Block     uint64 `json:"block"`
	Timestamp int64  `json:"timestamp"`
}

func (e ClaimRecordedEvent) Type() string { return "claim_recorded" }
func (e ClaimRecordedEvent) Key() string  { return strconv.FormatUint(e.Round, 10) }

// StakeChangedEvent 质押变化 (更新或罚没)
type StakeChangedEvent struct {
	Overlay   string `json:"overlay"`
	Account   string `json:"account,omitempty"`
	Kind      string `json:"kind"` // "update" or "slash"
	Amount    string `json:"amount"`
	Stake     string `json:"stake"`
	Block     uint64 `json:"block"`
	Timestamp int64  `json:"timestamp"`
}

func (e StakeChangedEvent) Type() string { return "stake_changed" }
func (e StakeChangedEvent) Key() string  { return e.Overlay }

// Envelope 实际写入 MQ 的结构，ID 供消费方去重
type Envelope struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	SentAt int64  `json:"sent_at"` // ms
	Data   Event  `json:"data"`
}

func Wrap(e Event) Envelope {
	return Envelope{
		ID:     uuid.NewString(),
		Type:   e.Type(),
		SentAt: time.Now().UnixMilli(),
		Data:   e,
	}
}
