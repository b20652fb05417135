package game

import "si-monitor/internal/event"

// Display 展示层 (终端面板、日志等) 的输入，只接收格式化好的行
type Display interface {
	// InsertRound 在轮次列表顶部插入一行
	InsertRound(line string, ts int64)
	// UpdateRound 原地更新第 index 行
	UpdateRound(index int, line string, ts int64)
	// RoundPlayers 设置当前轮参与者面板
	RoundPlayers(label string, body string)
	// PlayerLine 更新玩家所在行
	PlayerLine(row int, text string, ts int64, isNew bool)
	// Status 当前轮/阶段状态行
	Status(line string, ts int64)
	Transaction(line string, ts int64)
	BlockLine(line string, ts int64)
	FeeHistory(history string, percent int64)
	// Message 诊断信息，tag 相同的消息可合并显示
	Message(text string, tag string)
}

// Publisher 接收引擎产出的事件，实现方不能阻塞
type Publisher interface {
	Publish(e event.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(event.Event) {}
