package display

import (
	"sync"

	"go.uber.org/zap"
)

// 这些 tag 的消息按 Warn 输出
var warnTags = map[string]bool{
	"gap":    true,
	"reveal": true,
	"claim":  true,
	"tx":     true,
}

// LogDisplay 没有终端面板时，把展示输出写进 zap 日志
// 同一个 tag 连续出现相同文本时只计数，文本变化时带上被合并的次数
type LogDisplay struct {
	log *zap.Logger

	mu       sync.Mutex
	lastText map[string]string
	repeats  map[string]int
}

func NewLogDisplay(log *zap.Logger) *LogDisplay {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogDisplay{
		log:      log,
		lastText: make(map[string]string),
		repeats:  make(map[string]int),
	}
}

func (d *LogDisplay) InsertRound(line string, ts int64) {
	d.log.Info("round", zap.String("line", line), zap.Int64("ts", ts))
}

func (d *LogDisplay) UpdateRound(index int, line string, ts int64) {
	d.log.Debug("round updated", zap.Int("index", index), zap.String("line", line), zap.Int64("ts", ts))
}

func (d *LogDisplay) RoundPlayers(label string, body string) {
	d.log.Debug(label, zap.String("players", body))
}

func (d *LogDisplay) PlayerLine(row int, text string, ts int64, isNew bool) {
	if isNew {
		d.log.Info("new player", zap.Int("row", row), zap.String("line", text))
		return
	}
	d.log.Debug("player", zap.Int("row", row), zap.String("line", text), zap.Int64("ts", ts))
}

func (d *LogDisplay) Status(line string, ts int64) {
	d.log.Debug("status", zap.String("line", line))
}

func (d *LogDisplay) Transaction(line string, ts int64) {
	d.log.Info("tx", zap.String("line", line), zap.Int64("ts", ts))
}

func (d *LogDisplay) BlockLine(line string, ts int64) {
	d.log.Debug("block", zap.String("line", line))
}

func (d *LogDisplay) FeeHistory(history string, percent int64) {
	d.log.Debug("fee history", zap.String("history", history), zap.Int64("percent", percent))
}

func (d *LogDisplay) Message(text string, tag string) {
	fields := []zap.Field{zap.String("tag", tag)}
	if tag != "" {
		d.mu.Lock()
		if d.lastText[tag] == text {
			d.repeats[tag]++
			d.mu.Unlock()
			return
		}
		if n := d.repeats[tag]; n > 0 {
			fields = append(fields, zap.Int("repeated", n))
		}
		d.lastText[tag] = text
		d.repeats[tag] = 0
		d.mu.Unlock()
	}

	if warnTags[tag] {
		d.log.Warn(text, fields...)
		return
	}
	d.log.Info(text, fields...)
}
