package display

import "sync"

// Message 一条诊断信息
type Message struct {
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"`
}

// Line 带时间戳的一行，ts < 0 表示不显示时间
type Line struct {
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// Recorder 把所有输出留在内存里，测试断言和 HTTP 展示共用
// limit 控制追加型列表 (轮次、交易、区块、消息) 的最大长度，0 不限制
type Recorder struct {
	mu    sync.RWMutex
	limit int

	rounds       []Line
	players      map[int]Line
	roundLabel   string
	roundPlayers string
	status       Line
	transactions []Line
	blocks       []Line
	feeHistory   string
	feePercent   int64
	messages     []Message
}

func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit, players: make(map[int]Line)}
}

func (r *Recorder) trim(lines []Line) []Line {
	if r.limit > 0 && len(lines) > r.limit {
		return lines[len(lines)-r.limit:]
	}
	return lines
}

// InsertRound 最新的在前
func (r *Recorder) InsertRound(line string, ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append([]Line{{Text: line, Ts: ts}}, r.rounds...)
	if r.limit > 0 && len(r.rounds) > r.limit {
		r.rounds = r.rounds[:r.limit]
	}
}

func (r *Recorder) UpdateRound(index int, line string, ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.rounds) {
		return
	}
	r.rounds[index] = Line{Text: line, Ts: ts}
}

func (r *Recorder) RoundPlayers(label string, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roundLabel, r.roundPlayers = label, body
}

func (r *Recorder) PlayerLine(row int, text string, ts int64, isNew bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[row] = Line{Text: text, Ts: ts}
}

func (r *Recorder) Status(line string, ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = Line{Text: line, Ts: ts}
}

func (r *Recorder) Transaction(line string, ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = r.trim(append(r.transactions, Line{Text: line, Ts: ts}))
}

func (r *Recorder) BlockLine(line string, ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = r.trim(append(r.blocks, Line{Text: line, Ts: ts}))
}

func (r *Recorder) FeeHistory(history string, percent int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeHistory, r.feePercent = history, percent
}

func (r *Recorder) Message(text string, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Text: text, Tag: tag})
	if r.limit > 0 && len(r.messages) > r.limit {
		r.messages = r.messages[len(r.messages)-r.limit:]
	}
}

// --- 读取 (返回副本)

func (r *Recorder) Rounds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.rounds))
	for i, l := range r.rounds {
		out[i] = l.Text
	}
	return out
}

// PlayerLines 按行号排列，空行为 ""
func (r *Recorder) PlayerLines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for row := range r.players {
		if row+1 > n {
			n = row + 1
		}
	}
	out := make([]string, n)
	for row, l := range r.players {
		if row >= 0 {
			out[row] = l.Text
		}
	}
	return out
}

func (r *Recorder) RoundPlayersPanel() (label, body string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roundLabel, r.roundPlayers
}

func (r *Recorder) StatusLine() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.Text
}

func (r *Recorder) Transactions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return texts(r.transactions)
}

func (r *Recorder) Blocks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return texts(r.blocks)
}

func (r *Recorder) Fees() (string, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeHistory, r.feePercent
}

func (r *Recorder) Messages() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Message(nil), r.messages...)
}

// MessagesTagged 只返回指定 tag 的消息文本
func (r *Recorder) MessagesTagged(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, m := range r.messages {
		if m.Tag == tag {
			out = append(out, m.Text)
		}
	}
	return out
}

// Snapshot HTTP 接口使用
type Snapshot struct {
	Status       string    `json:"status"`
	Rounds       []Line    `json:"rounds"`
	Players      []string  `json:"players"`
	RoundLabel   string    `json:"round_label"`
	RoundPlayers string    `json:"round_players"`
	Transactions []Line    `json:"transactions"`
	Blocks       []Line    `json:"blocks"`
	FeeHistory   string    `json:"fee_history"`
	FeePercent   int64     `json:"fee_percent"`
	Messages     []Message `json:"messages"`
}

func (r *Recorder) Snapshot() Snapshot {
	players := r.PlayerLines()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Status:       r.status.Text,
		Rounds:       append([]Line{}, r.rounds...),
		Players:      players,
		RoundLabel:   r.roundLabel,
		RoundPlayers: r.roundPlayers,
		Transactions: append([]Line{}, r.transactions...),
		Blocks:       append([]Line{}, r.blocks...),
		FeeHistory:   r.feeHistory,
		FeePercent:   r.feePercent,
		Messages:     append([]Message{}, r.messages...),
	}
}

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
