package display

import "si-monitor/internal/game"

// Multi 把输出转发给多个 Display
type Multi []game.Display

func (m Multi) InsertRound(line string, ts int64) {
	for _, d := range m {
		d.InsertRound(line, ts)
	}
}

func (m Multi) UpdateRound(index int, line string, ts int64) {
	for _, d := range m {
		d.UpdateRound(index, line, ts)
	}
}

func (m Multi) RoundPlayers(label string, body string) {
	for _, d := range m {
		d.RoundPlayers(label, body)
	}
}

func (m Multi) PlayerLine(row int, text string, ts int64, isNew bool) {
	for _, d := range m {
		d.PlayerLine(row, text, ts, isNew)
	}
}

func (m Multi) Status(line string, ts int64) {
	for _, d := range m {
		d.Status(line, ts)
	}
}

func (m Multi) Transaction(line string, ts int64) {
	for _, d := range m {
		d.Transaction(line, ts)
	}
}

func (m Multi) BlockLine(line string, ts int64) {
	for _, d := range m {
		d.BlockLine(line, ts)
	}
}

func (m Multi) FeeHistory(history string, percent int64) {
	for _, d := range m {
		d.FeeHistory(history, percent)
	}
}

func (m Multi) Message(text string, tag string) {
	for _, d := range m {
		d.Message(text, tag)
	}
}
