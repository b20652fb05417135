package game

import "sort"

// 只读快照，供 HTTP 接口和定时任务使用

type RevealView struct {
	Round uint64 `json:"round"`
	Hash  string `json:"hash"`
	Depth uint8  `json:"depth"`
}

type PlayerView struct {
	Overlay        string       `json:"overlay"`
	Account        string       `json:"account,omitempty"`
	Highlighted    bool         `json:"highlighted"`
	Line           int          `json:"line"`
	Playing        bool         `json:"playing"`
	LastBlock      uint64       `json:"last_block"`
	LastAction     string       `json:"last_action,omitempty"`
	PlayCount      int          `json:"play_count"`
	WinCount       int          `json:"win_count"`
	Amount         string       `json:"amount"`
	Stake          string       `json:"stake,omitempty"`
	Slashed        string       `json:"slashed,omitempty"`
	SlashUncharged string       `json:"slash_uncharged,omitempty"`
	StakeCount     int          `json:"stake_count"`
	FrozenUntil    uint64       `json:"frozen_until,omitempty"`
	FreezeCount    int          `json:"freeze_count"`
	SlashCount     int          `json:"slash_count"`
	Reveals        []RevealView `json:"reveals,omitempty"`
}

type HashView struct {
	Hash      string `json:"hash"`
	Count     int    `json:"count"`
	Depth     uint8  `json:"depth"`
	Highlight bool   `json:"highlight"`
}

type ClaimView struct {
	Overlay string `json:"overlay"`
	Account string `json:"account,omitempty"`
	Truth   string `json:"truth"`
	Depth   uint8  `json:"depth"`
	Amount  string `json:"amount"`
	Block   uint64 `json:"block"`
}

type RoundView struct {
	ID        uint64     `json:"id"`
	LastBlock uint64     `json:"last_block"`
	Commits   int        `json:"commits"`
	Reveals   int        `json:"reveals"`
	Slashes   int        `json:"slashes"`
	Freezes   int        `json:"freezes"`
	Players   []string   `json:"players"`
	Hashes    []HashView `json:"hashes"`
	Anchor    string     `json:"anchor,omitempty"`
	Claim     *ClaimView `json:"claim,omitempty"`
	Unclaimed bool       `json:"unclaimed"`
	Line      string     `json:"line"`
}

type Snapshot struct {
	CurrentRound uint64   `json:"current_round"`
	Started      bool     `json:"started"`
	LastBlock    uint64   `json:"last_block"`
	RunningDepth uint8    `json:"running_depth"`
	Players      int      `json:"players"`
	Rounds       int      `json:"rounds"`
	MyOverlays   []string `json:"my_overlays"`
	MyAccounts   []string `json:"my_accounts"`
}

func sortReveals(r []RevealView) {
	sort.Slice(r, func(i, j int) bool { return r[i].Round < r[j].Round })
}
