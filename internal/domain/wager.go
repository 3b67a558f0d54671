package domain

import (
	"fmt"
	"strings"
	"time"
)

// Direction 押注方向（0=小，1=大）
type Direction int

const (
	DirectionSmall Direction = 0
	DirectionBig   Direction = 1
)

// Label 返回英文标签（big/small），与事件流里的 resultLabel 对应
func (d Direction) Label() string {
	if d == DirectionBig {
		return "big"
	}
	return "small"
}

// Han 返回中文标签（大/小），用于通知文案
func (d Direction) Han() string {
	if d == DirectionBig {
		return "大"
	}
	return "小"
}

// Valid 判断方向是否合法
func (d Direction) Valid() bool {
	return d == DirectionSmall || d == DirectionBig
}

// DirectionFromLabel 从事件流标签解析方向
func DirectionFromLabel(label string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "big", "大", "1", "b":
		return DirectionBig, nil
	case "small", "小", "0", "s":
		return DirectionSmall, nil
	}
	return DirectionSmall, fmt.Errorf("无法识别的方向标签: %q", label)
}

// WagerResult 单笔押注的结算状态
type WagerResult string

const (
	ResultPending WagerResult = "pending"
	ResultWin     WagerResult = "win"
	ResultLose    WagerResult = "lose"
)

// Settled 是否已结算
func (r WagerResult) Settled() bool {
	return r == ResultWin || r == ResultLose
}

// PendingWager 未结算押注
// 每个账号同一时刻至多一笔；结算时被消费并把结果写回台账尾项。
type PendingWager struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"sequence"`
	Direction Direction `json:"direction"`
	Stake     int64     `json:"stake"`
	PlacedAt  time.Time `json:"placedAt"`
}

// WagerLogEntry 押注台账条目（append-only，结果仅从 pending 迁移一次）
type WagerLogEntry struct {
	ID           string      `json:"id"`
	Sequence     int         `json:"sequence"`
	Direction    Direction   `json:"direction"`
	Stake        int64       `json:"stake"`
	Result       WagerResult `json:"result"`
	Profit       int64       `json:"profit"`
	LoseStop     int         `json:"loseStop"`
	ProfitTarget int64       `json:"profitTarget"`
}

// MaxWagerLogEntries 台账最大长度（超出后裁掉最旧的）
const MaxWagerLogEntries = 5000

// MaxHistoryEntries 开奖历史最大长度
const MaxHistoryEntries = 2000

// StakeDenomination 押注面额：所有下注金额都是 500 的整数倍
const StakeDenomination = 500

// History 开奖历史（0=小，1=大），有界，只追加（裁剪最旧项除外）
type History []int

// Append 追加一局结果并裁剪到上限
func (h History) Append(outcome int) History {
	if outcome != 0 && outcome != 1 {
		return h
	}
	h = append(h, outcome)
	if len(h) > MaxHistoryEntries {
		h = h[len(h)-MaxHistoryEntries:]
	}
	return h
}

// Tail 返回最近 n 局（不足 n 时返回全部）
func (h History) Tail(n int) History {
	if n <= 0 {
		return History{}
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// String01 以 0/1 字符串表示
func (h History) String01() string {
	var b strings.Builder
	b.Grow(len(h))
	for _, v := range h {
		if v == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// CountBig 统计其中"大"的局数
func (h History) CountBig() int {
	n := 0
	for _, v := range h {
		if v == 1 {
			n++
		}
	}
	return n
}

// CurrentStreak 返回尾部连串长度与方向
func (h History) CurrentStreak() (int, Direction) {
	if len(h) == 0 {
		return 0, DirectionBig
	}
	tail := h[len(h)-1]
	streak := 1
	for i := len(h) - 2; i >= 0; i-- {
		if h[i] != tail {
			break
		}
		streak++
	}
	return streak, Direction(tail)
}
