package events

import (
	"regexp"
	"time"

	"github.com/betbot/dicebot/internal/domain"
)

// RoundOpenedEvent 新一局开盘事件
// PromptText 末尾携带一段 0/1 历史串，HasStakeControls 表示消息带可点的
// 下注控件（没有控件的开盘消息只用于观察，不可下注）。
type RoundOpenedEvent struct {
	Account          string
	EventID          string
	PromptText       string
	HasStakeControls bool
	Timestamp        time.Time
}

// RoundSettledEvent 开奖结算事件
type RoundSettledEvent struct {
	Account     string
	EventID     string
	ResultValue int
	ResultLabel string // big / small
	Timestamp   time.Time
}

// Outcome 把结算标签转成 0/1 结果
func (e *RoundSettledEvent) Outcome() (int, error) {
	d, err := domain.DirectionFromLabel(e.ResultLabel)
	if err != nil {
		return 0, err
	}
	return int(d), nil
}

// OperatorCommandEvent 操作员指令事件
type OperatorCommandEvent struct {
	Account   string
	Command   string // pause / resume / setfund / preset / warning / on / off / model
	Args      []string
	Timestamp time.Time
}

var (
	historyHeadRe  = regexp.MustCompile(`\[0\s*小\s*1\s*大\]([\s\S]*)`)
	historyTokenRe = regexp.MustCompile(`(?:^|[^0-9])([01])(?:[^0-9]|$)`)
)

// DecodeHistoryTail 从开盘文案里解码尾部的 0/1 历史串
// 解码失败或解出来的串比本地已有历史短时返回 nil（保留本地历史）。
func DecodeHistoryTail(promptText string, localLen int) domain.History {
	m := historyHeadRe.FindStringSubmatch(promptText)
	if m == nil {
		return nil
	}

	var decoded domain.History
	rest := m[1]
	for len(rest) > 0 {
		loc := historyTokenRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		if rest[loc[2]] == '1' {
			decoded = append(decoded, 1)
		} else {
			decoded = append(decoded, 0)
		}
		// 从捕获组结束处继续，允许分隔符重叠
		rest = rest[loc[3]:]
	}

	if len(decoded) == 0 || len(decoded) < localLen {
		return nil
	}
	if len(decoded) > domain.MaxHistoryEntries {
		decoded = decoded[len(decoded)-domain.MaxHistoryEntries:]
	}
	return decoded
}
