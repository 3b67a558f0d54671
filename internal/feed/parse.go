package feed

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// 结算文案形如 "已结算: 结果为 14 大"
var settleRe = regexp.MustCompile(`已结算[:：]\s*结果为\s*(\d+)\s*(大|小)`)

// ErrNotSettleText 表示文案不是结算消息
var ErrNotSettleText = errors.New("不是结算文案")

// ParseSettleText 解析结算文案，返回点数与方向标签（big/small）
func ParseSettleText(text string) (value int, label string, err error) {
	m := settleRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", ErrNotSettleText
	}
	value, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, "", errors.Wrapf(err, "结算点数解析失败: %q", m[1])
	}
	if m[2] == "大" {
		label = "big"
	} else {
		label = "small"
	}
	return value, label, nil
}

// IsRoundPrompt 判断文案是否为开盘提示（带历史串标记）
func IsRoundPrompt(text string) bool {
	return strings.Contains(text, "[0") && strings.Contains(text, "1 大]") ||
		strings.Contains(text, "[0 小 1 大]")
}
