package bigsmall

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/dicebot/internal/domain"
	"github.com/betbot/dicebot/internal/modelgw"
)

// Prediction 一次方向预测的结果
type Prediction struct {
	Direction  domain.Direction
	Confidence int    // 0-100
	Reason     string
	ModelID    string
	Fallback   bool   // 模型失败后走的本地回归兜底
	Prompt     string // 发给模型的输入摘要（审计用）
	Raw        string // 模型原始回复（兜底时为空）
}

// windowStat 单个观察窗口的统计
type windowStat struct {
	Size     int
	BigCount int
	Gap      int // 窗口一半 - 大的局数；为正说明"大"欠账
}

// 形态标签
const (
	patternLongDragon      = "LONG_DRAGON"      // 连串 >= 5
	patternDragonCandidate = "DRAGON_CANDIDATE" // 连串 >= 3
	patternSingleJump      = "SINGLE_JUMP"      // 最近 6 局完全交替
	patternSymmetricWrap   = "SYMMETRIC_WRAP"   // 最近 5 局回文
	patternChaosSwitch     = "CHAOS_SWITCH"     // 无明显形态
)

var predictorWindows = []int{20, 50, 100}

// Predictor 方向预测器：模型优先，失败时退回均值回归
type Predictor struct {
	gw      modelgw.Gateway
	timeout time.Duration
}

// NewPredictor 创建预测器
func NewPredictor(gw modelgw.Gateway, timeout time.Duration) *Predictor {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Predictor{gw: gw, timeout: timeout}
}

// Predict 基于开奖历史给出下一局方向
// 模型调用失败/超时/输出不可解析时，回退为最短窗口的回归方向，置信度 50。
func (p *Predictor) Predict(ctx context.Context, log *logrus.Entry, modelID string, history domain.History) Prediction {
	stats := windowStats(history)
	pattern := classifyPattern(history)
	prompt := buildPredictPrompt(history, stats, pattern)
	fallback := fallbackPrediction(stats, pattern)
	fallback.Prompt = prompt

	if p.gw == nil {
		return fallback
	}

	res := p.gw.Call(ctx, modelID, predictSystemPrompt, prompt, p.timeout)
	if !res.Success {
		log.Warnf("⚠️ 模型预测失败，使用回归兜底: %v", res.Err)
		return fallback
	}

	pred, ok := parsePrediction(res.Content)
	if !ok {
		log.Warnf("⚠️ 模型输出不可解析，使用回归兜底: %.120s", res.Content)
		fallback.Raw = res.Content
		return fallback
	}
	pred.ModelID = res.ModelID
	pred.Prompt = prompt
	pred.Raw = res.Content
	return pred
}

func windowStats(history domain.History) []windowStat {
	stats := make([]windowStat, 0, len(predictorWindows))
	for _, w := range predictorWindows {
		tail := history.Tail(w)
		big := tail.CountBig()
		stats = append(stats, windowStat{
			Size:     len(tail),
			BigCount: big,
			Gap:      len(tail)/2 - big,
		})
	}
	return stats
}

// classifyPattern 给尾部走势贴形态标签
func classifyPattern(history domain.History) string {
	streak, _ := history.CurrentStreak()
	switch {
	case streak >= 5:
		return patternLongDragon
	case streak >= 3:
		return patternDragonCandidate
	}
	if isAlternating(history.Tail(6)) {
		return patternSingleJump
	}
	if isPalindrome(history.Tail(5)) {
		return patternSymmetricWrap
	}
	return patternChaosSwitch
}

func isAlternating(tail domain.History) bool {
	if len(tail) < 6 {
		return false
	}
	for i := 1; i < len(tail); i++ {
		if tail[i] == tail[i-1] {
			return false
		}
	}
	return true
}

func isPalindrome(tail domain.History) bool {
	if len(tail) < 5 {
		return false
	}
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		if tail[i] != tail[j] {
			return false
		}
	}
	return true
}

// fallbackPrediction 均值回归兜底：押最长窗口里欠账的一边，持平押小
func fallbackPrediction(stats []windowStat, pattern string) Prediction {
	dir := domain.DirectionSmall
	if len(stats) > 0 && stats[len(stats)-1].Gap > 0 {
		dir = domain.DirectionBig
	}
	return Prediction{
		Direction:  dir,
		Confidence: 50,
		Reason:     fmt.Sprintf("回归兜底: 形态=%s", pattern),
		Fallback:   true,
	}
}

const predictSystemPrompt = `你是大小盘走势分析师。根据给出的历史序列（0=小，1=大）与窗口统计，预测下一局方向。
只输出 JSON，格式: {"direction": "big" 或 "small", "confidence": 0-100 的整数, "reason": "一句话理由"}`

func buildPredictPrompt(history domain.History, stats []windowStat, pattern string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "最近走势(旧->新): %s\n", history.Tail(100).String01())
	for _, s := range stats {
		fmt.Fprintf(&b, "窗口%d: 大=%d 小=%d 缺口=%d\n", s.Size, s.BigCount, s.Size-s.BigCount, s.Gap)
	}
	fmt.Fprintf(&b, "形态标签: %s\n", pattern)
	b.WriteString("给出下一局方向预测。")
	return b.String()
}

// modelPrediction 模型输出的 JSON 结构（direction/prediction 两种键名都接受）
type modelPrediction struct {
	Direction  string `json:"direction"`
	Prediction string `json:"prediction"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// parsePrediction 宽松解析模型输出：剥掉代码围栏，取第一段平衡的 {...}
func parsePrediction(content string) (Prediction, bool) {
	raw, ok := extractJSONObject(content)
	if !ok {
		return Prediction{}, false
	}

	var mp modelPrediction
	if err := json.Unmarshal([]byte(raw), &mp); err != nil {
		return Prediction{}, false
	}

	label := mp.Direction
	if label == "" {
		label = mp.Prediction
	}
	dir, err := domain.DirectionFromLabel(label)
	if err != nil {
		return Prediction{}, false
	}

	conf := mp.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}
	return Prediction{Direction: dir, Confidence: conf, Reason: mp.Reason}, true
}

// extractJSONObject 从自由文本里抠出第一段花括号平衡的 JSON 对象
func extractJSONObject(content string) (string, bool) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
