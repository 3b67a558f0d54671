package bigsmall

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/dicebot/internal/domain"
	"github.com/betbot/dicebot/internal/modelgw"
)

// fakeGateway 测试用模型网关
type fakeGateway struct {
	content    string
	fail       bool
	lastSystem string
	lastPrompt string
	calls      int
}

func (f *fakeGateway) Call(_ context.Context, modelID, systemPrompt, userPrompt string, _ time.Duration) modelgw.Result {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastPrompt = userPrompt
	if f.fail {
		return modelgw.Result{Err: errors.New("网络超时")}
	}
	return modelgw.Result{Success: true, ModelID: modelID, Content: f.content}
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestPredictParsesFencedJSON(t *testing.T) {
	gw := &fakeGateway{content: "```json\n{\"direction\": \"big\", \"confidence\": 72, \"reason\": \"长龙延续\"}\n```"}
	p := NewPredictor(gw, time.Second)

	pred := p.Predict(context.Background(), testLog(), "m1", domain.History{1, 1, 1, 1, 1})

	assert.False(t, pred.Fallback)
	assert.Equal(t, domain.DirectionBig, pred.Direction)
	assert.Equal(t, 72, pred.Confidence)
	assert.Equal(t, "m1", pred.ModelID)
	assert.Equal(t, gw.lastPrompt, pred.Prompt, "审计保留发给模型的输入")
	assert.Equal(t, gw.content, pred.Raw, "审计保留模型原始回复")
}

func TestPredictAcceptsHanLabelAndProse(t *testing.T) {
	gw := &fakeGateway{content: "分析如下。结论: {\"prediction\": \"小\", \"confidence\": 200, \"reason\": \"回归\"}，仅供参考。"}
	p := NewPredictor(gw, time.Second)

	pred := p.Predict(context.Background(), testLog(), "m1", domain.History{0, 1, 0, 1})

	assert.False(t, pred.Fallback)
	assert.Equal(t, domain.DirectionSmall, pred.Direction)
	assert.Equal(t, 100, pred.Confidence, "置信度夹到 0-100")
}

func TestPredictFallbackOnModelFailure(t *testing.T) {
	gw := &fakeGateway{fail: true}
	p := NewPredictor(gw, time.Second)

	// "大"占多数 -> 回归兜底押"小"
	h := domain.History{}
	for i := 0; i < 15; i++ {
		h = h.Append(1)
	}
	for i := 0; i < 5; i++ {
		h = h.Append(0)
	}

	pred := p.Predict(context.Background(), testLog(), "m1", h)

	assert.True(t, pred.Fallback)
	assert.Equal(t, domain.DirectionSmall, pred.Direction)
	assert.Equal(t, 50, pred.Confidence)
}

func TestFallbackUsesLongWindowTiesToSmall(t *testing.T) {
	// 短窗口"大"占多数、长窗口"小"占多数：以长窗口为准押"大"欠账的一边
	h := domain.History{}
	for i := 0; i < 80; i++ {
		h = h.Append(0)
	}
	for i := 0; i < 12; i++ {
		h = h.Append(1)
	}
	for i := 0; i < 8; i++ {
		h = h.Append(0)
	}
	pred := fallbackPrediction(windowStats(h), patternChaosSwitch)
	assert.Equal(t, domain.DirectionBig, pred.Direction)

	// 大小持平时押"小"
	balanced := domain.History{}
	for i := 0; i < 50; i++ {
		balanced = balanced.Append(1)
		balanced = balanced.Append(0)
	}
	pred = fallbackPrediction(windowStats(balanced), patternSingleJump)
	assert.Equal(t, domain.DirectionSmall, pred.Direction)
}

func TestPredictFallbackOnUnparsableOutput(t *testing.T) {
	gw := &fakeGateway{content: "我觉得下一局是大"}
	p := NewPredictor(gw, time.Second)

	pred := p.Predict(context.Background(), testLog(), "m1", domain.History{0, 0, 0, 0})
	assert.True(t, pred.Fallback)
}

func TestPredictPromptCarriesWindowStats(t *testing.T) {
	gw := &fakeGateway{content: `{"direction": "big", "confidence": 60, "reason": "x"}`}
	p := NewPredictor(gw, time.Second)

	h := domain.History{}
	for i := 0; i < 120; i++ {
		h = h.Append(i % 2)
	}
	p.Predict(context.Background(), testLog(), "m1", h)

	require.Equal(t, 1, gw.calls)
	assert.Contains(t, gw.lastPrompt, "窗口20")
	assert.Contains(t, gw.lastPrompt, "窗口50")
	assert.Contains(t, gw.lastPrompt, "窗口100")
	assert.Contains(t, gw.lastPrompt, patternSingleJump)
}

func TestClassifyPattern(t *testing.T) {
	cases := []struct {
		name    string
		history domain.History
		want    string
	}{
		{"长龙", domain.History{0, 1, 1, 1, 1, 1}, patternLongDragon},
		{"龙苗", domain.History{0, 0, 1, 1, 1}, patternDragonCandidate},
		{"单跳", domain.History{0, 1, 0, 1, 0, 1}, patternSingleJump},
		{"对称", domain.History{1, 1, 0, 0, 0, 1}, patternSymmetricWrap},
		{"乱序", domain.History{1, 1, 0, 0, 1, 0}, patternChaosSwitch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, classifyPattern(c.history))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw, ok := extractJSONObject("前缀 {\"a\": \"含 } 的字符串\", \"b\": {\"c\": 1}} 后缀")
	require.True(t, ok)
	assert.Equal(t, "{\"a\": \"含 } 的字符串\", \"b\": {\"c\": 1}}", raw)

	_, ok = extractJSONObject("没有对象")
	assert.False(t, ok)

	_, ok = extractJSONObject("{\"未闭合\": 1")
	assert.False(t, ok)
}
