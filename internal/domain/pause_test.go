package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 倒计时暂停 n 局：第一次扣减发生在下一个下注机会（此时还没错过任何
// 一局），所以实际要跳过 n 个真实下注机会后才恢复。
func TestCountdownSkipsExactRounds(t *testing.T) {
	p := NewPauseState()
	p.StartCountdown("测试", 3)

	require.Equal(t, ModeCountdownPaused, p.Mode)
	require.Equal(t, 4, p.Remaining, "内部预充一局")

	skipped := 0
	for i := 0; i < 10; i++ {
		resumed, skip := p.TickBetOpportunity()
		if resumed {
			break
		}
		require.True(t, skip)
		skipped++
	}

	assert.Equal(t, 3, skipped, "恰好观望 3 局")
	assert.Equal(t, ModeActive, p.Mode)
	assert.True(t, p.BettingAllowed())
}

func TestCountdownDoesNotStack(t *testing.T) {
	p := NewPauseState()
	p.StartCountdown("第一次", 5)
	p.StartCountdown("第二次", 2)

	assert.Equal(t, 6, p.Remaining, "取较大剩余，不叠加")
	assert.Equal(t, "第一次", p.Reason, "更长的暂停还没走完")

	p.StartCountdown("加长", 8)
	assert.Equal(t, 9, p.Remaining)
	assert.Equal(t, "加长", p.Reason)
}

func TestManualPauseDuringCountdownWinsAtExpiry(t *testing.T) {
	p := NewPauseState()
	p.StartCountdown("风控", 2)
	p.RequestManualPause()

	require.True(t, p.ManualRequested)

	var resumed bool
	for i := 0; i < 5; i++ {
		var skip bool
		resumed, skip = p.TickBetOpportunity()
		if !skip {
			break
		}
	}

	assert.False(t, resumed, "倒计时结束转入手动暂停而不是恢复")
	assert.Equal(t, ModeManualPaused, p.Mode)
	assert.False(t, p.BettingAllowed())

	p.Resume()
	assert.Equal(t, ModeActive, p.Mode)
}

func TestManualPauseWhileActive(t *testing.T) {
	p := NewPauseState()
	p.RequestManualPause()

	assert.Equal(t, ModeManualPaused, p.Mode)

	// 手动暂停期间风控倒计时不得接管
	p.StartCountdown("风控", 3)
	assert.Equal(t, ModeManualPaused, p.Mode)

	_, skip := p.TickBetOpportunity()
	assert.True(t, skip)
}

func TestHardStopRequiresExplicitResume(t *testing.T) {
	p := NewPauseState()
	p.HardStop("资金不足")

	require.Equal(t, ModeHardStopped, p.Mode)

	p.StartCountdown("风控", 2)
	assert.Equal(t, ModeHardStopped, p.Mode, "硬停不被倒计时覆盖")

	_, skip := p.TickBetOpportunity()
	assert.True(t, skip)

	p.Resume()
	assert.Equal(t, ModeActive, p.Mode)
}

func TestDisplayRemainingHidesPriming(t *testing.T) {
	p := NewPauseState()
	p.StartCountdown("测试", 3)

	// 预充后 Remaining=4，但对外展示 3
	assert.Equal(t, 3, p.DisplayRemaining())

	p.TickBetOpportunity()
	assert.Equal(t, 2, p.DisplayRemaining())

	p.TickBetOpportunity()
	assert.Equal(t, 1, p.DisplayRemaining())

	p.TickBetOpportunity()
	assert.Equal(t, 0, p.DisplayRemaining())
}

func TestCountdownMinimumOneRound(t *testing.T) {
	p := NewPauseState()
	p.StartCountdown("测试", 0)

	skipped := 0
	for i := 0; i < 5; i++ {
		resumed, _ := p.TickBetOpportunity()
		if resumed {
			break
		}
		skipped++
	}
	assert.Equal(t, 1, skipped)
}
