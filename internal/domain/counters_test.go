package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplierByDepth(t *testing.T) {
	rt := NewRuntimeCounters()

	assert.Equal(t, 3.0, rt.Multiplier(1))
	assert.Equal(t, 2.1, rt.Multiplier(2))
	assert.Equal(t, 2.1, rt.Multiplier(3))
	assert.Equal(t, 2.05, rt.Multiplier(4))
	assert.Equal(t, 2.05, rt.Multiplier(9), "4 连输以上统一用 LoseFour")
}

func TestBookSettlement(t *testing.T) {
	rt := NewRuntimeCounters()
	fund := rt.GamblingFund

	rt.BookSettlement(true, 495)
	assert.Equal(t, fund+495, rt.GamblingFund)
	assert.Equal(t, int64(495), rt.PeriodProfit)
	assert.Equal(t, 1, rt.WinCount)
	assert.Equal(t, 0, rt.LoseCount)

	rt.BookSettlement(false, -500)
	rt.BookSettlement(false, -1500)
	assert.Equal(t, 0, rt.WinCount, "输单清空连赢")
	assert.Equal(t, 2, rt.LoseCount)
	assert.Equal(t, int64(495-500-1500), rt.PeriodProfit)

	rt.BookSettlement(true, 1485)
	assert.Equal(t, 0, rt.LoseCount, "赢单清空连输")
	assert.Equal(t, 2, rt.WinTotal)
}

func TestNextWagerIDDailyReset(t *testing.T) {
	rt := NewRuntimeCounters()
	rt.CurrentRound = 3
	rt.CurrentBetSeq = 7

	day1 := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	rt.LastResetDate = day1.Format("20060102")

	require.Equal(t, "20260825_3_7", rt.NextWagerID(day1))

	// 跨天：轮次与序号都回到 1
	day2 := day1.Add(24 * time.Hour)
	assert.Equal(t, "20260826_1_1", rt.NextWagerID(day2))
	assert.Equal(t, 1, rt.CurrentRound)
	assert.Equal(t, 1, rt.CurrentBetSeq)
}

func TestDeepMilestonesOncePerStreak(t *testing.T) {
	rt := NewRuntimeCounters()

	assert.False(t, rt.HasDeepMilestone(3))
	rt.AddDeepMilestone(3)
	assert.True(t, rt.HasDeepMilestone(3))

	// 重复记录被忽略
	rt.AddDeepMilestone(3)
	assert.Len(t, rt.RiskDeepMilestones, 1)

	rt.AddDeepMilestone(6)
	assert.Len(t, rt.RiskDeepMilestones, 2)

	rt.ClearDeepMilestones()
	assert.False(t, rt.HasDeepMilestone(3))
	assert.False(t, rt.HasDeepMilestone(6))
}

func TestApplyPresetResetsBetAmount(t *testing.T) {
	rt := NewRuntimeCounters()
	rt.BetAmount = 9000

	rt.ApplyPreset(Preset{
		Name: "aggressive", Continuous: 8, LoseStop: 10,
		LoseOnce: 3.0, LoseTwice: 2.2, LoseThree: 2.2, LoseFour: 2.1,
		InitialAmount: 1000,
	})

	assert.Equal(t, "aggressive", rt.CurrentPresetName)
	assert.Equal(t, int64(1000), rt.BetAmount)
	assert.Equal(t, 10, rt.LoseStop)
}

func TestFundAvailable(t *testing.T) {
	rt := NewRuntimeCounters()
	rt.GamblingFund = 1000

	assert.True(t, rt.FundAvailable(1000))
	assert.False(t, rt.FundAvailable(1001))

	rt.GamblingFund = 0
	assert.False(t, rt.FundAvailable(0))
}

func TestResetRiskCycle(t *testing.T) {
	rt := NewRuntimeCounters()
	rt.RiskPauseCycleActive = true
	rt.RiskPauseAccRounds = 8
	rt.RiskBaseHitStreak = 1
	rt.RiskRecoveryPasses = 2
	rt.RiskPauseSnapshotCount = 55

	rt.ResetRiskCycle()

	assert.False(t, rt.RiskPauseCycleActive)
	assert.Equal(t, 0, rt.RiskPauseAccRounds)
	assert.Equal(t, -1, rt.RiskPauseSnapshotCount)
}

func TestHistoryAppendBounded(t *testing.T) {
	var h History
	for i := 0; i < MaxHistoryEntries+50; i++ {
		h = h.Append(i % 2)
	}
	assert.Len(t, h, MaxHistoryEntries)

	// 非法值不追加
	n := len(h)
	h = h.Append(7)
	assert.Len(t, h, n)
}

func TestHistoryCurrentStreak(t *testing.T) {
	h := History{0, 0, 1, 1, 1}
	streak, dir := h.CurrentStreak()
	assert.Equal(t, 3, streak)
	assert.Equal(t, DirectionBig, dir)

	h = History{1, 0}
	streak, dir = h.CurrentStreak()
	assert.Equal(t, 1, streak)
	assert.Equal(t, DirectionSmall, dir)
}
