package bigsmall

import (
	"testing"
	"testing/quick"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/betbot/dicebot/internal/domain"
)

// 性质：取整后的押注额永远是面额的正整数倍，且偏离原始值不超过半个面额
func TestRoundToDenominationProperties(t *testing.T) {
	f := func(raw uint32) bool {
		v := int64(raw%1_000_000_000) + domain.StakeDenomination
		got := RoundToDenomination(decimal.NewFromInt(v))

		if got < domain.StakeDenomination || got%domain.StakeDenomination != 0 {
			return false
		}
		diff := got - v
		if diff < 0 {
			diff = -diff
		}
		return diff <= domain.StakeDenomination/2
	}
	assert.NoError(t, quick.Check(f, &quick.Config{MaxCount: 2000}))
}

// 性质：任意连输深度下，下一注要么是面额整数倍，要么是 0（越过硬上限）
func TestNextStakeProperties(t *testing.T) {
	f := func(loseCount uint8, betAmount uint16) bool {
		rt := domain.NewRuntimeCounters()
		rt.LoseCount = int(loseCount % 20)
		rt.BetAmount = (int64(betAmount%2000) + 1) * domain.StakeDenomination

		stake := NextStake(rt)
		if rt.LoseCount+1 > rt.LoseStop {
			return stake == 0
		}
		return stake >= domain.StakeDenomination && stake%domain.StakeDenomination == 0
	}
	assert.NoError(t, quick.Check(f, &quick.Config{MaxCount: 2000}))
}

// 性质：暂停状态机在任意操作序列下剩余局数不为负，且
// "允许下注"当且仅当处于活跃态
func TestPauseStateMachineProperties(t *testing.T) {
	f := func(ops []uint8) bool {
		p := domain.NewPauseState()
		for _, op := range ops {
			switch op % 5 {
			case 0:
				p.StartCountdown("x", int(op%13))
			case 1:
				p.TickBetOpportunity()
			case 2:
				p.RequestManualPause()
			case 3:
				p.Resume()
			case 4:
				p.HardStop("x")
			}
			if p.Remaining < 0 {
				return false
			}
			if p.BettingAllowed() != (p.Mode == domain.ModeActive) {
				return false
			}
			if p.Mode != domain.ModeCountdownPaused && p.Remaining != 0 {
				return false
			}
		}
		return true
	}
	assert.NoError(t, quick.Check(f, &quick.Config{MaxCount: 500}))
}

// 性质：倒计时暂停 n 局后，恰好跳过 n 个下注机会并自动恢复
func TestCountdownRoundTripProperty(t *testing.T) {
	f := func(n uint8) bool {
		rounds := int(n%12) + 1
		p := domain.NewPauseState()
		p.StartCountdown("x", rounds)

		skipped := 0
		for i := 0; i < rounds+5; i++ {
			resumed, skip := p.TickBetOpportunity()
			if resumed {
				break
			}
			if !skip {
				return false
			}
			skipped++
		}
		return skipped == rounds && p.BettingAllowed()
	}
	assert.NoError(t, quick.Check(f, &quick.Config{MaxCount: 200}))
}
