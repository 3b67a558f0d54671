package bigsmall

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/dicebot/internal/domain"
)

// 倍投公式里的手续费补偿系数：平台抽水 1%，押注额上浮 1% 才能覆盖
var feeCompensation = decimal.NewFromFloat(1.01)

// 结算抽水：赢单利润 = floor(本金 × 0.99)
var payoutRate = decimal.NewFromFloat(0.99)

// NextStake 计算下一笔押注金额
// 返回 0 表示本次加仓会越过连投硬上限，调用方必须硬停而不是下注。
func NextStake(rt *domain.RuntimeCounters) int64 {
	if rt.LoseCount == 0 {
		// 起手注同样取整到面额，预设里写了非面额整数倍也不会漏下去
		return RoundToDenomination(decimal.NewFromInt(rt.InitialAmount))
	}
	if rt.LoseCount+1 > rt.LoseStop {
		return 0
	}
	raw := decimal.NewFromInt(rt.BetAmount).
		Mul(decimal.NewFromFloat(rt.Multiplier(rt.LoseCount))).
		Mul(feeCompensation)
	return RoundToDenomination(raw)
}

// RoundToDenomination 把金额取整到押注面额的整数倍（四舍五入，恰好一半向上）
func RoundToDenomination(raw decimal.Decimal) int64 {
	denom := decimal.NewFromInt(domain.StakeDenomination)
	// shopspring 的 Round 对正数是 half-up，正好是需要的语义
	v := raw.Div(denom).Round(0).Mul(denom).IntPart()
	if v < domain.StakeDenomination {
		v = domain.StakeDenomination
	}
	return v
}

// WinProfit 赢单利润：floor(本金 × 0.99)
func WinProfit(stake int64) int64 {
	return decimal.NewFromInt(stake).Mul(payoutRate).Floor().IntPart()
}
