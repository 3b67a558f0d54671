package bigsmall

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/dicebot/internal/account"
	"github.com/betbot/dicebot/internal/domain"
	"github.com/betbot/dicebot/internal/events"
)

// applySettlement 把一条结算事件落到账号状态上
// 幂等性靠两道闸：结算事件 ID 去重 + 台账尾项已结算短路。
// 深度风控紧跟输单评估；基础风控每笔结算后评估一次。
func (s *Strategy) applySettlement(ctx context.Context, acct *account.Account, ev *events.RoundSettledEvent) {
	st := acct.State
	rt := st.Counters

	if ev.EventID != "" && ev.EventID == rt.LastSettleEventID {
		acct.Log.Debugf("重复结算事件，忽略: %s", ev.EventID)
		return
	}

	outcome, err := ev.Outcome()
	if err != nil {
		acct.Log.Warnf("⚠️ 结算方向无法识别: %v", err)
		return
	}

	st.History = st.History.Append(outcome)
	if ev.EventID != "" {
		rt.LastSettleEventID = ev.EventID
	}

	pending := st.Pending
	if pending == nil {
		// 观望局：只同步历史
		return
	}

	// 台账尾项已经是这笔的结算结果时直接短路（落盘晚于结算重放的场景）
	if n := len(st.WagerLog); n > 0 {
		last := st.WagerLog[n-1]
		if last.ID == pending.ID && last.Result.Settled() {
			st.Pending = nil
			return
		}
	}

	win := int(pending.Direction) == outcome
	var profit int64
	if win {
		profit = WinProfit(pending.Stake)
	} else {
		profit = -pending.Stake
	}

	fundBefore := rt.GamblingFund
	loseBefore := rt.LoseCount
	rt.Total++
	rt.BookSettlement(win, profit)

	st.AppendWagerLog(domain.WagerLogEntry{
		ID:           pending.ID,
		Sequence:     pending.Sequence,
		Direction:    pending.Direction,
		Stake:        pending.Stake,
		Result:       settleResult(win),
		Profit:       profit,
		LoseStop:     rt.LoseStop,
		ProfitTarget: rt.ProfitTarget,
	})
	st.Pending = nil

	if s.rec != nil {
		if err := s.rec.RecordWager(ctx, acct.Name, st.WagerLog[len(st.WagerLog)-1], time.Now()); err != nil {
			acct.Log.Warnf("⚠️ %v", err)
		}
	}

	if win {
		acct.Log.Infof("🎉 [%s] 赢 +%d (连赢 %d, 资金 %d)", pending.ID, profit, rt.WinCount, rt.GamblingFund)
		s.settleWin(acct, loseBefore)
	} else {
		acct.Log.Infof("💔 [%s] 输 %d (连输 %d, 资金 %d)", pending.ID, profit, rt.LoseCount, rt.GamblingFund)
		s.settleLoss(ctx, acct, fundBefore)
	}

	s.probeBalance(acct)
	s.checkProfitTarget(acct)
	s.evaluateBaseRisk(ctx, acct)
	s.maybeStatsReport(ctx, acct)
	s.maybeSummaryReport(acct)
	s.refreshDashboard(acct)
}

func settleResult(win bool) domain.WagerResult {
	if win {
		return domain.ResultWin
	}
	return domain.ResultLose
}

// settleWin 赢单收尾：回到起手注、清里程碑，必要时播报连输终止
// loseBefore 是本笔赢单结算前的连输数，用于连输区间校验。
func (s *Strategy) settleWin(acct *account.Account, loseBefore int) {
	rt := acct.State.Counters

	rt.ResetProgression()
	rt.ClearDeepMilestones()

	if rt.LoseNotifyPending {
		if loseRangeValid(rt, loseBefore) {
			recovered := rt.GamblingFund - rt.LoseStart.Fund
			s.notifyPriority(acct, loseRecoveredText(acct.Name, rt, recovered))
		} else {
			acct.Log.Warnf("⚠️ 连输起点快照异常 (起点 %d/%d, 当前 %d/%d, 结算前连输 %d)，跳过连输终止播报",
				rt.LoseStart.Round, rt.LoseStart.Seq, rt.CurrentRound, rt.CurrentBetSeq, loseBefore)
		}
	}
	rt.ClearLoseRecovery()
}

// loseRangeValid 连输区间校验：起点必须存在且不晚于当前位置，
// 且这段连输在结算前确实达到过告警阈值。倒置区间静默丢弃。
func loseRangeValid(rt *domain.RuntimeCounters, loseBefore int) bool {
	start := rt.LoseStart
	if start.Round < 1 || start.Seq < 1 {
		return false
	}
	if start.Round > rt.CurrentRound {
		return false
	}
	if start.Round == rt.CurrentRound && start.Seq > rt.CurrentBetSeq {
		return false
	}
	return loseBefore >= rt.WarningLoseCount
}

// settleLoss 输单收尾：连输跟踪、告警、炸号处理、深度风控
func (s *Strategy) settleLoss(ctx context.Context, acct *account.Account, fundBefore int64) {
	rt := acct.State.Counters

	if rt.LoseCount == 1 {
		rt.ClearDeepMilestones()
		rt.LoseStart = domain.LoseStartInfo{
			Round: rt.CurrentRound,
			Seq:   rt.CurrentBetSeq,
			Fund:  fundBefore, // 连输起点 = 首笔输单入账前的资金
		}
	}

	if rt.WarningLoseCount > 0 && rt.LoseCount >= rt.WarningLoseCount && !rt.LoseNotifyPending {
		rt.LoseNotifyPending = true
		s.notifyPriority(acct, loseWarningText(acct.Name, rt))
	}

	if rt.LoseCount >= rt.LoseStop {
		s.handleBust(acct)
		return
	}

	if d := s.risk.EvaluateDeep(ctx, acct.Log, acct.State, s.modelID(acct)); d.Trigger {
		s.applyPause(acct, d)
	}
}

// handleBust 连输打满硬上限（炸号）
// 炸号次数未达保护阈值时硬停等操作员处理；达到阈值则强制观望
// Stop 局并整体重置本轮进度。
func (s *Strategy) handleBust(acct *account.Account) {
	st := acct.State
	rt := st.Counters

	rt.ExplodeCount++
	acct.Log.Errorf("💥 连输打满上限 %d，炸号 %d/%d", rt.LoseStop, rt.ExplodeCount, rt.Explode)

	if rt.ExplodeCount >= rt.Explode {
		rt.ExplodeCount = 0
		rt.LoseCount = 0
		rt.WinCount = 0
		rt.PeriodProfit = 0
		rt.ResetProgression()
		rt.ClearDeepMilestones()
		rt.ClearLoseRecovery()
		st.Pause.StartCountdown("炸号保护", rt.Stop)
		s.notifyPriority(acct, fmt.Sprintf("🛑 [%s] 炸号达 %d 次，强制观望 %d 局后重新开始", acct.Name, rt.Explode, rt.Stop))
		return
	}

	if !rt.LimitStopNotified {
		rt.LimitStopNotified = true
		s.notifyPriority(acct, fmt.Sprintf("⛔ [%s] 连输 %d 已打满连投上限，已硬停，等待处理（resume 恢复并重置进度）", acct.Name, rt.LoseCount))
	}
	st.Pause.HardStop("连投打满上限")
}

// probeBalance 结算后刷新平台余额快照
// 探测失败保留上一次的余额值，只把状态标成 network_error。
func (s *Strategy) probeBalance(acct *account.Account) {
	if s.balances == nil {
		return
	}
	rt := acct.State.Counters
	if v, ok := s.balances.Balance(acct.Name); ok {
		rt.AccountBalance = v
		rt.BalanceStatus = "success"
	} else {
		rt.BalanceStatus = "network_error"
	}
}

// checkProfitTarget 本轮盈利达标后强制休整并进入下一轮
func (s *Strategy) checkProfitTarget(acct *account.Account) {
	st := acct.State
	rt := st.Counters

	if rt.ProfitTarget <= 0 || rt.PeriodProfit < rt.ProfitTarget {
		return
	}

	profit := rt.PeriodProfit
	rt.PeriodProfit = 0
	rt.ExplodeCount = 0
	rt.CurrentRound++
	rt.CurrentBetSeq = 1
	rt.ResetProgression()
	rt.ClearDeepMilestones()
	rt.ClearLoseRecovery()

	st.Pause.StartCountdown("盈利达标休整", rt.ProfitStop)
	s.notifyPriority(acct, fmt.Sprintf("🏆 [%s] 本轮盈利 %d 达标，休整 %d 局，进入第 %d 轮", acct.Name, profit, rt.ProfitStop, rt.CurrentRound))
}

// evaluateBaseRisk 基础风控评估与执行
func (s *Strategy) evaluateBaseRisk(ctx context.Context, acct *account.Account) {
	if d := s.risk.EvaluateBase(ctx, acct.Log, acct.State, s.modelID(acct)); d.Trigger {
		s.applyPause(acct, d)
	}
}

// applyPause 执行风控暂停并通知
func (s *Strategy) applyPause(acct *account.Account, d PauseDecision) {
	acct.State.Pause.StartCountdown(d.Reason, d.Rounds)

	src := "兜底表"
	if d.ModelBacked {
		src = "模型建议"
	}
	acct.Log.Warnf("⏸️ [%s风控] %s，暂停 %d 局 (%s)", tierHan(d.Tier), d.Reason, d.Rounds, src)
	s.notifyPriority(acct, fmt.Sprintf("⏸️ [%s] %s风控触发: %s，观望 %d 局 (%s)", acct.Name, tierHan(d.Tier), d.Reason, d.Rounds, src))
}

func tierHan(tier string) string {
	if tier == tierDeep {
		return "深度"
	}
	return "基础"
}
