package bigsmall

import (
	"fmt"
	"strings"

	"github.com/betbot/dicebot/internal/account"
	"github.com/betbot/dicebot/internal/domain"
)

// 通知文案集中在这里，方便对照调整措辞

func countdownText(name, reason string, remaining int) string {
	return fmt.Sprintf("⏳ [%s] 观望中 (%s)，还剩 %d 局", name, reason, remaining)
}

// logicAuditText 最近一次预测的审计摘要（原始回复截断保存，兜底时存理由）
func logicAuditText(p Prediction) string {
	raw := p.Raw
	if raw == "" {
		raw = p.Reason
	}
	if r := []rune(raw); len(r) > 300 {
		raw = string(r[:300])
	}
	return fmt.Sprintf("%s|%d|%s", p.Direction.Han(), p.Confidence, raw)
}

func predictInfoText(p Prediction) string {
	src := p.ModelID
	if p.Fallback {
		src = "回归兜底"
	}
	return fmt.Sprintf("%s %d%% (%s)", p.Direction.Han(), p.Confidence, src)
}

func fundShortText(name string, rt *domain.RuntimeCounters, stake int64) string {
	return fmt.Sprintf("🈳 [%s] 资金不足: 余额 %d，下一注需要 %d，已硬停（setfund 补充后 resume 恢复）",
		name, rt.GamblingFund, stake)
}

func loseWarningText(name string, rt *domain.RuntimeCounters) string {
	loss := rt.LoseStart.Fund - rt.GamblingFund
	return fmt.Sprintf("🚨 [%s] 连输 %d 局 (阈值 %d)，累计损失 %d，当前注 %d，连投上限 %d，资金 %d",
		name, rt.LoseCount, rt.WarningLoseCount, loss, rt.BetAmount, rt.LoseStop, rt.GamblingFund)
}

func loseRecoveredText(name string, rt *domain.RuntimeCounters, recovered int64) string {
	sign := "+"
	if recovered < 0 {
		sign = ""
	}
	return fmt.Sprintf("🌈 [%s] 连输已终止 (起于第 %d 轮第 %d 手)，本段净变动 %s%d，资金 %d",
		name, rt.LoseStart.Round, rt.LoseStart.Seq, sign, recovered, rt.GamblingFund)
}

func accuracyText(total, modelBacked int) string {
	return fmt.Sprintf("模型预测占比: %d/%d", modelBacked, total)
}

// statsReportText 周期统计（限时消息，过期自动删除）
func statsReportText(name string, st *account.State, extra string) string {
	rt := st.Counters
	var b strings.Builder
	fmt.Fprintf(&b, "📊 [%s] 阶段统计\n", name)
	fmt.Fprintf(&b, "总局数 %d | 赢 %d | 胜率 %s\n", rt.Total, rt.WinTotal, percentText(rt.WinTotal, rt.Total))
	fmt.Fprintf(&b, "本轮收益 %d | 累计收益 %d\n", rt.PeriodProfit, rt.Earnings)
	fmt.Fprintf(&b, "资金 %d | 当前注 %d | 连输 %d\n", rt.GamblingFund, rt.BetAmount, rt.LoseCount)
	b.WriteString(streakTableText(st))
	if extra != "" {
		b.WriteString(extra)
	}
	return strings.TrimRight(b.String(), "\n")
}

var streakWindows = []int{1000, 500, 200, 100}

// streakTableText 各窗口内的最长连大/连小/连输
func streakTableText(st *account.State) string {
	var b strings.Builder
	for _, w := range streakWindows {
		tail := st.History.Tail(w)
		if len(tail) == 0 {
			continue
		}
		fmt.Fprintf(&b, "近%d: 连大 %d | 连小 %d | 连输 %d\n",
			w, maxRunOf(tail, 1), maxRunOf(tail, 0), maxLoseRun(st.SettledTail(w)))
	}
	return b.String()
}

// maxRunOf 序列里目标值的最长连串
func maxRunOf(h domain.History, target int) int {
	best, run := 0, 0
	for _, v := range h {
		if v == target {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

// maxLoseRun 已结算台账里的最长连输
func maxLoseRun(entries []domain.WagerLogEntry) int {
	best, run := 0, 0
	for _, e := range entries {
		if e.Result == domain.ResultLose {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

// summaryText 风控区间总结
func summaryText(name string, rt *domain.RuntimeCounters, every, budget int) string {
	return fmt.Sprintf("🧾 [%s] 近 %d 局风控总结: 触发 %d 次，累计观望 %d 局，周期预算 %d/%d",
		name, every, rt.RiskPauseBlockHits, rt.RiskPauseBlockRounds, rt.RiskPauseAccRounds, budget)
}

// dashboardText 运行面板：stats 指令回执，也在每笔结算后刷新式推送
func dashboardText(name string, st *account.State) string {
	rt := st.Counters
	var b strings.Builder
	fmt.Fprintf(&b, "🖥️ [%s] 运行面板\n", name)
	if grid := st.History.Tail(40).String01(); grid != "" {
		fmt.Fprintf(&b, "近40: %s\n", grid)
	}
	fmt.Fprintf(&b, "状态: %s", string(st.Pause.Mode))
	if st.Pause.InCountdown() {
		fmt.Fprintf(&b, " (还剩 %d 局, %s)", st.Pause.DisplayRemaining(), st.Pause.Reason)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "预设: %s | 轮次: %d | 手数: %d\n", rt.CurrentPresetName, rt.CurrentRound, rt.CurrentBetSeq)
	if rt.CurrentModelID != "" {
		fmt.Fprintf(&b, "模型: %s\n", rt.CurrentModelID)
	}
	fmt.Fprintf(&b, "总局数 %d | 赢 %d | 胜率 %s\n", rt.Total, rt.WinTotal, percentText(rt.WinTotal, rt.Total))
	fmt.Fprintf(&b, "连赢 %d | 连输 %d | 炸号 %d/%d\n", rt.WinCount, rt.LoseCount, rt.ExplodeCount, rt.Explode)
	fmt.Fprintf(&b, "资金 %d | 当前注 %d | 本轮收益 %d | 累计收益 %d\n", rt.GamblingFund, rt.BetAmount, rt.PeriodProfit, rt.Earnings)
	if rt.BalanceStatus == "success" {
		fmt.Fprintf(&b, "平台余额 %d\n", rt.AccountBalance)
	}
	if rt.LastPredictInfo != "" {
		fmt.Fprintf(&b, "最近预测: %s\n", rt.LastPredictInfo)
	}
	if st.Pending != nil {
		fmt.Fprintf(&b, "未结算: [%s] %s %d\n", st.Pending.ID, st.Pending.Direction.Han(), st.Pending.Stake)
	}
	return strings.TrimRight(b.String(), "\n")
}

func percentText(part, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}
