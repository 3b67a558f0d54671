package bigsmall

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/dicebot/internal/account"
	"github.com/betbot/dicebot/internal/domain"
	"github.com/betbot/dicebot/internal/modelgw"
)

// PauseDecision 风控评估结论
type PauseDecision struct {
	Trigger     bool
	Tier        string // base / deep
	Rounds      int
	Reason      string
	ModelBacked bool // 暂停局数来自模型建议（而不是本地兜底表）
}

const (
	tierBase = "base"
	tierDeep = "deep"
)

// riskManager 两级风控
// 基础级看滑动窗口胜率，带迟滞与周期预算；深度级看连输里程碑，
// 在结算路径里紧跟输单评估，不占用基础级预算。
type riskManager struct {
	cfg         *Config
	gw          modelgw.Gateway
	hintTimeout time.Duration
}

// EvaluateBase 基础风控：每笔结算后评估一次（窗口未满或本次没有新结算则跳过）
func (r *riskManager) EvaluateBase(ctx context.Context, log *logrus.Entry, st *account.State, modelID string) PauseDecision {
	rt := st.Counters

	settled := st.SettledCount()
	if settled == rt.RiskPauseSnapshotCount {
		return PauseDecision{}
	}
	rt.RiskPauseSnapshotCount = settled

	if settled < r.cfg.RiskWindowSize {
		return PauseDecision{}
	}

	window := st.SettledTail(r.cfg.RiskWindowSize)
	wins := 0
	for _, e := range window {
		if e.Result == domain.ResultWin {
			wins++
		}
	}

	switch {
	case wins <= r.cfg.RiskTriggerWins:
		rt.RiskBaseHitStreak++
		rt.RiskRecoveryPasses = 0
	case wins >= r.cfg.RiskRecoverWins:
		rt.RiskBaseHitStreak = 0
		rt.RiskRecoveryPasses++
		if rt.RiskRecoveryPasses >= r.cfg.RiskRecoverHits {
			if rt.RiskPauseCycleActive {
				log.Infof("🌤️ 胜率连续回暖 (窗口赢 %d/%d)，风控周期重置", wins, r.cfg.RiskWindowSize)
			}
			rt.ResetRiskCycle()
		}
		return PauseDecision{}
	default:
		rt.RiskBaseHitStreak = 0
		rt.RiskRecoveryPasses = 0
		return PauseDecision{}
	}

	if rt.RiskBaseHitStreak < r.cfg.RiskTriggerHits {
		return PauseDecision{}
	}
	rt.RiskBaseHitStreak = 0

	// 周期预算打满后不再追加暂停，等恢复条件重置周期
	budgetLeft := r.cfg.RiskCycleBudget - rt.RiskPauseAccRounds
	if rt.RiskPauseCycleActive && budgetLeft <= 0 {
		log.Warnf("⛔ 基础风控命中但周期预算已用尽 (累计 %d 局)", rt.RiskPauseAccRounds)
		return PauseDecision{}
	}
	if !rt.RiskPauseCycleActive {
		budgetLeft = r.cfg.RiskCycleBudget
	}

	cap := r.cfg.RiskMaxSinglePause
	if budgetLeft < cap {
		cap = budgetLeft
	}

	winRate := float64(wins) / float64(r.cfg.RiskWindowSize)
	rounds, modelBacked := r.pauseRounds(ctx, log, modelID, pauseHintInput{
		Tier:    tierBase,
		WinRate: winRate,
		Wins:    wins,
		Window:  r.cfg.RiskWindowSize,
		Recent:  st.History.Tail(12).String01(),
	}, cap)

	rt.RiskPauseCycleActive = true
	rt.RiskPauseAccRounds += rounds
	rt.RiskPauseBlockHits++
	rt.RiskPauseBlockRounds += rounds

	return PauseDecision{
		Trigger:     true,
		Tier:        tierBase,
		Rounds:      rounds,
		Reason:      fmt.Sprintf("窗口胜率低迷: 赢 %d/%d", wins, r.cfg.RiskWindowSize),
		ModelBacked: modelBacked,
	}
}

// EvaluateDeep 深度风控：输单结算后立即评估
// 只在连输数恰好是步长整数倍、且还没到连投硬上限时触发，
// 同一轮连输的同一档位只触发一次。
func (r *riskManager) EvaluateDeep(ctx context.Context, log *logrus.Entry, st *account.State, modelID string) PauseDecision {
	rt := st.Counters

	lc := rt.LoseCount
	if lc <= 0 || lc%r.cfg.DeepMilestoneStep != 0 {
		return PauseDecision{}
	}
	if lc >= rt.LoseStop {
		// 打满上限走硬停流程，不在这里重复处理
		return PauseDecision{}
	}
	if rt.HasDeepMilestone(lc) {
		return PauseDecision{}
	}
	rt.AddDeepMilestone(lc)

	cap := r.cfg.DeepLaterCap
	if lc == r.cfg.DeepMilestoneStep {
		cap = r.cfg.DeepFirstCap
	}

	rounds, modelBacked := r.pauseRounds(ctx, log, modelID, pauseHintInput{
		Tier:      tierDeep,
		LoseCount: lc,
		Recent:    st.History.Tail(12).String01(),
	}, cap)

	rt.RiskPauseBlockHits++
	rt.RiskPauseBlockRounds += rounds

	return PauseDecision{
		Trigger:     true,
		Tier:        tierDeep,
		Rounds:      rounds,
		Reason:      fmt.Sprintf("连输 %d 触发深度风控", lc),
		ModelBacked: modelBacked,
	}
}

// pauseHintInput 暂停建议的输入摘要
type pauseHintInput struct {
	Tier      string
	WinRate   float64
	Wins      int
	Window    int
	LoseCount int
	Recent    string // 最近约 12 局的 0/1 走势
}

// pauseHint 模型输出结构
type pauseHint struct {
	PauseRounds int    `json:"pause_rounds"`
	Reason      string `json:"reason"`
}

const pauseHintSystemPrompt = `你是风控助手。根据给出的战况摘要，建议暂停观望的局数。
只输出 JSON，格式: {"pause_rounds": 整数, "reason": "一句话理由"}`

// pauseRounds 取暂停局数：模型建议优先，超时/失败走兜底表，最后夹到 [1, cap]
func (r *riskManager) pauseRounds(ctx context.Context, log *logrus.Entry, modelID string, in pauseHintInput, cap int) (int, bool) {
	if cap < 1 {
		cap = 1
	}

	fallback := r.fallbackRounds(in)
	if r.gw == nil {
		return clampRounds(fallback, cap), false
	}

	var prompt string
	if in.Tier == tierDeep {
		prompt = fmt.Sprintf("深度风控: 当前连输 %d。", in.LoseCount)
	} else {
		prompt = fmt.Sprintf("基础风控: 最近 %d 局赢 %d 局 (胜率 %.0f%%)。", in.Window, in.Wins, in.WinRate*100)
	}
	if in.Recent != "" {
		prompt += fmt.Sprintf("最近走势(旧->新): %s。", in.Recent)
	}
	prompt += "建议暂停几局?"

	res := r.gw.Call(ctx, modelID, pauseHintSystemPrompt, prompt, r.hintTimeout)
	if !res.Success {
		log.Debugf("暂停建议获取失败，走兜底表: %v", res.Err)
		return clampRounds(fallback, cap), false
	}

	raw, ok := extractJSONObject(res.Content)
	if !ok {
		return clampRounds(fallback, cap), false
	}
	var hint pauseHint
	if err := json.Unmarshal([]byte(raw), &hint); err != nil || hint.PauseRounds < 1 {
		return clampRounds(fallback, cap), false
	}
	return clampRounds(hint.PauseRounds, cap), true
}

// fallbackRounds 本地兜底表
func (r *riskManager) fallbackRounds(in pauseHintInput) int {
	if in.Tier == tierDeep {
		if in.LoseCount >= 6 {
			return 2
		}
		return 3
	}
	switch {
	case in.WinRate <= 0.30:
		return 4
	case in.WinRate <= 0.35:
		return 3
	default:
		return 2
	}
}

func clampRounds(n, cap int) int {
	if n < 1 {
		return 1
	}
	if n > cap {
		return cap
	}
	return n
}
