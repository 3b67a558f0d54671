package bigsmall

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/dicebot/internal/account"
	"github.com/betbot/dicebot/internal/domain"
	"github.com/betbot/dicebot/internal/events"
	"github.com/betbot/dicebot/internal/feed"
	"github.com/betbot/dicebot/internal/modelgw"
	"github.com/betbot/dicebot/internal/notify"
	"github.com/betbot/dicebot/internal/recorder"
)

var log = logrus.WithField("strategy", ID)

// BalanceSource 平台余额探测源
type BalanceSource interface {
	Balance(account string) (int64, bool)
}

// Deps 策略外部依赖
type Deps struct {
	Accounts         *account.Manager
	Placer           feed.Placer
	Gateway          modelgw.Gateway
	Notifier         *notify.Notifier
	Recorder         *recorder.Recorder
	Balances         BalanceSource
	DefaultModelID   string
	PredictTimeout   time.Duration
	PauseHintTimeout time.Duration
}

// Strategy 大小盘倍投策略
// 每个账号的开盘/结算/指令处理都在该账号的锁内串行执行，
// 不同账号互不阻塞。
type Strategy struct {
	cfg Config

	accounts  *account.Manager
	placer    feed.Placer
	predictor *Predictor
	risk      *riskManager
	notifier  *notify.Notifier
	rec       *recorder.Recorder
	balances  BalanceSource

	defaultModelID string
}

// New 创建策略实例
func New(cfg Config, deps Deps) (*Strategy, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st := &Strategy{
		cfg:            cfg,
		accounts:       deps.Accounts,
		placer:         deps.Placer,
		predictor:      NewPredictor(deps.Gateway, deps.PredictTimeout),
		notifier:       deps.Notifier,
		rec:            deps.Recorder,
		balances:       deps.Balances,
		defaultModelID: deps.DefaultModelID,
	}
	st.risk = &riskManager{
		cfg:         &st.cfg,
		gw:          deps.Gateway,
		hintTimeout: deps.PauseHintTimeout,
	}
	return st, nil
}

// OnRoundOpened 开盘事件：同步历史、推进暂停倒计时、预测并下注
func (s *Strategy) OnRoundOpened(ctx context.Context, ev *events.RoundOpenedEvent) error {
	acct, ok := s.accounts.Get(ev.Account)
	if !ok {
		return nil
	}
	acct.Lock()
	defer acct.Unlock()

	st := acct.State
	rt := st.Counters

	// 以事件流里的历史串为准（只接受不短于本地的串）
	if decoded := events.DecodeHistoryTail(ev.PromptText, len(st.History)); decoded != nil {
		st.History = decoded
	}

	if !ev.HasStakeControls {
		acct.Save()
		return nil
	}
	if !st.Enabled {
		acct.Save()
		return nil
	}

	// 下注机会：先推进暂停状态机
	resumed, skip := st.Pause.TickBetOpportunity()
	if resumed {
		acct.Log.Info("▶️ 暂停结束，恢复押注")
		s.notifyAdmin(acct, "▶️ ["+acct.Name+"] 观望结束，恢复押注")
	}
	if skip {
		s.refreshCountdownNotice(acct)
		acct.Save()
		return nil
	}

	stake := NextStake(rt)
	if stake == 0 {
		// 正常情况下炸号已在结算路径硬停过，这里是兜底
		if !rt.LimitStopNotified {
			rt.LimitStopNotified = true
			s.notifyPriority(acct, "⛔ ["+acct.Name+"] 连投已达硬上限，停止加仓")
		}
		st.Pause.HardStop("连投打满上限")
		acct.Save()
		return nil
	}

	if !rt.FundAvailable(stake) {
		if !rt.FundPauseNotified {
			rt.FundPauseNotified = true
			s.notifyPriority(acct, fundShortText(acct.Name, rt, stake))
		}
		st.Pause.HardStop("资金不足")
		acct.Save()
		return nil
	}

	pred := s.predictor.Predict(ctx, acct.Log, s.modelID(acct), st.History)
	rt.LastPredictInfo = predictInfoText(pred)
	rt.LastLogicAudit = logicAuditText(pred)
	if s.rec != nil {
		if err := s.rec.RecordPrediction(ctx, acct.Name, pred.ModelID, pred.Direction, pred.Confidence, pred.Fallback, pred.Reason, pred.Prompt, pred.Raw); err != nil {
			acct.Log.Debugf("预测审计写入失败: %v", err)
		}
	}

	wagerID := rt.NextWagerID(time.Now())
	if err := s.placer.PlaceStake(ctx, acct.Name, ev.EventID, pred.Direction, stake); err != nil {
		// 下注失败按观望处理，进度不动，下一局重新来
		acct.Log.Errorf("❌ [%s] 押注失败: %v", wagerID, err)
		acct.Save()
		return nil
	}

	seq := rt.CurrentBetSeq
	rt.CurrentBetSeq++
	rt.BetAmount = stake
	rt.BetType = pred.Direction
	rt.BetSequenceCount++
	st.Pending = &domain.PendingWager{
		ID:        wagerID,
		Sequence:  seq,
		Direction: pred.Direction,
		Stake:     stake,
		PlacedAt:  time.Now(),
	}
	st.Predictions = appendBounded(st.Predictions, int(pred.Direction))
	st.BetTypeHistory = appendBounded(st.BetTypeHistory, int(pred.Direction))

	acct.Log.Infof("🎯 [%s] 押 %s %d (连输 %d, 置信 %d%%)", wagerID, pred.Direction.Han(), stake, rt.LoseCount, pred.Confidence)
	acct.Save()
	return nil
}

// OnRoundSettled 结算事件：对账并推进风控
func (s *Strategy) OnRoundSettled(ctx context.Context, ev *events.RoundSettledEvent) error {
	acct, ok := s.accounts.Get(ev.Account)
	if !ok {
		return nil
	}
	acct.Lock()
	defer acct.Unlock()

	s.applySettlement(ctx, acct, ev)
	acct.Save()
	return nil
}

// refreshCountdownNotice 倒计时进度通知（剩余局数没变就不重发）
func (s *Strategy) refreshCountdownNotice(acct *account.Account) {
	ps := acct.State.Pause
	if !ps.InCountdown() {
		return
	}
	remaining := ps.DisplayRemaining()
	if remaining == ps.NoticeLastRemaining {
		return
	}
	ps.NoticeLastRemaining = remaining
	if remaining <= 0 {
		return
	}
	if s.notifier != nil {
		s.notifier.Refresh("countdown:"+acct.Name, countdownText(acct.Name, ps.Reason, remaining))
	}
}

// refreshDashboard 结算后刷新运行面板（删掉上一条，避免刷屏）
func (s *Strategy) refreshDashboard(acct *account.Account) {
	if s.notifier != nil {
		s.notifier.Refresh("dashboard:"+acct.Name, dashboardText(acct.Name, acct.State))
	}
}

// maybeStatsReport 每 N 笔结算发一次限时统计
func (s *Strategy) maybeStatsReport(ctx context.Context, acct *account.Account) {
	rt := acct.State.Counters
	if rt.Total-rt.StatsLastReportTotal < s.cfg.StatsReportEvery {
		return
	}
	rt.StatsLastReportTotal = rt.Total

	text := statsReportText(acct.Name, acct.State, s.accuracyLine(ctx, acct))
	if s.notifier != nil {
		s.notifier.SendEphemeral(text, time.Duration(s.cfg.StatsReportTTLSec)*time.Second)
	}
}

// maybeSummaryReport 每 N 局发一次风控总结并清区间计数
func (s *Strategy) maybeSummaryReport(acct *account.Account) {
	rt := acct.State.Counters
	if rt.Total-rt.RiskPauseLast100Report < s.cfg.SummaryEvery {
		return
	}

	text := summaryText(acct.Name, rt, s.cfg.SummaryEvery, s.cfg.RiskCycleBudget)
	rt.RiskPauseLast100Report = rt.Total
	rt.RiskPauseBlockHits = 0
	rt.RiskPauseBlockRounds = 0

	s.notifyPriority(acct, text)
}

// accuracyLine 从台账统计模型预测占比（失败时返回空串）
func (s *Strategy) accuracyLine(ctx context.Context, acct *account.Account) string {
	if s.rec == nil {
		return ""
	}
	total, modelBacked, err := s.rec.AccuracyWindow(ctx, acct.Name, s.cfg.StatsReportEvery)
	if err != nil || total == 0 {
		return ""
	}
	return accuracyText(total, modelBacked)
}

func (s *Strategy) modelID(acct *account.Account) string {
	if acct.State.Counters.CurrentModelID != "" {
		return acct.State.Counters.CurrentModelID
	}
	return s.defaultModelID
}

func (s *Strategy) notifyAdmin(acct *account.Account, text string) {
	if s.notifier != nil {
		s.notifier.SendAdmin(text)
	}
}

func (s *Strategy) notifyPriority(acct *account.Account, text string) {
	if s.notifier != nil {
		s.notifier.SendPriority(text)
	}
}

func appendBounded(xs []int, v int) []int {
	xs = append(xs, v)
	if len(xs) > domain.MaxHistoryEntries {
		xs = xs[len(xs)-domain.MaxHistoryEntries:]
	}
	return xs
}
