package bigsmall

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/dicebot/internal/account"
	"github.com/betbot/dicebot/internal/domain"
	"github.com/betbot/dicebot/internal/events"
	"github.com/betbot/dicebot/pkg/persistence"
)

// fakePlacer 测试用押注执行器
type fakePlacer struct {
	err    error
	placed []placedStake
}

type placedStake struct {
	Account string
	EventID string
	Dir     domain.Direction
	Stake   int64
}

func (f *fakePlacer) PlaceStake(_ context.Context, acct, eventID string, dir domain.Direction, stake int64) error {
	if f.err != nil {
		return f.err
	}
	f.placed = append(f.placed, placedStake{Account: acct, EventID: eventID, Dir: dir, Stake: stake})
	return nil
}

func newTestStrategy(t *testing.T, gw *fakeGateway) (*Strategy, *account.Account, *fakePlacer) {
	t.Helper()

	svc := persistence.NewJSONFileService(t.TempDir())
	acct, err := account.Load("tiger", "", "", svc, account.DefaultPresets())
	require.NoError(t, err)

	mgr := account.NewManager()
	mgr.Add(acct)

	placer := &fakePlacer{}
	s, err := New(Config{}, Deps{
		Accounts:         mgr,
		Placer:           placer,
		Gateway:          gw,
		DefaultModelID:   "m1",
		PredictTimeout:   time.Second,
		PauseHintTimeout: time.Second,
	})
	require.NoError(t, err)
	return s, acct, placer
}

func bigGateway() *fakeGateway {
	return &fakeGateway{content: `{"direction": "big", "confidence": 60, "reason": "测试"}`}
}

func openEv(id string) *events.RoundOpenedEvent {
	return &events.RoundOpenedEvent{
		Account:          "tiger",
		EventID:          id,
		PromptText:       "新一局开盘",
		HasStakeControls: true,
		Timestamp:        time.Now(),
	}
}

func settleEv(id, label string) *events.RoundSettledEvent {
	v := 14
	if label == "small" {
		v = 7
	}
	return &events.RoundSettledEvent{
		Account:     "tiger",
		EventID:     id,
		ResultValue: v,
		ResultLabel: label,
		Timestamp:   time.Now(),
	}
}

func TestWinSettlementFlow(t *testing.T) {
	s, acct, placer := newTestStrategy(t, bigGateway())
	ctx := context.Background()

	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))

	require.Len(t, placer.placed, 1)
	assert.Equal(t, int64(500), placer.placed[0].Stake)
	assert.Equal(t, domain.DirectionBig, placer.placed[0].Dir)
	require.NotNil(t, acct.State.Pending)
	assert.Contains(t, acct.State.Counters.LastLogicAudit, "大|60|", "审计摘要带方向与置信")
	assert.Contains(t, acct.State.Counters.LastLogicAudit, "direction", "审计摘要带模型原始回复")

	fundBefore := acct.State.Counters.GamblingFund
	require.NoError(t, s.OnRoundSettled(ctx, settleEv("s1", "big")))

	rt := acct.State.Counters
	assert.Nil(t, acct.State.Pending)
	assert.Equal(t, 1, rt.Total)
	assert.Equal(t, 1, rt.WinTotal)
	assert.Equal(t, fundBefore+495, rt.GamblingFund, "赢单利润 = floor(500×0.99)")
	assert.Equal(t, int64(500), rt.BetAmount, "赢后回到起手注")

	require.Len(t, acct.State.WagerLog, 1)
	assert.Equal(t, domain.ResultWin, acct.State.WagerLog[0].Result)
	assert.Equal(t, int64(495), acct.State.WagerLog[0].Profit)
}

func TestDuplicateSettleEventIgnored(t *testing.T) {
	s, acct, _ := newTestStrategy(t, bigGateway())
	ctx := context.Background()

	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))
	require.NoError(t, s.OnRoundSettled(ctx, settleEv("s1", "big")))

	total := acct.State.Counters.Total
	fund := acct.State.Counters.GamblingFund
	histLen := len(acct.State.History)

	// 同一事件重放：完全无副作用
	require.NoError(t, s.OnRoundSettled(ctx, settleEv("s1", "big")))

	assert.Equal(t, total, acct.State.Counters.Total)
	assert.Equal(t, fund, acct.State.Counters.GamblingFund)
	assert.Equal(t, histLen, len(acct.State.History))
}

func TestLossProgressionAndDeepRisk(t *testing.T) {
	s, acct, placer := newTestStrategy(t, bigGateway())
	ctx := context.Background()
	rt := acct.State.Counters

	// 连输 3 局: 500 -> 1500 -> 3000
	wantStakes := []int64{500, 1500, 3000}
	for i, want := range wantStakes {
		require.NoError(t, s.OnRoundOpened(ctx, openEv(fmt.Sprintf("e%d", i))))
		require.Len(t, placer.placed, i+1)
		assert.Equal(t, want, placer.placed[i].Stake)
		require.NoError(t, s.OnRoundSettled(ctx, settleEv(fmt.Sprintf("s%d", i), "small")))
	}

	assert.Equal(t, 3, rt.LoseCount)
	assert.True(t, rt.LoseNotifyPending, "连输达到告警阈值")
	assert.True(t, rt.HasDeepMilestone(3), "深度风控已触发")
	assert.True(t, acct.State.Pause.InCountdown(), "深度风控暂停生效")

	// 暂停期间的下注机会只倒计时不下注
	require.NoError(t, s.OnRoundOpened(ctx, openEv("e-paused")))
	assert.Len(t, placer.placed, 3)
}

func TestCountdownResumesAndBetsAgain(t *testing.T) {
	s, acct, placer := newTestStrategy(t, bigGateway())
	ctx := context.Background()

	acct.State.Pause.StartCountdown("测试", 2)

	// 前两个下注机会观望
	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))
	require.NoError(t, s.OnRoundOpened(ctx, openEv("e2")))
	assert.Empty(t, placer.placed)

	// 第三个机会恢复并直接下注
	require.NoError(t, s.OnRoundOpened(ctx, openEv("e3")))
	assert.True(t, acct.State.Pause.BettingAllowed())
	assert.Len(t, placer.placed, 1)
}

func TestBustHardStopsUntilOperator(t *testing.T) {
	s, acct, _ := newTestStrategy(t, bigGateway())
	ctx := context.Background()
	rt := acct.State.Counters

	rt.LoseStop = 3
	rt.Explode = 5

	for i := 0; i < 3; i++ {
		require.NoError(t, s.OnRoundOpened(ctx, openEv(fmt.Sprintf("e%d", i))))
		require.NoError(t, s.OnRoundSettled(ctx, settleEv(fmt.Sprintf("s%d", i), "small")))
	}

	assert.Equal(t, 1, rt.ExplodeCount, "连输打满上限记一次炸号")
	assert.Equal(t, domain.ModeHardStopped, acct.State.Pause.Mode)
	assert.True(t, rt.LimitStopNotified)

	// resume 指令恢复并重置倍投进度
	reply, err := s.HandleCommand(ctx, &events.OperatorCommandEvent{Account: "tiger", Command: "resume"})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.Zero(t, rt.LoseCount)
	assert.Equal(t, rt.InitialAmount, rt.BetAmount)
	assert.True(t, acct.State.Pause.BettingAllowed())
}

func TestExplodeThresholdForcesCooldown(t *testing.T) {
	s, acct, _ := newTestStrategy(t, bigGateway())
	ctx := context.Background()
	rt := acct.State.Counters

	rt.LoseStop = 3
	rt.Explode = 2
	rt.ExplodeCount = 1 // 已经炸过一次
	rt.PeriodProfit = 7777

	for i := 0; i < 3; i++ {
		require.NoError(t, s.OnRoundOpened(ctx, openEv(fmt.Sprintf("e%d", i))))
		require.NoError(t, s.OnRoundSettled(ctx, settleEv(fmt.Sprintf("s%d", i), "small")))
	}

	assert.Zero(t, rt.ExplodeCount, "达到保护阈值后清零重来")
	assert.Zero(t, rt.LoseCount)
	assert.Zero(t, rt.WinCount)
	assert.Zero(t, rt.PeriodProfit, "本轮收益一并清零")
	assert.True(t, acct.State.Pause.InCountdown(), "强制观望而不是硬停")
}

func TestProfitTargetAdvancesRound(t *testing.T) {
	s, acct, _ := newTestStrategy(t, bigGateway())
	ctx := context.Background()
	rt := acct.State.Counters

	rt.ProfitTarget = 400 // 一笔赢单即达标
	round := rt.CurrentRound

	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))
	require.NoError(t, s.OnRoundSettled(ctx, settleEv("s1", "big")))

	assert.Equal(t, round+1, rt.CurrentRound)
	assert.Zero(t, rt.PeriodProfit)
	assert.Equal(t, 1, rt.CurrentBetSeq)
	assert.True(t, acct.State.Pause.InCountdown(), "盈利达标后休整")
}

func TestFundShortageHardStops(t *testing.T) {
	s, acct, placer := newTestStrategy(t, bigGateway())
	ctx := context.Background()
	rt := acct.State.Counters

	rt.GamblingFund = 100 // 不够一注

	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))

	assert.Empty(t, placer.placed)
	assert.Equal(t, domain.ModeHardStopped, acct.State.Pause.Mode)
	assert.True(t, rt.FundPauseNotified)

	// setfund 补充资金 + resume 后恢复下注
	_, err := s.HandleCommand(ctx, &events.OperatorCommandEvent{Account: "tiger", Command: "setfund", Args: []string{"50000"}})
	require.NoError(t, err)
	_, err = s.HandleCommand(ctx, &events.OperatorCommandEvent{Account: "tiger", Command: "resume"})
	require.NoError(t, err)

	require.NoError(t, s.OnRoundOpened(ctx, openEv("e2")))
	assert.Len(t, placer.placed, 1)
}

func TestPlaceFailureSkipsRound(t *testing.T) {
	s, acct, placer := newTestStrategy(t, bigGateway())
	placer.err = fmt.Errorf("点击超时")
	ctx := context.Background()

	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))

	assert.Nil(t, acct.State.Pending, "下注失败按观望处理")
	assert.Zero(t, acct.State.Counters.BetSequenceCount)

	// 后续结算只同步历史，不结算任何押注
	require.NoError(t, s.OnRoundSettled(ctx, settleEv("s1", "big")))
	assert.Zero(t, acct.State.Counters.Total)
	assert.Len(t, acct.State.History, 1)
}

func TestObservationWhenDisabled(t *testing.T) {
	s, acct, placer := newTestStrategy(t, bigGateway())
	ctx := context.Background()

	acct.State.Enabled = false
	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))
	assert.Empty(t, placer.placed)

	// off 状态下历史照常同步
	ev := openEv("e2")
	ev.PromptText = "[0 小 1 大] 0 1 1"
	require.NoError(t, s.OnRoundOpened(ctx, ev))
	assert.Equal(t, domain.History{0, 1, 1}, acct.State.History)
}

func TestOperatorCommands(t *testing.T) {
	s, acct, _ := newTestStrategy(t, bigGateway())
	ctx := context.Background()
	rt := acct.State.Counters

	cmd := func(c string, args ...string) (string, error) {
		return s.HandleCommand(ctx, &events.OperatorCommandEvent{Account: "tiger", Command: c, Args: args})
	}

	_, err := cmd("preset", "aggressive")
	require.NoError(t, err)
	assert.Equal(t, "aggressive", rt.CurrentPresetName)
	assert.Equal(t, int64(1000), rt.BetAmount)

	_, err = cmd("preset", "不存在")
	assert.Error(t, err)

	_, err = cmd("warning", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, rt.WarningLoseCount)

	_, err = cmd("model", "m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", rt.CurrentModelID)

	_, err = cmd("off")
	require.NoError(t, err)
	assert.False(t, acct.State.Enabled)
	_, err = cmd("on")
	require.NoError(t, err)
	assert.True(t, acct.State.Enabled)

	reply, err := cmd("stats")
	require.NoError(t, err)
	assert.Contains(t, reply, "tiger")

	_, err = cmd("自创指令")
	assert.Error(t, err)

	_, err = s.HandleCommand(ctx, &events.OperatorCommandEvent{Account: "没有这个账号", Command: "stats"})
	assert.Error(t, err)
}

func TestLoseRangeValid(t *testing.T) {
	rt := domain.NewRuntimeCounters()
	rt.CurrentRound = 2
	rt.CurrentBetSeq = 5
	rt.WarningLoseCount = 3

	cases := []struct {
		name       string
		start      domain.LoseStartInfo
		loseBefore int
		want       bool
	}{
		{"正常区间", domain.LoseStartInfo{Round: 2, Seq: 2, Fund: 100}, 3, true},
		{"跨轮起点", domain.LoseStartInfo{Round: 1, Seq: 9, Fund: 100}, 4, true},
		{"零值起点", domain.LoseStartInfo{}, 3, false},
		{"起点在未来轮", domain.LoseStartInfo{Round: 3, Seq: 1}, 3, false},
		{"同轮起点在未来手", domain.LoseStartInfo{Round: 2, Seq: 6}, 3, false},
		{"结算前连输未达告警线", domain.LoseStartInfo{Round: 2, Seq: 2}, 2, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rt.LoseStart = c.start
			assert.Equal(t, c.want, loseRangeValid(rt, c.loseBefore))
		})
	}
}

func TestStaleLoseStartSuppressesRecoveryNotice(t *testing.T) {
	s, acct, _ := newTestStrategy(t, bigGateway())
	ctx := context.Background()
	rt := acct.State.Counters

	// 告警已挂起，但起点快照指向未来位置（状态文件损坏或被手工改过）
	rt.LoseCount = 3
	rt.LoseNotifyPending = true
	rt.LoseStart = domain.LoseStartInfo{Round: 999, Seq: 99, Fund: 1}

	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))
	require.NoError(t, s.OnRoundSettled(ctx, settleEv("s1", "big")))

	assert.False(t, rt.LoseNotifyPending, "无论播报与否挂起标记都要清理")
	assert.Equal(t, domain.LoseStartInfo{}, rt.LoseStart)
	assert.Zero(t, rt.LoseCount)
}

// fakeBalances 测试用余额探测源
type fakeBalances struct {
	v  int64
	ok bool
}

func (f *fakeBalances) Balance(string) (int64, bool) { return f.v, f.ok }

func TestBalanceProbeKeepsLastValueOnFailure(t *testing.T) {
	s, acct, _ := newTestStrategy(t, bigGateway())
	rt := acct.State.Counters

	fb := &fakeBalances{v: 8888, ok: true}
	s.balances = fb

	s.probeBalance(acct)
	assert.Equal(t, int64(8888), rt.AccountBalance)
	assert.Equal(t, "success", rt.BalanceStatus)

	// 探测失败：余额保留上一次的值，状态标成网络错误
	fb.ok = false
	s.probeBalance(acct)
	assert.Equal(t, int64(8888), rt.AccountBalance)
	assert.Equal(t, "network_error", rt.BalanceStatus)
}

func TestManualPauseCommandDuringCountdown(t *testing.T) {
	s, acct, placer := newTestStrategy(t, bigGateway())
	ctx := context.Background()

	acct.State.Pause.StartCountdown("风控", 1)
	_, err := s.HandleCommand(ctx, &events.OperatorCommandEvent{Account: "tiger", Command: "pause"})
	require.NoError(t, err)

	// 倒计时走完后进入手动暂停而不是恢复
	require.NoError(t, s.OnRoundOpened(ctx, openEv("e1")))
	require.NoError(t, s.OnRoundOpened(ctx, openEv("e2")))

	assert.Equal(t, domain.ModeManualPaused, acct.State.Pause.Mode)
	assert.Empty(t, placer.placed)
}
