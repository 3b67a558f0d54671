package bigsmall

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/betbot/dicebot/internal/events"
)

// HandleCommand 处理操作员指令，返回回执文案
func (s *Strategy) HandleCommand(ctx context.Context, ev *events.OperatorCommandEvent) (string, error) {
	acct, ok := s.accounts.Get(ev.Account)
	if !ok {
		return "", errors.Errorf("账号不存在: %s", ev.Account)
	}
	acct.Lock()
	defer acct.Unlock()

	st := acct.State
	rt := st.Counters

	var reply string
	switch ev.Command {
	case "pause":
		st.Pause.RequestManualPause()
		if st.Pause.InCountdown() {
			reply = "已登记手动暂停，倒计时结束后生效"
		} else {
			reply = "已手动暂停"
		}

	case "resume":
		// 因连投上限硬停的恢复要顺带重置倍投进度，否则一恢复又立刻硬停
		if rt.LimitStopNotified {
			rt.LimitStopNotified = false
			rt.LoseCount = 0
			rt.ResetProgression()
			rt.ClearDeepMilestones()
			rt.ClearLoseRecovery()
		}
		rt.FundPauseNotified = false
		st.Pause.Resume()
		reply = "已恢复押注"
		log.Infof("▶️ [%s] 操作员恢复押注", acct.Name)

	case "setfund":
		if len(ev.Args) < 1 {
			return "", errors.New("用法: setfund <金额>")
		}
		amount, err := strconv.ParseInt(ev.Args[0], 10, 64)
		if err != nil || amount < 0 {
			return "", errors.Errorf("金额不合法: %s", ev.Args[0])
		}
		rt.GamblingFund = amount
		rt.FundPauseNotified = false
		reply = "资金已更新: " + strconv.FormatInt(amount, 10)

	case "preset":
		if len(ev.Args) < 1 {
			return "", errors.New("用法: preset <名称>")
		}
		p, ok := acct.Preset(ev.Args[0])
		if !ok {
			return "", errors.Errorf("预设不存在: %s", ev.Args[0])
		}
		rt.ApplyPreset(p)
		rt.ResetProgression()
		rt.ClearDeepMilestones()
		reply = "预设已切换: " + p.Name

	case "warning":
		if len(ev.Args) < 1 {
			return "", errors.New("用法: warning <连输阈值>")
		}
		n, err := strconv.Atoi(ev.Args[0])
		if err != nil || n < 0 {
			return "", errors.Errorf("阈值不合法: %s", ev.Args[0])
		}
		rt.WarningLoseCount = n
		reply = "连输告警阈值已更新: " + strconv.Itoa(n)

	case "model":
		if len(ev.Args) < 1 {
			return "", errors.New("用法: model <模型ID>")
		}
		rt.CurrentModelID = ev.Args[0]
		reply = "预测模型已切换: " + ev.Args[0]

	case "on":
		st.Enabled = true
		reply = "总开关已打开"

	case "off":
		st.Enabled = false
		reply = "总开关已关闭（只观察不下注）"

	case "stats":
		reply = dashboardText(acct.Name, st)

	default:
		return "", errors.Errorf("未知指令: %s", ev.Command)
	}

	acct.Save()
	return reply, nil
}
