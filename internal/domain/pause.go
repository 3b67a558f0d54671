package domain

// ActivityMode 账号活动状态
type ActivityMode string

const (
	ModeActive          ActivityMode = "active"
	ModeManualPaused    ActivityMode = "manual_paused"
	ModeCountdownPaused ActivityMode = "countdown_paused"
	ModeHardStopped     ActivityMode = "hard_stopped"
)

// PauseState 暂停/恢复状态机
// Remaining 表示"尚需观望的局数"，在每次下注机会入口扣减一次。
// StartCountdown 会在内部 +1 预充：第一次扣减发生在暂停生效后的
// 第一个下注机会，此时还没有真正错过任何一局，所以需要多存一局
// 才能停满指定局数。这个偏移只存在于状态机内部，调用方不感知。
type PauseState struct {
	Mode            ActivityMode `json:"mode"`
	Reason          string       `json:"reason"`
	TotalRounds     int          `json:"totalRounds"`
	Remaining       int          `json:"remaining"`
	ManualRequested bool         `json:"manualRequested"` // 倒计时期间收到手动暂停请求

	// NoticeLastRemaining 倒计时通知去重：剩余局数没变就不重发
	NoticeLastRemaining int `json:"noticeLastRemaining"`
}

// NewPauseState 返回初始（活跃）状态
func NewPauseState() *PauseState {
	return &PauseState{Mode: ModeActive, NoticeLastRemaining: -1}
}

// BettingAllowed 当前是否允许下注
func (p *PauseState) BettingAllowed() bool {
	return p.Mode == ModeActive
}

// InCountdown 是否处于倒计时暂停
func (p *PauseState) InCountdown() bool {
	return p.Mode == ModeCountdownPaused
}

// StartCountdown 进入倒计时暂停
// 已在倒计时中再次触发时取两者较大的剩余值，不叠加。
func (p *PauseState) StartCountdown(reason string, rounds int) {
	if rounds < 1 {
		rounds = 1
	}
	if p.Mode == ModeManualPaused || p.Mode == ModeHardStopped {
		return
	}
	primed := rounds + 1
	if p.Mode == ModeCountdownPaused && p.Remaining >= primed {
		// 剩余更长的暂停还没走完，原因保持第一次触发时的不变
		return
	}
	p.Mode = ModeCountdownPaused
	p.Reason = reason
	p.TotalRounds = rounds
	p.Remaining = primed
	p.NoticeLastRemaining = -1
}

// TickBetOpportunity 在一次下注机会上推进倒计时
// 返回值：resumed 表示本次扣减后回到 Active；skip 表示本局应跳过下注。
func (p *PauseState) TickBetOpportunity() (resumed bool, skip bool) {
	if p.Mode != ModeCountdownPaused {
		return false, !p.BettingAllowed()
	}

	p.Remaining--
	if p.Remaining > 0 {
		return false, true
	}

	p.clearCountdown()
	if p.ManualRequested {
		p.ManualRequested = false
		p.Mode = ModeManualPaused
		p.Reason = "手动暂停"
		return false, true
	}
	p.Mode = ModeActive
	p.Reason = ""
	return true, false
}

// RequestManualPause 操作员请求暂停
// 倒计时期间只做标记，倒计时走完后转入手动暂停而不是恢复。
func (p *PauseState) RequestManualPause() {
	switch p.Mode {
	case ModeCountdownPaused:
		p.ManualRequested = true
	case ModeActive:
		p.Mode = ModeManualPaused
		p.Reason = "手动暂停"
	}
}

// Resume 操作员显式恢复；手动暂停与硬停都只能由这里清除
func (p *PauseState) Resume() {
	p.clearCountdown()
	p.ManualRequested = false
	p.Mode = ModeActive
	p.Reason = ""
}

// HardStop 进入硬停状态（打满连投上限/资金耗尽），需要操作员处理后显式恢复
func (p *PauseState) HardStop(reason string) {
	p.clearCountdown()
	p.Mode = ModeHardStopped
	p.Reason = reason
}

// DisplayRemaining 对外展示的剩余局数（剔除内部预充的一局）
func (p *PauseState) DisplayRemaining() int {
	if p.Mode != ModeCountdownPaused {
		return 0
	}
	if p.Remaining <= 1 {
		return 0
	}
	return p.Remaining - 1
}

func (p *PauseState) clearCountdown() {
	p.TotalRounds = 0
	p.Remaining = 0
	p.NoticeLastRemaining = -1
}
