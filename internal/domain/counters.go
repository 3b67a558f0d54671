package domain

import (
	"fmt"
	"time"
)

// LoseStartInfo 连输起点快照，用于"连输已终止"播报的区间校验
type LoseStartInfo struct {
	Round int   `json:"round"`
	Seq   int   `json:"seq"`
	Fund  int64 `json:"fund"` // 连输开始前的资金（首笔输单入账之前）
}

// Preset 倍投预设参数
type Preset struct {
	Name          string  `json:"name" yaml:"name"`
	Continuous    int     `json:"continuous" yaml:"continuous"`       // 计划连押手数（展示用）
	LoseStop      int     `json:"loseStop" yaml:"loseStop"`           // 连投硬上限
	LoseOnce      float64 `json:"loseOnce" yaml:"loseOnce"`           // 1 连输倍率
	LoseTwice     float64 `json:"loseTwice" yaml:"loseTwice"`         // 2 连输倍率
	LoseThree     float64 `json:"loseThree" yaml:"loseThree"`         // 3 连输倍率
	LoseFour      float64 `json:"loseFour" yaml:"loseFour"`           // 4+ 连输倍率
	InitialAmount int64   `json:"initialAmount" yaml:"initialAmount"` // 起手金额
}

// RuntimeCounters 账号运行时计数器
// 原则：所有可变控制状态集中在这一个结构体里，组件通过方法修改，
// 每次对外可见的变更之后由账号管道负责落盘。不跨账号共享。
type RuntimeCounters struct {
	// 押注进度
	BetType          Direction `json:"betType"`          // 最近一笔押注方向
	BetAmount        int64     `json:"betAmount"`        // 当前基准押注金额
	BetSequenceCount int       `json:"betSequenceCount"` // 本轮连押手数
	WinCount         int       `json:"winCount"`         // 当前连赢
	LoseCount        int       `json:"loseCount"`        // 当前连输
	Total            int       `json:"total"`            // 累计押注局数
	WinTotal         int       `json:"winTotal"`         // 累计赢局
	Status           int       `json:"status"`           // 最近一局结果（1 赢 0 输）

	// 资金与收益
	GamblingFund   int64  `json:"gamblingFund"`   // 菠菜资金
	AccountBalance int64  `json:"accountBalance"` // 平台账户余额（结算后探测）
	BalanceStatus  string `json:"balanceStatus"`  // success / network_error / unknown
	Earnings       int64  `json:"earnings"`       // 累计收益
	PeriodProfit   int64  `json:"periodProfit"`   // 本轮收益

	// 预设参数（ApplyPreset 写入）
	CurrentPresetName string  `json:"currentPresetName"`
	InitialAmount     int64   `json:"initialAmount"`
	LoseStop          int     `json:"loseStop"`
	LoseOnce          float64 `json:"loseOnce"`
	LoseTwice         float64 `json:"loseTwice"`
	LoseThree         float64 `json:"loseThree"`
	LoseFour          float64 `json:"loseFour"`
	Continuous        int     `json:"continuous"`

	// 轮次控制
	ProfitTarget int64 `json:"profitTarget"` // 本轮盈利目标
	ProfitStop   int   `json:"profitStop"`   // 盈利达成后的暂停局数
	Explode      int   `json:"explode"`      // 触发保护暂停的炸号次数
	ExplodeCount int   `json:"explodeCount"` // 本轮炸号次数（连输打满 LoseStop 记一次）
	Stop         int   `json:"stop"`         // 炸号保护暂停局数

	// 连输告警
	WarningLoseCount  int           `json:"warningLoseCount"` // 连输告警阈值
	LoseNotifyPending bool          `json:"loseNotifyPending"`
	LoseStart         LoseStartInfo `json:"loseStart"`

	// 风控周期状态
	RiskPauseAccRounds      int   `json:"riskPauseAccRounds"`      // 基础风控周期内累计暂停局数
	RiskPauseSnapshotCount  int   `json:"riskPauseSnapshotCount"`  // 上次评估时的已结算笔数（-1 表示未评估）
	RiskPauseCycleActive    bool  `json:"riskPauseCycleActive"`    // 基础风控周期是否激活
	RiskBaseHitStreak       int   `json:"riskBaseHitStreak"`       // 基础风控连续命中次数
	RiskRecoveryPasses      int   `json:"riskRecoveryPasses"`      // 恢复条件连续满足次数
	RiskDeepMilestones      []int `json:"riskDeepMilestones"`      // 本轮连输已触发的深度风控档位
	RiskPauseBlockHits      int   `json:"riskPauseBlockHits"`      // 当前百局区间风控触发次数
	RiskPauseBlockRounds    int   `json:"riskPauseBlockRounds"`    // 当前百局区间累计暂停局数
	RiskPauseLast100Report  int   `json:"riskPauseLast100Report"`  // 上次百局总结时的 Total
	StatsLastReportTotal    int   `json:"statsLastReportTotal"`    // 上次自动统计时的 Total

	// 一次性通知闸门
	FundPauseNotified bool `json:"fundPauseNotified"`
	LimitStopNotified bool `json:"limitStopNotified"`

	// 结算幂等
	LastSettleEventID string `json:"lastSettleEventID"`

	// 押注 ID（按天重置）
	CurrentRound  int    `json:"currentRound"`
	CurrentBetSeq int    `json:"currentBetSeq"`
	LastResetDate string `json:"lastResetDate"`

	// 预测
	CurrentModelID  string `json:"currentModelID"`
	LastPredictInfo string `json:"lastPredictInfo"`
	LastLogicAudit  string `json:"lastLogicAudit"`
}

// NewRuntimeCounters 返回带默认值的计数器
func NewRuntimeCounters() *RuntimeCounters {
	return &RuntimeCounters{
		InitialAmount:          500,
		BetAmount:              500,
		LoseStop:               13,
		LoseOnce:               3.0,
		LoseTwice:              2.1,
		LoseThree:              2.1,
		LoseFour:               2.05,
		Continuous:             10,
		ProfitTarget:           1000000,
		ProfitStop:             5,
		Explode:                5,
		Stop:                   3,
		WarningLoseCount:       3,
		GamblingFund:           25000000,
		BalanceStatus:          "unknown",
		RiskPauseSnapshotCount: -1,
		CurrentRound:           1,
		CurrentBetSeq:          1,
		LastResetDate:          time.Now().Format("20060102"),
	}
}

// ApplyPreset 应用倍投预设
func (rt *RuntimeCounters) ApplyPreset(p Preset) {
	rt.CurrentPresetName = p.Name
	rt.Continuous = p.Continuous
	rt.LoseStop = p.LoseStop
	rt.LoseOnce = p.LoseOnce
	rt.LoseTwice = p.LoseTwice
	rt.LoseThree = p.LoseThree
	rt.LoseFour = p.LoseFour
	rt.InitialAmount = p.InitialAmount
	rt.BetAmount = p.InitialAmount
}

// Multiplier 返回指定连输深度对应的倍率（深度 >=4 用 LoseFour）
func (rt *RuntimeCounters) Multiplier(loseDepth int) float64 {
	switch {
	case loseDepth <= 1:
		return rt.LoseOnce
	case loseDepth == 2:
		return rt.LoseTwice
	case loseDepth == 3:
		return rt.LoseThree
	default:
		return rt.LoseFour
	}
}

// BookSettlement 记一笔结算：更新资金、收益与连赢/连输计数
func (rt *RuntimeCounters) BookSettlement(win bool, profit int64) {
	rt.GamblingFund += profit
	rt.Earnings += profit
	rt.PeriodProfit += profit
	if win {
		rt.WinTotal++
		rt.WinCount++
		rt.LoseCount = 0
		rt.Status = 1
	} else {
		rt.WinCount = 0
		rt.LoseCount++
		rt.Status = 0
	}
}

// ResetProgression 重置倍投进度（赢单或打满上限后回到起手金额）
func (rt *RuntimeCounters) ResetProgression() {
	rt.BetSequenceCount = 0
	rt.BetAmount = rt.InitialAmount
}

// ClearLoseRecovery 清理连输回补跟踪状态，避免跨轮次残留
func (rt *RuntimeCounters) ClearLoseRecovery() {
	rt.LoseNotifyPending = false
	rt.LoseStart = LoseStartInfo{}
}

// HasDeepMilestone 判断某个深度风控档位在本轮连输里是否已触发
func (rt *RuntimeCounters) HasDeepMilestone(milestone int) bool {
	for _, m := range rt.RiskDeepMilestones {
		if m == milestone {
			return true
		}
	}
	return false
}

// AddDeepMilestone 记录已触发的深度风控档位（同档位只记一次）
func (rt *RuntimeCounters) AddDeepMilestone(milestone int) {
	if milestone <= 0 || rt.HasDeepMilestone(milestone) {
		return
	}
	rt.RiskDeepMilestones = append(rt.RiskDeepMilestones, milestone)
}

// ClearDeepMilestones 清空深度风控档位记录（赢单或新连输起点时调用）
func (rt *RuntimeCounters) ClearDeepMilestones() {
	rt.RiskDeepMilestones = nil
}

// ResetRiskCycle 风控周期恢复：重置暂停预算与命中计数
func (rt *RuntimeCounters) ResetRiskCycle() {
	rt.RiskPauseCycleActive = false
	rt.RiskPauseAccRounds = 0
	rt.RiskPauseSnapshotCount = -1
	rt.RiskRecoveryPasses = 0
	rt.RiskBaseHitStreak = 0
}

// FundAvailable 资金是否足以支付下一笔押注
// 与原始语义一致：需同时满足余额>0且>=本次下注金额。
func (rt *RuntimeCounters) FundAvailable(stake int64) bool {
	return rt.GamblingFund > 0 && rt.GamblingFund >= stake
}

// NextWagerID 生成押注 ID（YYYYMMDD_轮次_序号，按天重置）
func (rt *RuntimeCounters) NextWagerID(now time.Time) string {
	date := now.Format("20060102")
	if date != rt.LastResetDate {
		rt.CurrentRound = 1
		rt.CurrentBetSeq = 1
		rt.LastResetDate = date
	}
	return fmt.Sprintf("%s_%d_%d", date, rt.CurrentRound, rt.CurrentBetSeq)
}
