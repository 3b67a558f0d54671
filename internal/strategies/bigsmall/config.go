package bigsmall

import (
	"github.com/pkg/errors"
)

// ID 策略标识
const ID = "bigsmall"

// Config 大小盘策略配置
type Config struct {
	DefaultPreset string `yaml:"defaultPreset" json:"defaultPreset"` // 新账号默认倍投预设

	// 基础风控（滑动窗口胜率）
	RiskWindowSize   int `yaml:"riskWindowSize" json:"riskWindowSize"`     // 评估窗口（已结算笔数）
	RiskTriggerWins  int `yaml:"riskTriggerWins" json:"riskTriggerWins"`   // 窗口内赢数 <= 该值记一次命中
	RiskTriggerHits  int `yaml:"riskTriggerHits" json:"riskTriggerHits"`   // 连续命中次数达到后触发暂停
	RiskRecoverWins  int `yaml:"riskRecoverWins" json:"riskRecoverWins"`   // 窗口内赢数 >= 该值记一次恢复
	RiskRecoverHits  int `yaml:"riskRecoverHits" json:"riskRecoverHits"`   // 连续恢复次数达到后重置周期
	RiskCycleBudget  int `yaml:"riskCycleBudget" json:"riskCycleBudget"`   // 单个风控周期内累计暂停局数预算
	RiskMaxSinglePause int `yaml:"riskMaxSinglePause" json:"riskMaxSinglePause"` // 单次暂停局数上限

	// 深度风控（连输里程碑）
	DeepMilestoneStep int `yaml:"deepMilestoneStep" json:"deepMilestoneStep"` // 连输达到该步长的整数倍时评估
	DeepFirstCap      int `yaml:"deepFirstCap" json:"deepFirstCap"`           // 首个里程碑的暂停局数上限
	DeepLaterCap      int `yaml:"deepLaterCap" json:"deepLaterCap"`           // 后续里程碑的暂停局数上限

	// 报表
	StatsReportEvery  int `yaml:"statsReportEvery" json:"statsReportEvery"`   // 每 N 笔结算发一次统计（限时消息）
	StatsReportTTLSec int `yaml:"statsReportTTLSec" json:"statsReportTTLSec"` // 统计消息存活秒数
	SummaryEvery      int `yaml:"summaryEvery" json:"summaryEvery"`           // 每 N 局发一次风控总结
}

// Defaults 应用默认值
func (c *Config) Defaults() {
	if c.DefaultPreset == "" {
		c.DefaultPreset = "steady"
	}
	if c.RiskWindowSize <= 0 {
		c.RiskWindowSize = 40
	}
	if c.RiskTriggerWins <= 0 {
		c.RiskTriggerWins = 15
	}
	if c.RiskTriggerHits <= 0 {
		c.RiskTriggerHits = 2
	}
	if c.RiskRecoverWins <= 0 {
		c.RiskRecoverWins = 19
	}
	if c.RiskRecoverHits <= 0 {
		c.RiskRecoverHits = 2
	}
	if c.RiskCycleBudget <= 0 {
		c.RiskCycleBudget = 10
	}
	if c.RiskMaxSinglePause <= 0 {
		c.RiskMaxSinglePause = 10
	}
	if c.DeepMilestoneStep <= 0 {
		c.DeepMilestoneStep = 3
	}
	if c.DeepFirstCap <= 0 {
		c.DeepFirstCap = 5
	}
	if c.DeepLaterCap <= 0 {
		c.DeepLaterCap = 3
	}
	if c.StatsReportEvery <= 0 {
		c.StatsReportEvery = 10
	}
	if c.StatsReportTTLSec <= 0 {
		c.StatsReportTTLSec = 600
	}
	if c.SummaryEvery <= 0 {
		c.SummaryEvery = 100
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.RiskTriggerWins >= c.RiskRecoverWins {
		return errors.Errorf("riskTriggerWins (%d) 必须小于 riskRecoverWins (%d)", c.RiskTriggerWins, c.RiskRecoverWins)
	}
	if c.RiskRecoverWins > c.RiskWindowSize {
		return errors.Errorf("riskRecoverWins (%d) 不能超过窗口大小 (%d)", c.RiskRecoverWins, c.RiskWindowSize)
	}
	return nil
}
