package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
// 账号级的策略参数（预设）不在这里，见 internal/strategies/bigsmall.Config。
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Data     DataConfig     `yaml:"data"`
	Feed     FeedConfig     `yaml:"feed"`
	Models   ModelsConfig   `yaml:"models"`
	Notify   NotifyConfig   `yaml:"notify"`
	Betting  BettingTiming  `yaml:"betting"`
	Control  ControlConfig  `yaml:"control"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"outputFile"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// DataConfig 数据目录配置
type DataConfig struct {
	BaseDir    string `yaml:"baseDir"`    // 运行时状态根目录
	AccountsDir string `yaml:"accountsDir"` // 账号配置目录（每个账号一个子目录）
	SecretPath string `yaml:"secretPath"` // badger 密钥库路径
	LedgerPath string `yaml:"ledgerPath"` // sqlite 台账路径
}

// FeedConfig 游戏事件流配置
type FeedConfig struct {
	URL                string `yaml:"url"`                // websocket 地址
	ReconnectDelaySec  int    `yaml:"reconnectDelaySec"`  // 断线重连间隔
	MaxReconnectDelay  int    `yaml:"maxReconnectDelaySec"`
}

// ModelEndpoint 单个模型端点（OpenAI 兼容 chat/completions 协议）
type ModelEndpoint struct {
	ID        string `yaml:"id"`        // 模型标识，如 qwen3-coder-plus
	BaseURL   string `yaml:"baseURL"`   // API 根地址
	Model     string `yaml:"model"`     // 请求里实际发送的 model 字段
	APIKeyEnv string `yaml:"apiKeyEnv"` // API Key 所在环境变量（密钥库优先）
	Priority  int    `yaml:"priority"`  // 数字越小优先级越高
}

// ModelsConfig 模型网关配置
type ModelsConfig struct {
	Default             string          `yaml:"default"`             // 默认模型 ID
	Endpoints           []ModelEndpoint `yaml:"endpoints"`
	PredictTimeoutSec   float64         `yaml:"predictTimeoutSec"`   // 方向预测超时
	PauseHintTimeoutSec float64         `yaml:"pauseHintTimeoutSec"` // 暂停局数建议超时（更短）
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	TelegramTokenEnv string `yaml:"telegramTokenEnv"` // Bot Token 环境变量名
	AdminChatID      string `yaml:"adminChatID"`      // 默认管理员会话
	PriorityChatID   string `yaml:"priorityChatID"`   // 重点通道（连输告警/百局总结）
}

// BettingTiming 下注时序参数（带安全兜底范围）
type BettingTiming struct {
	PromptWaitSec    float64 `yaml:"promptWaitSec"`
	ClickIntervalSec float64 `yaml:"clickIntervalSec"`
	ClickTimeoutSec  float64 `yaml:"clickTimeoutSec"`
}

// ControlConfig 操作员控制面配置
type ControlConfig struct {
	Listen string `yaml:"listen"` // gin HTTP 监听地址，空则不启动
}

// Load 从默认路径加载配置（DICEBOT_CONFIG 可覆盖）
func Load() (*Config, error) {
	path := strings.TrimSpace(os.Getenv("DICEBOT_CONFIG"))
	if path == "" {
		path = "config.yaml"
	}
	return LoadFromFile(path)
}

// LoadFromFile 从指定文件加载配置并应用默认值
func LoadFromFile(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 应用默认值（环境变量可覆盖部分项）
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = envOr("DICEBOT_LOG_LEVEL", "info")
	}
	if c.Data.BaseDir == "" {
		c.Data.BaseDir = "data"
	}
	if c.Data.AccountsDir == "" {
		c.Data.AccountsDir = "accounts"
	}
	if c.Data.SecretPath == "" {
		c.Data.SecretPath = c.Data.BaseDir + "/secrets"
	}
	if c.Data.LedgerPath == "" {
		c.Data.LedgerPath = c.Data.BaseDir + "/ledger.db"
	}
	if c.Feed.ReconnectDelaySec <= 0 {
		c.Feed.ReconnectDelaySec = 2
	}
	if c.Feed.MaxReconnectDelay <= 0 {
		c.Feed.MaxReconnectDelay = 60
	}
	if c.Models.PredictTimeoutSec <= 0 {
		c.Models.PredictTimeoutSec = 8.0
	}
	if c.Models.PauseHintTimeoutSec <= 0 {
		c.Models.PauseHintTimeoutSec = 3.5
	}
	if c.Notify.TelegramTokenEnv == "" {
		c.Notify.TelegramTokenEnv = "DICEBOT_TG_TOKEN"
	}

	// 时序参数夹在安全范围内，配置写错也不至于把节奏打乱
	c.Betting.PromptWaitSec = clampFloat(c.Betting.PromptWaitSec, 0, 5.0, 1.2)
	c.Betting.ClickIntervalSec = clampFloat(c.Betting.ClickIntervalSec, 0.05, 2.0, 0.45)
	c.Betting.ClickTimeoutSec = clampFloat(c.Betting.ClickTimeoutSec, 1.0, 20.0, 6.0)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if len(c.Models.Endpoints) == 0 {
		return fmt.Errorf("models.endpoints 不能为空：预测与风控暂停建议都依赖模型网关")
	}
	seen := map[string]bool{}
	for i, ep := range c.Models.Endpoints {
		if strings.TrimSpace(ep.ID) == "" {
			return fmt.Errorf("models.endpoints[%d].id 不能为空", i)
		}
		if seen[ep.ID] {
			return fmt.Errorf("models.endpoints 存在重复 id: %s", ep.ID)
		}
		seen[ep.ID] = true
		if strings.TrimSpace(ep.BaseURL) == "" {
			return fmt.Errorf("models.endpoints[%d].baseURL 不能为空", i)
		}
	}
	if c.Models.Default != "" && !seen[c.Models.Default] {
		return fmt.Errorf("models.default 指向不存在的端点: %s", c.Models.Default)
	}
	return nil
}

// PredictTimeout 方向预测超时
func (c *Config) PredictTimeout() time.Duration {
	return time.Duration(c.Models.PredictTimeoutSec * float64(time.Second))
}

// PauseHintTimeout 暂停建议超时
func (c *Config) PauseHintTimeout() time.Duration {
	return time.Duration(c.Models.PauseHintTimeoutSec * float64(time.Second))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt 读取整型环境变量，解析失败返回默认值
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clampFloat(v, min, max, def float64) float64 {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
