package account

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/dicebot/internal/domain"
	"github.com/betbot/dicebot/pkg/logger"
	"github.com/betbot/dicebot/pkg/persistence"
)

// State 账号运行时状态（整体 JSON 落盘）
// 落盘是 at-least-once：每次对外可见的状态变更之后保存一次，
// 重复落盘无害，幂等性靠 LastSettleEventID 与押注 ID 保证。
type State struct {
	History        domain.History          `json:"history"`        // 开奖历史 0/1
	Predictions    []int                   `json:"predictions"`    // 每局预测方向
	BetTypeHistory []int                   `json:"betTypeHistory"` // 实际押注方向序列
	WagerLog       []domain.WagerLogEntry  `json:"wagerLog"`
	Pending        *domain.PendingWager    `json:"pending"`
	Counters       *domain.RuntimeCounters `json:"counters"`
	Pause          *domain.PauseState      `json:"pause"`
	Enabled        bool                    `json:"enabled"` // 总开关（off 后只观察不下注）
}

// NewState 返回默认状态
func NewState() *State {
	return &State{
		Counters: domain.NewRuntimeCounters(),
		Pause:    domain.NewPauseState(),
		Enabled:  true,
	}
}

// normalize 补齐反序列化后可能缺失的子结构
func (s *State) normalize() {
	if s.Counters == nil {
		s.Counters = domain.NewRuntimeCounters()
	}
	if s.Pause == nil {
		s.Pause = domain.NewPauseState()
	}
}

// AppendWagerLog 追加台账条目并裁剪到上限
func (s *State) AppendWagerLog(e domain.WagerLogEntry) {
	s.WagerLog = append(s.WagerLog, e)
	if len(s.WagerLog) > domain.MaxWagerLogEntries {
		s.WagerLog = s.WagerLog[len(s.WagerLog)-domain.MaxWagerLogEntries:]
	}
}

// SettledTail 返回台账里最近 n 笔已结算条目（新在后）
func (s *State) SettledTail(n int) []domain.WagerLogEntry {
	var out []domain.WagerLogEntry
	for i := len(s.WagerLog) - 1; i >= 0 && len(out) < n; i-- {
		if s.WagerLog[i].Result.Settled() {
			out = append(out, s.WagerLog[i])
		}
	}
	// 反转成时间正序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// SettledCount 台账里已结算笔数
func (s *State) SettledCount() int {
	n := 0
	for i := range s.WagerLog {
		if s.WagerLog[i].Result.Settled() {
			n++
		}
	}
	return n
}

// Account 单个账号：状态 + 互斥锁 + 持久化句柄
// 同一账号的开盘/结算/指令处理全部在持锁状态下串行执行。
type Account struct {
	Name    string
	ChatID  string // 该账号的通知会话（空则用全局管理员通道）
	ModelID string // 该账号当前使用的模型

	State   *State
	Presets map[string]domain.Preset

	mu    sync.Mutex
	store persistence.Store
	Log   *logrus.Entry
}

// Load 加载（或初始化）账号
func Load(name, chatID, modelID string, svc persistence.Service, presets map[string]domain.Preset) (*Account, error) {
	a := &Account{
		Name:    name,
		ChatID:  chatID,
		ModelID: modelID,
		Presets: presets,
		store:   svc.NewStore("account", name, "state"),
		Log:     logger.ForAccount(name),
	}

	st := NewState()
	err := a.store.Load(st)
	switch err {
	case nil:
		st.normalize()
		a.Log.Infof("✅ 账号状态已恢复: 总局数=%d 资金=%d", st.Counters.Total, st.Counters.GamblingFund)
	case persistence.ErrNotExists:
		a.Log.Info("🆕 账号首次启动，使用默认状态")
	default:
		return nil, err
	}
	a.State = st
	if a.ModelID != "" {
		a.State.Counters.CurrentModelID = a.ModelID
	}
	return a, nil
}

// Lock 获取账号锁
func (a *Account) Lock() { a.mu.Lock() }

// Unlock 释放账号锁
func (a *Account) Unlock() { a.mu.Unlock() }

// Save 落盘当前状态；失败只记日志（下一次变更会再试）
func (a *Account) Save() {
	if err := a.store.Save(a.State); err != nil {
		a.Log.Errorf("❌ 账号状态落盘失败: %v", err)
	}
}

// Preset 按名称取预设
func (a *Account) Preset(name string) (domain.Preset, bool) {
	p, ok := a.Presets[name]
	return p, ok
}

// Manager 账号集合
type Manager struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewManager 创建账号管理器
func NewManager() *Manager {
	return &Manager{accounts: make(map[string]*Account)}
}

// Add 注册账号
func (m *Manager) Add(a *Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.Name] = a
}

// Get 按名称取账号
func (m *Manager) Get(name string) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[name]
	return a, ok
}

// All 返回全部账号快照
func (m *Manager) All() []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out
}
