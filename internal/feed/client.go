package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dicebot/internal/events"
	"github.com/betbot/dicebot/pkg/cache"
	"github.com/betbot/dicebot/pkg/sigchan"
)

var log = logrus.WithField("component", "feed")

// RoundHandler 事件流处理器接口
type RoundHandler interface {
	OnRoundOpened(ctx context.Context, event *events.RoundOpenedEvent) error
	OnRoundSettled(ctx context.Context, event *events.RoundSettledEvent) error
}

// ErrStaleTarget 押注目标已过期（开盘消息已被更新的一局替换）
var ErrStaleTarget = errors.New("押注目标已过期")

// frame 事件流线格式
type frame struct {
	Type        string `json:"type"` // round_opened / settle / place_ack
	Account     string `json:"account"`
	EventID     string `json:"eventId"`
	Text        string `json:"text"`
	HasControls bool   `json:"hasControls"`
	Timestamp   int64  `json:"ts"`

	// balance
	Amount int64 `json:"amount,omitempty"`

	// place_ack
	RequestID string `json:"requestId,omitempty"`
	OK        bool   `json:"ok,omitempty"`
	Error     string `json:"error,omitempty"`
}

// placeRequest 下注指令线格式
type placeRequest struct {
	Type      string `json:"type"` // place_stake
	RequestID string `json:"requestId"`
	Account   string `json:"account"`
	EventID   string `json:"eventId"`
	Direction string `json:"direction"` // big / small
	Stake     int64  `json:"stake"`
}

// Client 游戏事件流客户端
// 断线自动重连（指数退避），事件按到达顺序串行分发给处理器，
// 处理器 panic 不会拖垮读循环。
type Client struct {
	url               string
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	clickTimeout      time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers []RoundHandler
	pending  map[string]chan *frame // requestId -> ack
	// latestPrompt 每个账号最近一次带控件的开盘事件，过期重试时用
	latestPrompt map[string]*events.RoundOpenedEvent
	// balances 事件流推送的账户余额快照（带 TTL，过期视为未知）
	balances *cache.BalanceCache

	// reconnected 断线重连成功的信号，订阅方可据此发告警
	reconnected *sigchan.Chan
}

// Options 客户端参数
type Options struct {
	URL               string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ClickTimeout      time.Duration
}

// NewClient 创建事件流客户端
func NewClient(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	if opts.MaxReconnectDelay <= 0 {
		opts.MaxReconnectDelay = 60 * time.Second
	}
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 6 * time.Second
	}
	return &Client{
		url:               opts.URL,
		reconnectDelay:    opts.ReconnectDelay,
		maxReconnectDelay: opts.MaxReconnectDelay,
		clickTimeout:      opts.ClickTimeout,
		pending:           make(map[string]chan *frame),
		latestPrompt:      make(map[string]*events.RoundOpenedEvent),
		balances:          cache.NewBalanceCache(),
		reconnected:       sigchan.New(1),
	}
}

// OnRound 注册事件处理器（须在 Run 之前调用）
func (c *Client) OnRound(h RoundHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Run 连接并持续读取事件流，ctx 取消后返回
func (c *Client) Run(ctx context.Context) error {
	delay := c.reconnectDelay
	first := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Errorf("❌ 事件流连接失败: %v，%s 后重试", err, delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxReconnectDelay {
				delay = c.maxReconnectDelay
			}
			continue
		}

		log.Infof("✅ 事件流已连接: %s", c.url)
		delay = c.reconnectDelay
		if !first {
			c.reconnected.Emit()
		}
		first = false

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// Close 关闭当前连接
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("⚠️ 事件流读取中断: %v", err)
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Warnf("⚠️ 事件帧解码失败: %v", err)
			continue
		}
		c.dispatch(ctx, &f)
	}
}

func (c *Client) dispatch(ctx context.Context, f *frame) {
	switch f.Type {
	case "round_opened":
		ev := &events.RoundOpenedEvent{
			Account:          f.Account,
			EventID:          f.EventID,
			PromptText:       f.Text,
			HasStakeControls: f.HasControls,
			Timestamp:        tsOrNow(f.Timestamp),
		}
		if ev.HasStakeControls {
			c.mu.Lock()
			c.latestPrompt[ev.Account] = ev
			c.mu.Unlock()
		}
		c.emitOpened(ctx, ev)

	case "settle":
		value, label, err := ParseSettleText(f.Text)
		if err != nil {
			log.Debugf("忽略非结算文案: %v", err)
			return
		}
		ev := &events.RoundSettledEvent{
			Account:     f.Account,
			EventID:     f.EventID,
			ResultValue: value,
			ResultLabel: label,
			Timestamp:   tsOrNow(f.Timestamp),
		}
		c.emitSettled(ctx, ev)

	case "balance":
		c.balances.Set(f.Account, f.Amount)

	case "place_ack":
		c.mu.Lock()
		ch := c.pending[f.RequestID]
		delete(c.pending, f.RequestID)
		c.mu.Unlock()
		if ch != nil {
			ch <- f
		}

	default:
		log.Debugf("忽略未知事件帧: %s", f.Type)
	}
}

func (c *Client) emitOpened(ctx context.Context, ev *events.RoundOpenedEvent) {
	for i, h := range c.snapshot() {
		func(idx int, h RoundHandler) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("开盘处理器 %d panic: %v", idx, r)
				}
			}()
			if err := h.OnRoundOpened(ctx, ev); err != nil {
				log.Errorf("开盘处理器 %d 执行失败: %v", idx, err)
			}
		}(i, h)
	}
}

func (c *Client) emitSettled(ctx context.Context, ev *events.RoundSettledEvent) {
	for i, h := range c.snapshot() {
		func(idx int, h RoundHandler) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("结算处理器 %d panic: %v", idx, r)
				}
			}()
			if err := h.OnRoundSettled(ctx, ev); err != nil {
				log.Errorf("结算处理器 %d 执行失败: %v", idx, err)
			}
		}(i, h)
	}
}

func (c *Client) snapshot() []RoundHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RoundHandler, len(c.handlers))
	copy(out, c.handlers)
	return out
}

// Reconnected 返回断线重连成功的信号通道
func (c *Client) Reconnected() <-chan struct{} {
	return c.reconnected.C()
}

// Balance 返回账号最近探测到的平台余额（超过 TTL 视为未知）
func (c *Client) Balance(account string) (int64, bool) {
	return c.balances.Get(account)
}

// LatestPrompt 返回账号最近一次可下注的开盘事件
func (c *Client) LatestPrompt(account string) *events.RoundOpenedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestPrompt[account]
}

func tsOrNow(ts int64) time.Time {
	if ts <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ts)
}
