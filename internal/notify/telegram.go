package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "notify")

// Notifier 运营通知发送器
// 所有发送都是 fire-and-forget：通知失败只记日志，绝不阻塞押注管道。
// token 为空时进入禁用模式，通知内容降级为日志输出。
type Notifier struct {
	client       *resty.Client
	token        string
	adminChat    string
	priorityChat string

	mu         sync.Mutex
	refreshIDs map[string]int64 // 刷新式通知: key -> 上一条消息 ID
}

// New 创建通知发送器
func New(token, adminChat, priorityChat string) *Notifier {
	if priorityChat == "" {
		priorityChat = adminChat
	}
	return &Notifier{
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second),
		token:        token,
		adminChat:    adminChat,
		priorityChat: priorityChat,
		refreshIDs:   make(map[string]int64),
	}
}

// Enabled 是否配置了可用的发送通道
func (n *Notifier) Enabled() bool {
	return n != nil && n.token != "" && n.adminChat != ""
}

// SendAdmin 发送到管理员通道
func (n *Notifier) SendAdmin(text string) {
	n.sendAsync(n.adminChat, text)
}

// SendPriority 发送到重点通道（连输告警、百局总结等）
func (n *Notifier) SendPriority(text string) {
	n.sendAsync(n.priorityChat, text)
}

// Refresh 刷新式通知：先删掉同 key 的上一条再发新的，避免刷屏
// 倒计时进度、面板刷新类的通知都走这里。
func (n *Notifier) Refresh(key, text string) {
	if !n.Enabled() {
		log.Infof("📢 [通知禁用] %s", text)
		return
	}
	go func() {
		n.mu.Lock()
		oldID := n.refreshIDs[key]
		n.mu.Unlock()

		if oldID != 0 {
			n.deleteMessage(n.adminChat, oldID)
		}
		id, err := n.send(n.adminChat, text)
		if err != nil {
			log.Warnf("⚠️ 刷新通知失败 [%s]: %v", key, err)
			return
		}
		n.mu.Lock()
		n.refreshIDs[key] = id
		n.mu.Unlock()
	}()
}

// SendEphemeral 发送限时通知，ttl 到期后自动删除
func (n *Notifier) SendEphemeral(text string, ttl time.Duration) {
	if !n.Enabled() {
		log.Infof("📢 [通知禁用] %s", text)
		return
	}
	go func() {
		id, err := n.send(n.adminChat, text)
		if err != nil {
			log.Warnf("⚠️ 限时通知发送失败: %v", err)
			return
		}
		time.AfterFunc(ttl, func() {
			n.deleteMessage(n.adminChat, id)
		})
	}()
}

func (n *Notifier) sendAsync(chatID, text string) {
	if !n.Enabled() || chatID == "" {
		log.Infof("📢 [通知禁用] %s", text)
		return
	}
	go func() {
		if _, err := n.send(chatID, text); err != nil {
			log.Warnf("⚠️ 通知发送失败: %v", err)
		}
	}()
}

type sendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

func (n *Notifier) send(chatID, text string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out sendResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id": chatID,
			"text":    text,
		}).
		SetResult(&out).
		Post(fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.token))
	if err != nil {
		return 0, errors.Wrap(err, "sendMessage 请求失败")
	}
	if resp.IsError() || !out.OK {
		return 0, errors.Errorf("sendMessage 被拒绝: %s", out.Description)
	}
	return out.Result.MessageID, nil
}

func (n *Notifier) deleteMessage(chatID string, messageID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id":    chatID,
			"message_id": messageID,
		}).
		Post(fmt.Sprintf("https://api.telegram.org/bot%s/deleteMessage", n.token))
	if err != nil {
		log.Debugf("删除旧通知失败 (忽略): %v", err)
	}
}
