package feed

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/betbot/dicebot/internal/domain"
)

// Placer 押注执行接口
type Placer interface {
	// PlaceStake 在指定开盘事件上押注；目标过期时内部用最新开盘事件重试一次
	PlaceStake(ctx context.Context, account, eventID string, dir domain.Direction, stake int64) error
}

// PlaceStake 发送押注指令并等待回执
// 回执报告目标过期时，取该账号最新的开盘事件重试一次；仍失败则放弃，
// 把这一局当作观望（由调用方决定后续处理）。
func (c *Client) PlaceStake(ctx context.Context, account, eventID string, dir domain.Direction, stake int64) error {
	err := c.placeOnce(ctx, account, eventID, dir, stake)
	if !errors.Is(err, ErrStaleTarget) {
		return err
	}

	latest := c.LatestPrompt(account)
	if latest == nil || latest.EventID == eventID {
		return err
	}
	log.Warnf("⚠️ [%s] 押注目标已过期，换最新一局重试: %s -> %s", account, eventID, latest.EventID)
	return c.placeOnce(ctx, account, latest.EventID, dir, stake)
}

func (c *Client) placeOnce(ctx context.Context, account, eventID string, dir domain.Direction, stake int64) error {
	req := placeRequest{
		Type:      "place_stake",
		RequestID: uuid.NewString(),
		Account:   account,
		EventID:   eventID,
		Direction: dir.Label(),
		Stake:     stake,
	}

	ackCh := make(chan *frame, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return errors.New("事件流未连接")
	}
	c.pending[req.RequestID] = ackCh
	c.mu.Unlock()

	if err := conn.WriteJSON(req); err != nil {
		c.dropPending(req.RequestID)
		return errors.Wrap(err, "押注指令发送失败")
	}

	select {
	case <-ctx.Done():
		c.dropPending(req.RequestID)
		return ctx.Err()
	case <-time.After(c.clickTimeout):
		c.dropPending(req.RequestID)
		return errors.Errorf("押注回执超时 (%s)", c.clickTimeout)
	case ack := <-ackCh:
		if ack.OK {
			return nil
		}
		if strings.Contains(ack.Error, "stale") || strings.Contains(ack.Error, "过期") {
			return ErrStaleTarget
		}
		return errors.Errorf("押注被拒绝: %s", ack.Error)
	}
}

func (c *Client) dropPending(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}
