package recorder

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/dicebot/internal/domain"
)

var log = logrus.WithField("component", "recorder")

// Recorder 结算台账与预测审计的 sqlite 落盘
// 写失败只记日志不影响押注流程，台账是旁路审计而不是真相来源。
type Recorder struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS wagers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	account     TEXT NOT NULL,
	wager_id    TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	direction   TEXT NOT NULL,
	stake       INTEGER NOT NULL,
	result      TEXT NOT NULL,
	profit      INTEGER NOT NULL,
	lose_stop   INTEGER NOT NULL,
	settled_at  TIMESTAMP NOT NULL,
	UNIQUE(account, wager_id)
);
CREATE INDEX IF NOT EXISTS idx_wagers_account_time ON wagers(account, settled_at);

CREATE TABLE IF NOT EXISTS predictions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	account     TEXT NOT NULL,
	model_id    TEXT NOT NULL,
	direction   TEXT NOT NULL,
	confidence  INTEGER NOT NULL,
	fallback    INTEGER NOT NULL,
	rationale   TEXT,
	prompt      TEXT,
	raw_reply   TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_account_time ON predictions(account, created_at);
`

// Open 打开（必要时创建）台账数据库
func Open(path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "创建台账目录失败")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "打开台账数据库失败")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "初始化台账表结构失败")
	}

	log.Infof("💾 台账数据库已打开: %s", path)
	return &Recorder{db: db}, nil
}

// Close 关闭数据库
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// RecordWager 记录一笔已结算押注（同账号同押注 ID 幂等）
func (r *Recorder) RecordWager(ctx context.Context, account string, e domain.WagerLogEntry, settledAt time.Time) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO wagers
			(account, wager_id, sequence, direction, stake, result, profit, lose_stop, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account, e.ID, e.Sequence, e.Direction.Label(), e.Stake, string(e.Result), e.Profit, e.LoseStop, settledAt)
	return errors.Wrap(err, "写入押注台账失败")
}

// RecordPrediction 记录一次方向预测（含兜底预测）：输入摘要与模型原始回复
// 一并落库，用于命中率与提示词审计
func (r *Recorder) RecordPrediction(ctx context.Context, account, modelID string, dir domain.Direction, confidence int, fallback bool, rationale, prompt, rawReply string) error {
	if r == nil || r.db == nil {
		return nil
	}
	fb := 0
	if fallback {
		fb = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO predictions (account, model_id, direction, confidence, fallback, rationale, prompt, raw_reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account, modelID, dir.Label(), confidence, fb, rationale, prompt, rawReply, time.Now())
	return errors.Wrap(err, "写入预测审计失败")
}

// AccuracyWindow 统计账号最近 n 条预测审计里模型（非兜底）预测的占比
func (r *Recorder) AccuracyWindow(ctx context.Context, account string, n int) (total, modelBacked int, err error) {
	if r == nil || r.db == nil {
		return 0, 0, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN fallback = 0 THEN 1 ELSE 0 END), 0)
		FROM (SELECT fallback FROM predictions WHERE account = ? ORDER BY id DESC LIMIT ?)`,
		account, n)
	if err := row.Scan(&total, &modelBacked); err != nil {
		return 0, 0, errors.Wrap(err, "统计预测审计失败")
	}
	return total, modelBacked, nil
}
