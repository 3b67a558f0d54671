package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/betbot/dicebot/pkg/logger"
)

// Service 持久化服务接口
type Service interface {
	NewStore(prefix, id, tag string) Store
}

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = fmt.Errorf("persistence data not exists")

// JSONFileService 基于 JSON 文件的持久化服务
// 每个账号的运行时状态落在独立文件里，写入走临时文件 + rename，
// 避免崩溃时留下半截 JSON（落盘仍是 at-least-once，不做事务保证）。
type JSONFileService struct {
	baseDir string
}

// NewJSONFileService 创建 JSON 文件持久化服务
func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

// NewStore 创建存储实例
func (s *JSONFileService) NewStore(prefix, id, tag string) Store {
	return &JSONFileStore{
		baseDir: s.baseDir,
		prefix:  sanitize(prefix),
		id:      sanitize(id),
		tag:     sanitize(tag),
	}
}

// JSONFileStore JSON 文件存储
type JSONFileStore struct {
	baseDir string
	prefix  string
	id      string
	tag     string
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	return s
}

func (s *JSONFileStore) filePath() string {
	parts := []string{}
	for _, p := range []string{s.prefix, s.id, s.tag} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return filepath.Join(s.baseDir, strings.Join(parts, "-")+".json")
}

// Save 保存数据到 JSON 文件
func (s *JSONFileStore) Save(data interface{}) error {
	path := s.filePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建持久化目录失败: %w", err)
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("替换持久化文件失败: %w", err)
	}

	logger.Debugf("持久化保存: %s (%d bytes)", path, len(buf))
	return nil
}

// Load 从 JSON 文件加载数据
func (s *JSONFileStore) Load(data interface{}) error {
	path := s.filePath()
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return fmt.Errorf("读取持久化文件失败: %w", err)
	}
	if err := json.Unmarshal(buf, data); err != nil {
		return fmt.Errorf("解析持久化文件失败 %s: %w", path, err)
	}
	return nil
}
