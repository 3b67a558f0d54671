package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// logMu 初始化/切换锁
	logMu sync.Mutex
)

// Config 日志配置
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	OutputFile string // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize    int    // 日志文件最大大小（MB）
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留旧日志文件的天数
	Compress   bool   // 是否压缩旧日志文件
}

// Init 初始化全局日志
// 文件输出走 lumberjack 轮转，控制台始终保留一份。
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    orDefault(config.MaxSize, 50),
			MaxBackups: orDefault(config.MaxBackups, 7),
			MaxAge:     orDefault(config.MaxAge, 14),
			Compress:   config.Compress,
		}
		l.SetOutput(io.MultiWriter(os.Stdout, rotator))
		currentLogFile = config.OutputFile
	} else {
		l.SetOutput(os.Stdout)
		currentLogFile = ""
	}

	Logger = l
	return nil
}

// InitDefault 使用默认配置初始化（仅控制台，info 级别）
func InitDefault() error {
	return Init(Config{Level: "info"})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func ensure() *logrus.Logger {
	if Logger == nil {
		_ = InitDefault()
	}
	return Logger
}

// Debug 输出调试日志
func Debug(args ...interface{}) { ensure().Debug(args...) }

// Debugf 输出格式化调试日志
func Debugf(format string, args ...interface{}) { ensure().Debugf(format, args...) }

// Info 输出信息日志
func Info(args ...interface{}) { ensure().Info(args...) }

// Infof 输出格式化信息日志
func Infof(format string, args ...interface{}) { ensure().Infof(format, args...) }

// Warn 输出警告日志
func Warn(args ...interface{}) { ensure().Warn(args...) }

// Warnf 输出格式化警告日志
func Warnf(format string, args ...interface{}) { ensure().Warnf(format, args...) }

// Error 输出错误日志
func Error(args ...interface{}) { ensure().Error(args...) }

// Errorf 输出格式化错误日志
func Errorf(format string, args ...interface{}) { ensure().Errorf(format, args...) }

// WithField 创建带字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return ensure().WithField(key, value)
}

// WithFields 创建带多字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return ensure().WithFields(fields)
}

// ForAccount 创建账号维度的日志条目
// 每个账号管道的日志都带 account 字段，便于多账号混排时过滤。
func ForAccount(name string) *logrus.Entry {
	return ensure().WithField("account", name)
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}
