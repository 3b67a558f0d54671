package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/betbot/dicebot/internal/account"
	"github.com/betbot/dicebot/internal/controlplane/server"
	"github.com/betbot/dicebot/internal/feed"
	"github.com/betbot/dicebot/internal/modelgw"
	"github.com/betbot/dicebot/internal/notify"
	"github.com/betbot/dicebot/internal/recorder"
	"github.com/betbot/dicebot/internal/strategies/bigsmall"
	"github.com/betbot/dicebot/pkg/config"
	"github.com/betbot/dicebot/pkg/logger"
	"github.com/betbot/dicebot/pkg/persistence"
	"github.com/betbot/dicebot/pkg/secretstore"
	"github.com/betbot/dicebot/pkg/shutdown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		OutputFile: cfg.Logging.OutputFile,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		panic(err)
	}
	log := logger.WithField("component", "main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sd := shutdown.NewManager()

	// 密钥库（模型 API Key 等敏感配置优先从这里取）
	secretKey, err := secretstore.ParseKey(os.Getenv("DICEBOT_SECRET_KEY"))
	if err != nil {
		log.Fatalf("❌ 密钥库加密密钥不合法: %v", err)
	}
	secrets, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Data.SecretPath,
		EncryptionKey: secretKey,
	})
	if err != nil {
		log.Fatalf("❌ 密钥库打开失败: %v", err)
	}
	sd.OnShutdown(func(context.Context) { _ = secrets.Close() })

	// 结算台账（旁路审计，打不开只降级不退出）
	rec, err := recorder.Open(cfg.Data.LedgerPath)
	if err != nil {
		log.Warnf("⚠️ 台账数据库不可用，审计功能降级: %v", err)
		rec = nil
	} else {
		sd.OnShutdown(func(context.Context) { _ = rec.Close() })
	}

	// 账号加载
	persist := persistence.NewJSONFileService(cfg.Data.BaseDir)
	specs, err := account.LoadSpecs(filepath.Join(cfg.Data.BaseDir, cfg.Data.AccountsDir))
	if err != nil {
		log.Fatalf("❌ 账号配置加载失败: %v", err)
	}
	if len(specs) == 0 {
		log.Fatal("❌ 没有配置任何账号")
	}

	// 单个账号加载失败只影响它自己，其余账号照常跑
	accounts := account.NewManager()
	for _, spec := range specs {
		a, err := account.Load(spec.Name, spec.ChatID, spec.ModelID, persist, spec.Presets)
		if err != nil {
			log.Errorf("❌ 账号 %s 加载失败，跳过该账号: %v", spec.Name, err)
			continue
		}
		accounts.Add(a)
	}
	loaded := len(accounts.All())
	if loaded == 0 {
		log.Fatal("❌ 没有任何账号加载成功")
	}
	log.Infof("✅ 已加载 %d/%d 个账号", loaded, len(specs))

	// 模型网关与通知
	gateway := modelgw.NewHTTPGateway(cfg.Models.Endpoints, secrets)
	notifier := notify.New(
		os.Getenv(cfg.Notify.TelegramTokenEnv),
		cfg.Notify.AdminChatID,
		cfg.Notify.PriorityChatID,
	)

	// 事件流
	feedClient := feed.NewClient(feed.Options{
		URL:               cfg.Feed.URL,
		ReconnectDelay:    time.Duration(cfg.Feed.ReconnectDelaySec) * time.Second,
		MaxReconnectDelay: time.Duration(cfg.Feed.MaxReconnectDelay) * time.Second,
		ClickTimeout:      time.Duration(cfg.Betting.ClickTimeoutSec * float64(time.Second)),
	})
	sd.OnShutdown(func(context.Context) { _ = feedClient.Close() })

	// 策略
	strategy, err := bigsmall.New(bigsmall.Config{}, bigsmall.Deps{
		Accounts:         accounts,
		Placer:           feedClient,
		Gateway:          gateway,
		Notifier:         notifier,
		Recorder:         rec,
		Balances:         feedClient,
		DefaultModelID:   cfg.Models.Default,
		PredictTimeout:   cfg.PredictTimeout(),
		PauseHintTimeout: cfg.PauseHintTimeout(),
	})
	if err != nil {
		log.Fatalf("❌ 策略初始化失败: %v", err)
	}
	feedClient.OnRound(strategy)

	// 控制面（未配置监听地址则不启动）
	if cfg.Control.Listen != "" {
		cp := server.New(accounts, strategy)
		go func() {
			if err := cp.Run(ctx, cfg.Control.Listen); err != nil {
				log.Errorf("❌ 控制面退出: %v", err)
			}
		}()
	}

	// 断线重连告警
	go func() {
		for range feedClient.Reconnected() {
			notifier.SendAdmin("🔌 事件流断线后已重连")
		}
	}()

	// 事件流主循环
	go func() {
		if err := feedClient.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("❌ 事件流退出: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("🛑 收到退出信号，开始优雅关停")

	// 关停前把所有账号状态落一次盘
	for _, a := range accounts.All() {
		a.Lock()
		a.Save()
		a.Unlock()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	sd.Shutdown(shutdownCtx)
	log.Info("👋 已退出")
}
