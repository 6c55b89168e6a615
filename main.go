package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"goldclose/api"
	"goldclose/config"
	"goldclose/engine"
	"goldclose/logger"
	"goldclose/manager"
	"goldclose/relation"
	"goldclose/store"
	"goldclose/tuner"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file if present (for local/dev runs)
	_ = godotenv.Load()

	cfg := config.Get()
	if err := logger.InitWithLevel(cfg.LogLevel); err != nil {
		logger.Warnf("⚠️ 日志级别 %q 无效，使用 info: %v", cfg.LogLevel, err)
	}

	logger.Info("╔════════════════════════════════════════════╗")
	logger.Info("║    🥇 XAUUSD 平仓决策引擎                  ║")
	logger.Info("╚════════════════════════════════════════════╝")

	logger.Infof("📋 初始化数据库: %s", cfg.DBPath)
	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("❌ 初始化数据库失败: %v", err)
	}
	defer st.Close()

	// 关系文件缺失或损坏时从空仓关系启动，不阻塞决策
	rel := relation.Load(cfg.RelationshipFile)

	weights := tuner.LoadWeights(cfg.WeightsFile)
	eng, err := engine.New(engine.DefaultConfig(), weights, rel)
	if err != nil {
		logger.Fatalf("❌ 初始化决策引擎失败: %v", err)
	}

	provider := manager.NewFileSnapshotProvider(cfg.SnapshotFile)
	mgr, err := manager.New(eng, rel, st, provider, manager.DryRunExecutor{})
	if err != nil {
		logger.Fatalf("❌ 初始化周期管理器失败: %v", err)
	}

	// 周期性用平仓结果微调评分权重
	if err := mgr.EnableLearning(tuner.New(st), cfg.WeightsFile, cfg.LearnInterval); err != nil {
		logger.Warnf("⚠️ 权重学习初始化失败: %v", err)
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		notifier, err := manager.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warnf("⚠️ Telegram 通知初始化失败: %v", err)
		} else {
			mgr.SetNotifier(notifier)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiServer := api.NewServer(eng, rel, st, cfg.APIServerPort)
	mgr.OnDecision(apiServer.Hub().Publish)
	go func() {
		if err := apiServer.Start(ctx); err != nil {
			logger.Errorf("❌ API服务器错误: %v", err)
		}
	}()

	go mgr.Run(ctx, cfg.CycleInterval)

	// 优雅退出
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("📛 收到退出信号，正在优雅关闭...")
	cancel()

	if err := rel.Save(); err != nil {
		logger.Warnf("⚠️ 关闭前保存仓位关系失败: %v", err)
	}
	logger.Info("✅ 已安全关闭")
}
