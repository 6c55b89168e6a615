package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// 全局配置实例
var global *Config

// Config 全局配置（从 .env 加载）
// 只包含进程级配置，引擎阈值在 engine.Config / engine.Weights 级别
type Config struct {
	// 服务配置
	APIServerPort int
	LogLevel      string

	// 持久化路径
	DBPath           string
	RelationshipFile string
	WeightsFile      string
	SnapshotFile     string

	// 决策循环
	CycleInterval time.Duration
	LearnInterval time.Duration

	// Telegram 通知（可选）
	TelegramBotToken string
	TelegramChatID   int64
}

// Init 初始化全局配置（从 .env 加载）
func Init() {
	cfg := &Config{
		APIServerPort:    8080,
		LogLevel:         "info",
		DBPath:           "goldclose.db",
		RelationshipFile: "relationships.json",
		WeightsFile:      "weights.json",
		SnapshotFile:     "snapshot.json",
		CycleInterval:    15 * time.Second,
		LearnInterval:    6 * time.Hour,
	}

	if v := os.Getenv("API_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.APIServerPort = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = strings.TrimSpace(v)
	}
	if v := os.Getenv("RELATIONSHIP_FILE"); v != "" {
		cfg.RelationshipFile = strings.TrimSpace(v)
	}
	if v := os.Getenv("WEIGHTS_FILE"); v != "" {
		cfg.WeightsFile = strings.TrimSpace(v)
	}
	if v := os.Getenv("SNAPSHOT_FILE"); v != "" {
		cfg.SnapshotFile = strings.TrimSpace(v)
	}
	if v := os.Getenv("CYCLE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CycleInterval = d
		}
	}
	if v := os.Getenv("LEARN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LearnInterval = d
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.TelegramBotToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}

	global = cfg
}

// Get 获取全局配置
func Get() *Config {
	if global == nil {
		Init()
	}
	return global
}
