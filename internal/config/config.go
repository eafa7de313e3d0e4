package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hdrcalc/internal/emitter"
	"hdrcalc/internal/shooting"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Shooting ShootingConfig `yaml:"shooting"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	LogLevel string         `yaml:"log_level"` // debug, info, warn, error
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig はシミュレータとして動かすカメラの設定
type CameraConfig struct {
	Name    string `yaml:"name"`    // 機種名
	Address string `yaml:"address"` // 検出時に報告するアドレス

	CommandDelay   time.Duration `yaml:"command_delay"`   // コマンド1回の応答時間
	DiscoveryDelay time.Duration `yaml:"discovery_delay"` // 検出にかかる時間
	ConnectDelay   time.Duration `yaml:"connect_delay"`   // 接続にかかる時間
}

// ShootingConfig は撮影シーケンスの設定
type ShootingConfig struct {
	VerifyAttempts int           `yaml:"verify_attempts"` // 読み戻しの最大回数
	VerifyDelay    time.Duration `yaml:"verify_delay"`    // 再読み戻し前の待ち時間
	FrameOverhead  time.Duration `yaml:"frame_overhead"`  // 1枚あたりのオーバーヘッド（見積もり用）
}

// MQTTConfig は進捗配信の設定。Broker が空なら配信しない
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// Default はデフォルト値の設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Camera: CameraConfig{
			Name:           "ILCE-7RM5",
			Address:        "192.168.122.1",
			CommandDelay:   50 * time.Millisecond,
			DiscoveryDelay: 1500 * time.Millisecond,
			ConnectDelay:   time.Second,
		},
		Shooting: ShootingConfig{
			VerifyAttempts: 3,
			VerifyDelay:    300 * time.Millisecond,
			FrameOverhead:  2500 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			ClientID:       "hdrcalc",
			TopicPrefix:    "hdrcalc/shoots",
			PublishTimeout: 2 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load は設定を読み込む
//
// .env、デフォルト値、YAMLファイル、環境変数の順に適用する。
// path が空またはファイルが存在しない場合、YAMLは読まない。
func Load(path string) (*Config, error) {
	// .env は無くてもよい
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile はYAMLファイルの値でデフォルト値を上書きする
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}
	return nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() error {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Shooting.VerifyAttempts = getEnvAsIntOrDefault("HDR_VERIFY_ATTEMPTS", c.Shooting.VerifyAttempts)
	c.MQTT.Broker = getEnvOrDefault("MQTT_BROKER", c.MQTT.Broker)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)

	var err error
	if c.Shooting.VerifyDelay, err = getEnvAsDurationOrDefault("HDR_VERIFY_DELAY", c.Shooting.VerifyDelay); err != nil {
		return err
	}
	if c.Shooting.FrameOverhead, err = getEnvAsDurationOrDefault("HDR_FRAME_OVERHEAD", c.Shooting.FrameOverhead); err != nil {
		return err
	}
	if c.Camera.CommandDelay, err = getEnvAsDurationOrDefault("HDR_STUB_DELAY", c.Camera.CommandDelay); err != nil {
		return err
	}
	return nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("タイムアウトが負の値です")
	}

	// カメラ設定の検証
	if c.Camera.CommandDelay < 0 || c.Camera.DiscoveryDelay < 0 || c.Camera.ConnectDelay < 0 {
		return fmt.Errorf("カメラの遅延が負の値です")
	}

	// 撮影設定の検証
	if c.Shooting.VerifyAttempts < 1 {
		return fmt.Errorf("無効な読み戻し回数: %d", c.Shooting.VerifyAttempts)
	}
	if c.Shooting.VerifyDelay < 0 {
		return fmt.Errorf("無効な読み戻し間隔: %s", c.Shooting.VerifyDelay)
	}
	if c.Shooting.FrameOverhead < 0 {
		return fmt.Errorf("無効なフレームオーバーヘッド: %s", c.Shooting.FrameOverhead)
	}

	// MQTT設定の検証
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("無効なQoS: %d", c.MQTT.QoS)
	}
	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		return fmt.Errorf("MQTTのトピックが設定されていません")
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Level はログレベルを返す
func (c *Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Controller は撮影コントローラの設定に変換する
func (s ShootingConfig) Controller() shooting.Config {
	return shooting.Config{
		VerifyAttempts: s.VerifyAttempts,
		VerifyDelay:    s.VerifyDelay,
		FrameOverhead:  s.FrameOverhead,
	}
}

// Enabled は配信が有効かどうかを返す
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Emitter は配信の設定に変換する
func (m MQTTConfig) Emitter() emitter.Config {
	return emitter.Config{
		Broker:         m.Broker,
		ClientID:       m.ClientID,
		TopicPrefix:    m.TopicPrefix,
		QoS:            m.QoS,
		PublishTimeout: m.PublishTimeout,
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("無効なログレベル: %s", s)
	}
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は環境変数を時間として取得する
// "300ms" のような形式のほか、単位のない数値は秒として扱う
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}

	var seconds float64
	if _, err := fmt.Sscanf(value, "%g", &seconds); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("%s: 無効な時間: %q", key, value)
}
