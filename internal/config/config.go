package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
// アプリケーション設定を保持
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig holds database configuration
// データベース設定を保持
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// APIConfig holds API server configuration
// APIサーバー設定を保持
type APIConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	EnableCORS    bool          `yaml:"enable_cors"`
	EnableMetrics bool          `yaml:"enable_metrics"`
}

// WarehouseConfig holds transfer engine configuration
// 移動エンジンの設定を保持
type WarehouseConfig struct {
	MaxTransferQuantity  int64 `yaml:"max_transfer_quantity"`
	MovementHistoryLimit int   `yaml:"movement_history_limit"`
}

// LoggingConfig holds logging configuration
// ログ設定を保持
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, file
}

// defaultConfig returns the built-in defaults
// 組み込みのデフォルト設定を返す
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "warehouse",
			Password: "password",
			DBName:   "warehouse_db",
			SSLMode:  "disable",
		},
		API: APIConfig{
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			IdleTimeout:   60 * time.Second,
			EnableCORS:    true,
			EnableMetrics: true,
		},
		Warehouse: WarehouseConfig{
			MaxTransferQuantity:  0,
			MovementHistoryLimit: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnv overlays environment variables on the given configuration.
// Only variables that are actually set override the current values.
// 環境変数を設定に上書き適用。設定されている変数のみが現在値を置き換える
func applyEnv(cfg *Config) {
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.API.Port = getEnvAsInt("API_PORT", cfg.API.Port)
	cfg.API.ReadTimeout = getEnvAsDuration("API_READ_TIMEOUT", cfg.API.ReadTimeout)
	cfg.API.WriteTimeout = getEnvAsDuration("API_WRITE_TIMEOUT", cfg.API.WriteTimeout)
	cfg.API.IdleTimeout = getEnvAsDuration("API_IDLE_TIMEOUT", cfg.API.IdleTimeout)
	cfg.API.EnableCORS = getEnvAsBool("API_ENABLE_CORS", cfg.API.EnableCORS)
	cfg.API.EnableMetrics = getEnvAsBool("API_ENABLE_METRICS", cfg.API.EnableMetrics)

	cfg.Warehouse.MaxTransferQuantity = getEnvAsInt64("WAREHOUSE_MAX_TRANSFER_QUANTITY", cfg.Warehouse.MaxTransferQuantity)
	cfg.Warehouse.MovementHistoryLimit = getEnvAsInt("WAREHOUSE_MOVEMENT_HISTORY_LIMIT", cfg.Warehouse.MovementHistoryLimit)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Output = getEnv("LOG_OUTPUT", cfg.Logging.Output)
}

// Load loads configuration from environment variables over the defaults
// デフォルト設定に環境変数を上書きして読み込み
func Load() (*Config, error) {
	cfg := defaultConfig()
	applyEnv(cfg)

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}

	return cfg, nil
}

// LoadFile loads configuration with the precedence
// defaults <- YAML file <- environment variables, then validates the result.
// 優先順位 デフォルト <- YAMLファイル <- 環境変数 で設定を読み込んで検証
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込みに失敗しました: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパースに失敗しました: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}

	return cfg, nil
}

// Resolve loads from the file named by CONFIG_FILE when set,
// otherwise from defaults and environment variables only
// CONFIG_FILEが設定されていればそのファイルから、なければ環境変数のみで読み込み
func Resolve() (*Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return LoadFile(path)
	}
	return Load()
}

// Validate validates the configuration
// 設定をバリデーション
func (c *Config) Validate() error {
	// データベース設定チェック
	if c.Database.Host == "" {
		return fmt.Errorf("データベースホストが指定されていません")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("無効なデータベースポート: %d", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("データベースユーザーが指定されていません")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("データベース名が指定されていません")
	}

	// API設定チェック
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("無効なAPIポート: %d", c.API.Port)
	}

	// 倉庫設定チェック
	if c.Warehouse.MaxTransferQuantity < 0 {
		return fmt.Errorf("移動数量上限は0以上である必要があります")
	}
	if c.Warehouse.MovementHistoryLimit <= 0 {
		return fmt.Errorf("移動履歴取得件数は正の値である必要があります")
	}

	// ログ設定チェック
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("無効なログレベル: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("無効なログフォーマット: %s", c.Logging.Format)
	}

	return nil
}

// DSN generates PostgreSQL Data Source Name
// PostgreSQLデータソース名を生成
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// ヘルパー関数

// getEnv gets environment variable with default value
// デフォルト値付きで環境変数を取得
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer with default value
// デフォルト値付きで環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsInt64 gets environment variable as int64 with default value
// デフォルト値付きで環境変数をint64として取得
func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if int64Value, err := strconv.ParseInt(value, 10, 64); err == nil {
			return int64Value
		}
	}
	return defaultValue
}

// getEnvAsBool gets environment variable as boolean with default value
// デフォルト値付きで環境変数をbooleanとして取得
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets environment variable as duration with default value
// デフォルト値付きで環境変数をdurationとして取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
