// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases, always absolute
	Port            int
	DevMode         bool
	LogLevel        string
	AlloraAPIKey    string
	AlloraBaseURL   string
	KuruBaseURL     string
	ChainID         int // Network the executor trades on
	Engine          EngineConfig
	Backup          BackupConfig
	MonitorSchedule string // cron spec for the auto-rebalance monitor
}

// EngineConfig holds the rebalancing engine tunables. Defaults mirror the
// documented decision rules; everything is overridable via environment.
type EngineConfig struct {
	// Scoring weights, equal by default.
	SentimentWeight   float64
	BelowMedianWeight float64
	VolatilityWeight  float64
	TrendWeight       float64

	// Action hysteresis band: |score| must exceed this to recommend a change.
	ActionThreshold float64

	// Allocation planning.
	MaxAdjustment  float64 // proportional adjustment cap (0.2 = ±20%)
	MinAssetWeight float64
	MaxAssetWeight float64
	SafeAssets     []string
	SafeAssetFloor float64 // aggregate stablecoin floor

	// Cost-benefit gate.
	TradingFeeRate   float64
	FixedGasEstimate float64
	SlippageRate     float64
	MinRebalanceDays int

	// Reviewer thresholds.
	ApprovalThreshold float64
	MaxRisk           float64

	// Execution.
	OrderTimeout      time.Duration
	MaxCollectWorkers int

	// Trades below this fraction of portfolio value are not worth placing.
	MinTradeFraction float64
}

// BackupConfig holds S3-compatible ledger backup settings.
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string // S3-compatible endpoint (R2, minio); empty = AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Retention       int    // number of backups to keep
	Schedule        string // cron spec for the backup job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("REBALANCR_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8001),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AlloraAPIKey:    getEnv("ALLORA_API_KEY", ""),
		AlloraBaseURL:   getEnv("ALLORA_BASE_URL", "https://api.allora.network"),
		KuruBaseURL:     getEnv("KURU_BASE_URL", "http://localhost:9010"),
		ChainID:         getEnvAsInt("CHAIN_ID", 1),
		MonitorSchedule: getEnv("MONITOR_SCHEDULE", "0 */5 * * * *"), // every 5 minutes
		Engine:          loadEngineConfig(),
		Backup:          loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET required when backups are enabled")
	}
	if !supportedChain(c.ChainID) {
		return fmt.Errorf("unsupported chain id %d", c.ChainID)
	}
	return nil
}

// supportedChains are the networks the trade executor can settle on:
// Ethereum, BSC, Polygon, Arbitrum, Optimism.
var supportedChains = []int{1, 56, 137, 42161, 10}

func supportedChain(id int) bool {
	for _, c := range supportedChains {
		if c == id {
			return true
		}
	}
	return false
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		SentimentWeight:   getEnvAsFloat("WEIGHT_SENTIMENT", 0.25),
		BelowMedianWeight: getEnvAsFloat("WEIGHT_BELOW_MEDIAN", 0.25),
		VolatilityWeight:  getEnvAsFloat("WEIGHT_VOLATILITY", 0.25),
		TrendWeight:       getEnvAsFloat("WEIGHT_TREND", 0.25),
		ActionThreshold:   getEnvAsFloat("ACTION_THRESHOLD", 0.3),
		MaxAdjustment:     getEnvAsFloat("MAX_ADJUSTMENT", 0.2),
		MinAssetWeight:    getEnvAsFloat("MIN_ASSET_WEIGHT", 0.05),
		MaxAssetWeight:    getEnvAsFloat("MAX_ASSET_WEIGHT", 0.4),
		SafeAssets:        []string{"USDC", "USDT", "DAI"},
		SafeAssetFloor:    getEnvAsFloat("SAFE_ASSET_FLOOR", 0.2),
		TradingFeeRate:    getEnvAsFloat("TRADING_FEE_RATE", 0.001),
		FixedGasEstimate:  getEnvAsFloat("FIXED_GAS_ESTIMATE", 10.0),
		SlippageRate:      getEnvAsFloat("SLIPPAGE_RATE", 0.001),
		MinRebalanceDays:  getEnvAsInt("MIN_REBALANCE_DAYS", 7),
		ApprovalThreshold: getEnvAsFloat("APPROVAL_THRESHOLD", 0.6),
		MaxRisk:           getEnvAsFloat("MAX_RISK", 7.0),
		OrderTimeout:      time.Duration(getEnvAsInt("ORDER_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxCollectWorkers: getEnvAsInt("MAX_COLLECT_WORKERS", 10),
		MinTradeFraction:  getEnvAsFloat("MIN_TRADE_FRACTION", 0.01),
	}
}

func loadBackupConfig() BackupConfig {
	return BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Retention:       getEnvAsInt("BACKUP_RETENTION", 14),
		Schedule:        getEnv("BACKUP_SCHEDULE", "@daily"),
	}
}

// MinRebalanceInterval returns the global minimum interval between
// rebalances. The per-portfolio check_interval or this value, whichever is
// longer, governs the gate.
func (e EngineConfig) MinRebalanceInterval() time.Duration {
	return time.Duration(e.MinRebalanceDays) * 24 * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
