package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate_ChainID(t *testing.T) {
	for _, chain := range []int{1, 56, 137, 42161, 10} {
		cfg := &Config{ChainID: chain}
		assert.NoError(t, cfg.Validate(), "chain %d", chain)
	}

	cfg := &Config{ChainID: 43114}
	assert.Error(t, cfg.Validate())
}

func TestValidate_BackupRequiresBucket(t *testing.T) {
	cfg := &Config{ChainID: 1, Backup: BackupConfig{Enabled: true}}
	assert.Error(t, cfg.Validate())

	cfg.Backup.Bucket = "rebalancr-backups"
	assert.NoError(t, cfg.Validate())
}

func TestMinRebalanceInterval(t *testing.T) {
	e := EngineConfig{MinRebalanceDays: 7}
	assert.Equal(t, 7*24*time.Hour, e.MinRebalanceInterval())
}

func TestEngineDefaults(t *testing.T) {
	e := loadEngineConfig()

	assert.Equal(t, 0.25, e.SentimentWeight)
	assert.Equal(t, 0.25, e.BelowMedianWeight)
	assert.Equal(t, 0.25, e.VolatilityWeight)
	assert.Equal(t, 0.25, e.TrendWeight)
	assert.Equal(t, 0.3, e.ActionThreshold)
	assert.Equal(t, []string{"USDC", "USDT", "DAI"}, e.SafeAssets)
	assert.Equal(t, 0.2, e.SafeAssetFloor)
	assert.Equal(t, 7, e.MinRebalanceDays)
	assert.Equal(t, 30*time.Second, e.OrderTimeout)
	assert.Equal(t, 0.01, e.MinTradeFraction)
}
