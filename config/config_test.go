package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "10000000000000000", cfg.EntranceFee.String())
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, VRFModeMock, cfg.VRFMode)
	assert.Equal(t, uint32(100000), cfg.VRFCallbackGasLimit)
	assert.Equal(t, uint16(3), cfg.VRFRequestConfirmations)
	assert.Equal(t, "30000000000000000000", cfg.VRFMockFundAmount.String())
	assert.True(t, cfg.UseInMemoryStore())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("RAFFLE_ENTRANCE_FEE_WEI", "5")
	t.Setenv("RAFFLE_INTERVAL_SECONDS", "60")
	t.Setenv("VRF_MODE", "NATS")
	t.Setenv("VRF_NATIVE_PAYMENT", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432")
	t.Setenv("DATABASE_NAME", "raffle")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, "5", cfg.EntranceFee.String())
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, VRFModeNATS, cfg.VRFMode)
	assert.True(t, cfg.VRFNativePayment)
	assert.False(t, cfg.UseInMemoryStore())
	assert.Equal(t, "postgres://localhost:5432/raffle?sslmode=disable", cfg.GetDatabaseURL())

	rc := cfg.RaffleConfig()
	assert.True(t, rc.NativePayment)
	assert.Equal(t, uint32(1), rc.NumWords)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unparseable fee", env: map[string]string{"RAFFLE_ENTRANCE_FEE_WEI": "0.01"}},
		{name: "zero fee", env: map[string]string{"RAFFLE_ENTRANCE_FEE_WEI": "0"}},
		{name: "unknown vrf mode", env: map[string]string{"VRF_MODE": "chain"}},
		{name: "production without database", env: map[string]string{"ENVIRONMENT": "production", "VRF_MODE": "nats"}},
		{name: "production with mock oracle", env: map[string]string{"ENVIRONMENT": "production", "DATABASE_URL": "postgres://db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := load()
			assert.Error(t, err)
		})
	}
}

func TestSetTestConfig(t *testing.T) {
	defer ResetConfig()

	cfg := NewTestConfig()
	cfg.RaffleID = 42
	SetTestConfig(cfg)

	assert.Equal(t, int64(42), Get().RaffleID)
}
