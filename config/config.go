package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"raffle/database"
	"raffle/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// VRFModeMock fulfills requests in-process with the local coordinator mock
	VRFModeMock = "mock"
	// VRFModeNATS exchanges requests and fulfillments with an external coordinator over NATS
	VRFModeNATS = "nats"

	defaultKeyHash = "0x787d74caea10b2b357790d5b5247c2f63d1d91572a9846f780606e4d953677ae"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated)

	// Raffle configuration, fixed once the raffle row exists
	RaffleID           int64
	EntranceFee        *big.Int // wei
	Interval           time.Duration
	RaffleAddress      common.Address // consumer address of this engine
	UpkeepPollInterval time.Duration

	// Randomness oracle configuration
	VRFMode                 string
	VRFCoordinatorAddress   common.Address
	VRFKeyHash              common.Hash
	VRFSubscriptionID       *big.Int
	VRFCallbackGasLimit     uint32
	VRFRequestConfirmations uint16
	VRFNativePayment        bool
	VRFMockFundAmount       *big.Int
	VRFMockFulfillDelay     time.Duration

	// Listen addresses
	HTTPAddr       string
	GRPCHealthAddr string

	// Discord configuration, announcer is disabled without a token
	DiscordToken     string
	DiscordGuildID   string // empty registers the slash command globally
	DiscordChannelID string

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// UseInMemoryStore returns true when no database is configured outside production
func (c *Config) UseInMemoryStore() bool {
	return c.DatabaseURL == "" && c.Environment != "production"
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RaffleConfig returns the construction settings of the raffle
func (c *Config) RaffleConfig() entities.RaffleConfig {
	return entities.RaffleConfig{
		EntranceFee:          new(big.Int).Set(c.EntranceFee),
		Interval:             c.Interval,
		KeyHash:              c.VRFKeyHash,
		SubscriptionID:       new(big.Int).Set(c.VRFSubscriptionID),
		CallbackGasLimit:     c.VRFCallbackGasLimit,
		RequestConfirmations: c.VRFRequestConfirmations,
		NumWords:             entities.DefaultNumWords,
		NativePayment:        c.VRFNativePayment,
		RaffleAddress:        c.RaffleAddress,
	}
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// NATS
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),

		// Raffle
		RaffleID:           getInt64WithDefault("RAFFLE_ID", 1),
		Interval:           time.Duration(getInt64WithDefault("RAFFLE_INTERVAL_SECONDS", 30)) * time.Second,
		RaffleAddress:      common.HexToAddress(getEnvWithDefault("RAFFLE_ADDRESS", "0x0000000000000000000000000000000000000001")),
		UpkeepPollInterval: time.Duration(getInt64WithDefault("UPKEEP_POLL_INTERVAL_SECONDS", 5)) * time.Second,

		// VRF
		VRFMode:                 strings.ToLower(getEnvWithDefault("VRF_MODE", VRFModeMock)),
		VRFCoordinatorAddress:   common.HexToAddress(getEnvWithDefault("VRF_COORDINATOR_ADDRESS", "0x0000000000000000000000000000000000000002")),
		VRFKeyHash:              common.HexToHash(getEnvWithDefault("VRF_KEY_HASH", defaultKeyHash)),
		VRFCallbackGasLimit:     uint32(getInt64WithDefault("VRF_CALLBACK_GAS_LIMIT", int64(entities.DefaultCallbackGasLimit))),
		VRFRequestConfirmations: uint16(getInt64WithDefault("VRF_REQUEST_CONFIRMATIONS", int64(entities.DefaultRequestConfirmations))),
		VRFNativePayment:        getBoolWithDefault("VRF_NATIVE_PAYMENT", false),
		VRFMockFulfillDelay:     time.Duration(getInt64WithDefault("VRF_MOCK_FULFILL_DELAY_MS", 1000)) * time.Millisecond,

		// Listen addresses
		HTTPAddr:       getEnvWithDefault("HTTP_ADDR", ":8080"),
		GRPCHealthAddr: getEnvWithDefault("GRPC_HEALTH_ADDR", ":9090"),

		// Discord
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordGuildID:   os.Getenv("DISCORD_GUILD_ID"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),

		// OpenTelemetry
		OTelEnabled:              getBoolWithDefault("OTEL_ENABLED", false),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "raffle"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelExportIntervalMillis: int(getInt64WithDefault("OTEL_EXPORT_INTERVAL_MILLIS", 60000)),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	var err error
	if config.EntranceFee, err = getBigIntWithDefault("RAFFLE_ENTRANCE_FEE_WEI", entities.DefaultEntranceFee); err != nil {
		return nil, err
	}
	if config.VRFSubscriptionID, err = getBigIntWithDefault("VRF_SUBSCRIPTION_ID", big.NewInt(1)); err != nil {
		return nil, err
	}
	// 30 ether, the amount the deploy scripts fund the local mock subscription with
	defaultFund := new(big.Int).Mul(big.NewInt(30), big.NewInt(1_000_000_000_000_000_000))
	if config.VRFMockFundAmount, err = getBigIntWithDefault("VRF_MOCK_FUND_AMOUNT_WEI", defaultFund); err != nil {
		return nil, err
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.VRFMode != VRFModeMock && config.VRFMode != VRFModeNATS {
		return nil, fmt.Errorf("VRF_MODE must be %q or %q, got %q", VRFModeMock, VRFModeNATS, config.VRFMode)
	}

	if config.Environment == "production" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.VRFMode == VRFModeMock {
			return nil, fmt.Errorf("VRF_MODE=mock is not allowed in production")
		}
	}
	// If DatabaseName is provided, ensure it's not empty
	if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
		return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}

	if err := config.RaffleConfig().Validate(); err != nil {
		return nil, fmt.Errorf("invalid raffle configuration: %w", err)
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getBigIntWithDefault parses a base-10 uint256 such as a wei amount
func getBigIntWithDefault(key string, defaultValue *big.Int) (*big.Int, error) {
	value := os.Getenv(key)
	if value == "" {
		return new(big.Int).Set(defaultValue), nil
	}
	parsed, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return parsed, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:             "test",
		RaffleID:                1,
		EntranceFee:             new(big.Int).Set(entities.DefaultEntranceFee),
		Interval:                entities.DefaultInterval,
		RaffleAddress:           common.HexToAddress("0x0000000000000000000000000000000000000001"),
		UpkeepPollInterval:      time.Second,
		VRFMode:                 VRFModeMock,
		VRFCoordinatorAddress:   common.HexToAddress("0x0000000000000000000000000000000000000002"),
		VRFKeyHash:              common.HexToHash(defaultKeyHash),
		VRFSubscriptionID:       big.NewInt(1),
		VRFCallbackGasLimit:     entities.DefaultCallbackGasLimit,
		VRFRequestConfirmations: entities.DefaultRequestConfirmations,
		VRFMockFundAmount:       new(big.Int).Mul(big.NewInt(30), big.NewInt(1_000_000_000_000_000_000)),
		OTelServiceName:         "raffle",
		OTelExporterType:        "none",
		LogLevel:                "info",
	}
}
