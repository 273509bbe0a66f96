package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the swing engine.
type Config struct {
	Port string

	// Storage
	DBPath             string
	StrategyConfigPath string

	// Universe and cadence
	Watchlist       []string
	ScanInterval    time.Duration
	MonitorInterval time.Duration
	HistoryLookback time.Duration // history window fetched per evaluation
	BarSize         time.Duration // bar granularity, e.g. 24h for daily

	// Capital
	InitialCapital float64
	MaxPositions   int

	// Broker
	UsePaperBroker  bool
	BrokerRPS       float64       // request throttle toward the venue
	HistoryCacheTTL time.Duration // how long fetched bar histories are reused
	ConnectAttempts int
	ConnectBackoff  time.Duration
	SettleDelay     time.Duration
	ClientID        string // overrides the machine-derived id when set

	// Auth
	JWTSecret        string
	OperatorPassword string // hashed at startup when no hash is supplied
	OperatorPassHash string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "./data/swing.db"),
		StrategyConfigPath: getEnv("STRATEGY_CONFIG_PATH", "./configs/strategy.yaml"),
		Watchlist:          splitAndTrim(getEnv("WATCHLIST", "AAPL,MSFT,NVDA,AMZN,GOOG")),
		ScanInterval:       getEnvDuration("SCAN_INTERVAL", 15*time.Minute),
		MonitorInterval:    getEnvDuration("MONITOR_INTERVAL", 5*time.Minute),
		HistoryLookback:    getEnvDuration("HISTORY_LOOKBACK", 120*24*time.Hour),
		BarSize:            getEnvDuration("BAR_SIZE", 24*time.Hour),
		InitialCapital:     getEnvFloat("INITIAL_CAPITAL", 100000.0),
		MaxPositions:       getEnvInt("MAX_POSITIONS", 5),
		UsePaperBroker:     getEnv("USE_PAPER_BROKER", "true") == "true",
		BrokerRPS:          getEnvFloat("BROKER_RPS", 4),
		HistoryCacheTTL:    getEnvDuration("HISTORY_CACHE_TTL", 30*time.Second),
		ConnectAttempts:    getEnvInt("CONNECT_ATTEMPTS", 5),
		ConnectBackoff:     getEnvDuration("CONNECT_BACKOFF", 5*time.Second),
		SettleDelay:        getEnvDuration("SETTLE_DELAY", 2*time.Second),
		ClientID:           os.Getenv("CLIENT_ID"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		OperatorPassword:   getEnv("OPERATOR_PASSWORD", "operator"),
		OperatorPassHash:   os.Getenv("OPERATOR_PASSWORD_HASH"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
