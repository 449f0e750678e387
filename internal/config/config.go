package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	HTTPAddr string

	// DBDSN selects the Postgres stores when non-empty; otherwise the
	// service runs on the in-memory stores with seeded demo data.
	DBDSN string

	JWTSecret string
	JWTTTL    time.Duration

	MetricsEnabled bool
	MetricsToken   string

	// AMQPURL enables order event publishing when non-empty.
	AMQPURL    string
	EventQueue string

	// SimulatedLatency delays every request, mimicking the fixed delay the
	// original storefront UI was built against. Off by default.
	SimulatedLatency time.Duration

	CartTTL         time.Duration
	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and builds Config with defaults overridden
// by environment variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		DBDSN:            os.Getenv("DB_DSN"),
		JWTSecret:        envOrDefault("JWT_SECRET", "dev-secret"),
		JWTTTL:           envMinutes("JWT_TTL_MINUTES", 15*time.Minute),
		MetricsEnabled:   os.Getenv("METRICS_ENABLED") == "1",
		MetricsToken:     os.Getenv("METRICS_TOKEN"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		EventQueue:       envOrDefault("EVENT_QUEUE", "order-events"),
		SimulatedLatency: envMillis("SIMULATED_LATENCY_MS", 0),
		CartTTL:          envDays("CART_TTL_DAYS", 30*24*time.Hour),
		ShutdownTimeout:  envSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	return scaled(key, def, time.Second)
}

func envMinutes(key string, def time.Duration) time.Duration {
	return scaled(key, def, time.Minute)
}

func envMillis(key string, def time.Duration) time.Duration {
	return scaled(key, def, time.Millisecond)
}

func envDays(key string, def time.Duration) time.Duration {
	return scaled(key, def, 24*time.Hour)
}

func scaled(key string, def, unit time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * unit
		}
	}
	return def
}
