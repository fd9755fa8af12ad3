package config

import (
	"os"
	"strconv"
	"time"

	"chess_webapp/internal/logger"

	"github.com/joho/godotenv"
)

// TimeoutPolicy decides what happens when the side to move runs out of time.
type TimeoutPolicy string

const (
	// TimeoutFallback plays a uniformly random legal move for the stalled side.
	TimeoutFallback TimeoutPolicy = "fallback"
	// TimeoutForfeit ends the game with a loss for the stalled side.
	TimeoutForfeit TimeoutPolicy = "forfeit"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	BotToken    string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool

	// Session engine
	TurnTime         time.Duration
	TimeoutPolicy    TimeoutPolicy
	ReconnectGrace   time.Duration
	AwaitingTimeout  time.Duration
	SessionEvictsIn  time.Duration
	FirstPlayerColor string // "white" or "random"

	// HTTP rate limits
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from the environment (.env supported).
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		logger.Fatal("BOT_TOKEN is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	policy := TimeoutFallback
	if os.Getenv("TIMEOUT_POLICY") == string(TimeoutForfeit) {
		policy = TimeoutForfeit
	}

	firstColor := os.Getenv("FIRST_PLAYER_COLOR")
	if firstColor != "random" {
		firstColor = "white"
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: dbURL,
		BotToken:    botToken,
		JWTSecret:   jwtSecret,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		LogLevel: envDefault("LOG_LEVEL", "info"),
		LogJSON:  os.Getenv("LOG_JSON") == "true",

		TurnTime:         envSeconds("TURN_TIME_SECONDS", 60),
		TimeoutPolicy:    policy,
		ReconnectGrace:   envSeconds("RECONNECT_GRACE_SECONDS", 15),
		AwaitingTimeout:  envSeconds("AWAITING_TIMEOUT_SECONDS", 300),
		SessionEvictsIn:  envSeconds("SESSION_EVICT_SECONDS", 60),
		FirstPlayerColor: firstColor,

		APIRateLimit:  envInt("API_RATE_LIMIT", 10),
		APIRateWindow: envSeconds("API_RATE_WINDOW_SECONDS", 60),
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}
