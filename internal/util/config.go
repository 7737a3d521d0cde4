package util

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultResetTTL   = 15 * time.Minute

	defaultIssuer   = "slotbook"
	defaultAudience = "slotbook-api"

	defaultCleanupInterval = 1 * time.Hour
	defaultCleanupGrace    = 24 * time.Hour

	defaultResetThrottleTTL = 1 * time.Minute

	defaultArgonMemoryKiB   = 64 * 1024
	defaultArgonIterations  = 3
	defaultArgonParallelism = 2

	RawTokenLength = 32
	JWTLeeWay      = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// TokenConfig carries the signing key locations and token lifetimes.
// The key files themselves are read once, at service construction.
type TokenConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	Issuer         string
	Audience       string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ResetTTL       time.Duration
}

func NewTokenConfig() *TokenConfig {
	privPath := os.Getenv("JWT_PRIVATE_KEY_PATH")
	if privPath == "" {
		log.Fatal("JWT_PRIVATE_KEY_PATH is not set")
	}
	pubPath := os.Getenv("JWT_PUBLIC_KEY_PATH")
	if pubPath == "" {
		log.Fatal("JWT_PUBLIC_KEY_PATH is not set")
	}

	return &TokenConfig{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		Issuer:         getenvOrDefault("JWT_ISSUER", defaultIssuer),
		Audience:       getenvOrDefault("JWT_AUDIENCE", defaultAudience),
		AccessTTL:      parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:     parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
		ResetTTL:       parseDurationOrDefault("RESET_TOKEN_TTL", defaultResetTTL),
	}
}

type PasswordConfig struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

func NewPasswordConfig() *PasswordConfig {
	return &PasswordConfig{
		MemoryKiB:   uint32(parseIntOrDefault("ARGON2_MEMORY_KIB", defaultArgonMemoryKiB)),
		Iterations:  uint32(parseIntOrDefault("ARGON2_ITERATIONS", defaultArgonIterations)),
		Parallelism: uint8(parseIntOrDefault("ARGON2_PARALLELISM", defaultArgonParallelism)),
	}
}

type CleanupConfig struct {
	Interval time.Duration
	Grace    time.Duration
}

func NewCleanupConfig() *CleanupConfig {
	return &CleanupConfig{
		Interval: parseDurationOrDefault("TOKEN_CLEANUP_INTERVAL", defaultCleanupInterval),
		Grace:    parseDurationOrDefault("TOKEN_CLEANUP_GRACE", defaultCleanupGrace),
	}
}

type ResetConfig struct {
	ThrottleTTL time.Duration
	LinkBaseURL string
}

func NewResetConfig() *ResetConfig {
	return &ResetConfig{
		ThrottleTTL: parseDurationOrDefault("RESET_THROTTLE_TTL", defaultResetThrottleTTL),
		LinkBaseURL: getenvOrDefault("RESET_LINK_BASE_URL", "https://app.slotbook.io/reset-password"),
	}
}

func GetMailerURL() string {
	return os.Getenv("MAILER_URL")
}

func getenvOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid integer in %s: %s, using default %d", varName, v, def)
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
