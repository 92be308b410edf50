// Package config provides centralized default values for Sharpline
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"`)

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

// getEnvSecret reads a value that must never be echoed to the log.
func getEnvSecret(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	log.Printf("Config override: %s=%s", key, valStr)
	return values
}

// Profile cache modes.
const (
	ProfileCacheModeRequest = "request"
	ProfileCacheModeSession = "session"
)

// Profile cache backends.
const (
	ProfileCacheBackendMemory = "memory"
	ProfileCacheBackendRedis  = "redis"
)

var (
	// Server Configuration
	Port               string
	GinMode            string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string

	// Database
	DBDriver                 string
	DBDSN                    string
	TursoAuthToken           string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	DBBootstrapSchema        bool
	SlowQueryThreshold       time.Duration

	// Visibility Profile
	ProfileCacheMode     string
	ProfileCacheBackend  string
	ProfileCacheTTL      time.Duration
	ProfileLoadTimeout   time.Duration
	DefaultDeviceClass   string
	CacheCleanupInterval time.Duration

	// Redis
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Auth
	JWTSecret         string
	AdminPasswordHash string
	AdminTokenTTL     time.Duration

	// Realtime
	WSWriteTimeout     time.Duration
	WSPingInterval     time.Duration
	WSClientBufferSize int

	// Logging
	LogDirectory string
	LogToFile    bool
	LogToConsole bool
	LogJSON      bool
	LogLevel     string
)

func init() {
	Load()
}

// Load (re)reads every setting from the environment.
func Load() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	GinMode = getEnvString("GIN_MODE", "debug")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	})

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBDSN = getEnvString("DB_DSN", "file:sharpline.db?_foreign_keys=on")
	TursoAuthToken = getEnvSecret("TURSO_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)
	DBBootstrapSchema = getEnvBool("DB_BOOTSTRAP_SCHEMA", true)
	SlowQueryThreshold = time.Duration(getEnvInt("SLOW_QUERY_THRESHOLD_MS", 500)) * time.Millisecond

	// Visibility Profile
	ProfileCacheMode = getEnvString("PROFILE_CACHE_MODE", ProfileCacheModeRequest)
	ProfileCacheBackend = getEnvString("PROFILE_CACHE_BACKEND", ProfileCacheBackendMemory)
	ProfileCacheTTL = getEnvDuration("PROFILE_CACHE_TTL", 60*time.Second)
	ProfileLoadTimeout = getEnvDuration("PROFILE_LOAD_TIMEOUT", 3*time.Second)
	DefaultDeviceClass = getEnvString("DEFAULT_DEVICE_CLASS", "desktop")
	CacheCleanupInterval = getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute)

	// Redis
	RedisAddr = getEnvString("REDIS_ADDR", "127.0.0.1:6379")
	RedisPassword = getEnvSecret("REDIS_PASSWORD", "")
	RedisDB = getEnvInt("REDIS_DB", 0)
	RedisKeyPrefix = getEnvString("REDIS_KEY_PREFIX", "sharpline:profile:")

	// Auth
	JWTSecret = getEnvSecret("JWT_SECRET", "")
	AdminPasswordHash = getEnvSecret("ADMIN_PASSWORD_HASH", "")
	AdminTokenTTL = getEnvDuration("ADMIN_TOKEN_TTL", 24*time.Hour)

	// Realtime
	WSWriteTimeout = getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second)
	WSPingInterval = getEnvDuration("WS_PING_INTERVAL", 30*time.Second)
	WSClientBufferSize = getEnvInt("WS_CLIENT_BUFFER_SIZE", 16)

	// Logging
	LogDirectory = getEnvString("LOG_DIR", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogToConsole = getEnvBool("LOG_TO_CONSOLE", true)
	LogJSON = getEnvBool("LOG_JSON", true)
	LogLevel = getEnvString("LOG_LEVEL", "info")
}
