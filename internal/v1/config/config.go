package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration
type Config struct {
	// Core
	Port                 string
	CORSOrigins          string
	RemoteControlToken   string
	RoomAutoCreateOnJoin bool
	AllowSameMachine     bool
	RemoteDebug          bool

	// Optional variables with defaults
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool

	// Optional Redis (rate limiter store + readiness probe)
	RedisAddr     string
	RedisPassword string

	// Optional JWT admission mode
	AuthJWTDomain   string
	AuthJWTAudience string

	// Downloads
	HostAppZipPath string

	// Tracing
	OtelCollectorAddr string

	// Rate Limits
	RateLimitWsIP string
}

// ValidateEnv validates all environment variables and returns a Config object.
// Returns an error if any variable is present but invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Optional: PORT (defaults to 5000)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "5000"
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	// Optional: CORS_ORIGINS (comma-separated allow-list, "*" allows any)
	cfg.CORSOrigins = os.Getenv("CORS_ORIGINS")
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "http://localhost:5173,http://127.0.0.1:5173"
	}

	// Optional: REMOTE_CONTROL_TOKEN (shared admission token; empty disables the gate)
	cfg.RemoteControlToken = strings.TrimSpace(os.Getenv("REMOTE_CONTROL_TOKEN"))

	// Optional: ROOM_AUTO_CREATE_ON_JOIN (enabled unless explicitly "0")
	cfg.RoomAutoCreateOnJoin = os.Getenv("ROOM_AUTO_CREATE_ON_JOIN") != "0"

	// Optional: ALLOW_SAME_MACHINE_REMOTE (disabled unless "1")
	cfg.AllowSameMachine = os.Getenv("ALLOW_SAME_MACHINE_REMOTE") == "1"

	// Optional: REMOTE_DEBUG (per-session traffic counters)
	cfg.RemoteDebug = os.Getenv("REMOTE_DEBUG") == "1"

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = os.Getenv("GO_ENV")
	if cfg.GoEnv == "" {
		cfg.GoEnv = "production"
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true" || cfg.GoEnv == "development"

	// Optional: REDIS_ADDR (rate limiter store; memory store when unset)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr != "" && !isValidHostPort(cfg.RedisAddr) {
		errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	// Optional: JWT admission mode (both must be set together)
	cfg.AuthJWTDomain = os.Getenv("AUTH_JWT_DOMAIN")
	cfg.AuthJWTAudience = os.Getenv("AUTH_JWT_AUDIENCE")
	if (cfg.AuthJWTDomain == "") != (cfg.AuthJWTAudience == "") {
		errs = append(errs, "AUTH_JWT_DOMAIN and AUTH_JWT_AUDIENCE must be set together")
	}

	// Optional: HOST_APP_ZIP_PATH (downloads endpoint returns 404 when unset)
	cfg.HostAppZipPath = os.Getenv("HOST_APP_ZIP_PATH")

	// Optional: OTEL_COLLECTOR_ADDR (tracing disabled when unset)
	cfg.OtelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")
	if cfg.OtelCollectorAddr != "" && !isValidHostPort(cfg.OtelCollectorAddr) {
		errs = append(errs, fmt.Sprintf("OTEL_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.OtelCollectorAddr))
	}

	// Rate limits (M = Minute, H = Hour)
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// AllowedOrigins splits the configured CORS allow-list. A "*" entry means any
// origin is allowed.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// AllowAllOrigins reports whether the allow-list contains the wildcard.
func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.AllowedOrigins() {
		if o == "*" {
			return true
		}
	}
	return false
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"cors_origins", cfg.CORSOrigins,
		"admission_token", redactSecret(cfg.RemoteControlToken),
		"room_auto_create_on_join", cfg.RoomAutoCreateOnJoin,
		"allow_same_machine_remote", cfg.AllowSameMachine,
		"remote_debug", cfg.RemoteDebug,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"redis_addr", cfg.RedisAddr,
		"jwt_domain", cfg.AuthJWTDomain,
		"rate_limit_ws_ip", cfg.RateLimitWsIP,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first characters
func redactSecret(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
