// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NeuronPulse/ChatPlus/internal/chat"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls
// and the tunables handed down to the chat core.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	StorageDir      string
	StorageCapacity int64
	ArchiveDSN      string
	ShutdownTimeout time.Duration
	Chat            chat.Config
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 1 << 20,
		RateLimit: RateLimitConfig{
			Burst:          20,
			RefillInterval: time.Second,
		},
		StorageDir:      "./uploads",
		StorageCapacity: 1 << 30,
		ShutdownTimeout: 10 * time.Second,
		Chat:            chat.DefaultConfig(),
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 1 << 20
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "./uploads"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := sanitizeConfig(defaultConfig())
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseInt64Value(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	if dir := os.Getenv("STORAGE_DIR"); dir != "" {
		cfg.StorageDir = dir
	}

	if capacity := os.Getenv("STORAGE_CAPACITY"); capacity != "" {
		cfg.StorageCapacity = parseInt64Value(capacity, cfg.StorageCapacity)
	}

	cfg.ArchiveDSN = os.Getenv("ARCHIVE_DSN")

	if name := os.Getenv("DEFAULT_ROOM_NAME"); name != "" {
		cfg.Chat.DefaultRoomName = name
	}

	if maxUpload := os.Getenv("MAX_UPLOAD_SIZE"); maxUpload != "" {
		cfg.Chat.MaxUploadBytes = parseInt64Value(maxUpload, cfg.Chat.MaxUploadBytes)
	}

	if maxVoice := os.Getenv("MAX_VOICE_UPLOAD_SIZE"); maxVoice != "" {
		cfg.Chat.MaxVoiceUploadBytes = parseInt64Value(maxVoice, cfg.Chat.MaxVoiceUploadBytes)
	}

	if blocked := os.Getenv("BLOCKED_EXTENSIONS"); blocked != "" {
		cfg.Chat.BlockedExtensions = parseExtensions(blocked)
	}

	if voice := os.Getenv("ENABLE_VOICE"); voice != "" {
		cfg.Chat.EnableVoice = parseBoolValue(voice, cfg.Chat.EnableVoice)
	}

	if enc := os.Getenv("ALLOW_ROOM_ENCRYPTION"); enc != "" {
		cfg.Chat.AllowRoomEncryption = parseBoolValue(enc, cfg.Chat.AllowRoomEncryption)
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseExtensions(value string) []string {
	parts := strings.Split(value, ",")
	exts := make([]string, 0, len(parts))
	for _, part := range parts {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseBoolValue(value string, defaultValue bool) bool {
	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
