// Package app holds process-level configuration loaded from the environment.
package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	MongoURI      string
	MongoDatabase string
	LogLevel      string
	LogFormat     string

	PlayerName string
	// DontRepeatFor is the fraction of the library held back from random
	// selection after playing. Clamped to [0,1]; zero (the default)
	// disables repeat suppression.
	DontRepeatFor float64
	// MaxDontRepeatFor caps the held-back count. Negative means no cap.
	MaxDontRepeatFor int
	TickInterval     time.Duration

	LibraryDir        string
	FFProbePath       string
	YouTubeAPIKey     string
	MetadataCachePath string
	MetadataCacheTTL  time.Duration
	MPVPath           string
	// PlayerBackend selects the playback adapter: "mpv" or "noop".
	PlayerBackend string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB", "jukebox"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),

		PlayerName:       getEnv("PLAYER_NAME", "default"),
		DontRepeatFor:    clamp01(getEnvFloat("DONT_REPEAT_FOR", 0)),
		MaxDontRepeatFor: maxDontRepeatFromEnv(),
		TickInterval:     time.Duration(getEnvInt64("TICK_INTERVAL_MS", 250)) * time.Millisecond,

		LibraryDir:        getEnv("LIBRARY_DIR", "music"),
		FFProbePath:       getEnv("FFPROBE_PATH", "ffprobe"),
		YouTubeAPIKey:     getEnv("YOUTUBE_API_KEY", ""),
		MetadataCachePath: getEnv("METADATA_CACHE_PATH", "metadata-cache.db"),
		MetadataCacheTTL:  time.Duration(getEnvInt64("METADATA_CACHE_TTL_HOURS", 168)) * time.Hour,
		MPVPath:           getEnv("MPV_PATH", "mpv"),
		PlayerBackend:     strings.ToLower(getEnv("PLAYER_BACKEND", "mpv")),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 200)),
	}
}

// maxDontRepeatFromEnv distinguishes "unset" from an explicit zero: unset
// means no cap, zero disables repeat suppression entirely.
func maxDontRepeatFromEnv() int {
	value := strings.TrimSpace(os.Getenv("MAX_DONT_REPEAT_FOR"))
	if value == "" {
		return -1
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return -1
	}
	return parsed
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
