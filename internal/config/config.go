package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	Environment string // development enables debug logging

	// Server
	Port int

	// Persistence
	DBPath    string // sqlite file for sound/category/preset records
	SoundsDir string // root of the built-in sound files ("/sounds/..." locators)
	MediaRoot string // uploaded custom sounds when S3 is not configured

	// S3-compatible object storage for uploaded sounds (optional)
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	// Mixer behavior
	MasterVolume  int  // initial master volume, percent
	AutoBootstrap bool // adopt most recent (or default) preset on startup

	// Listener streams
	StreamBitrate int    // kbps for the MP3 stream
	OpusBitrate   int    // bps for the WebRTC track
	STUNURL       string // empty disables ICE servers

	MetricsEnabled bool
	MaxUploadMB    int
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Environment: envStr("SOUNDSCAPE_ENV", "production"),

		Port: envInt("SOUNDSCAPE_PORT", 8080),

		DBPath:    envStr("SOUNDSCAPE_DB_PATH", "soundscape.db"),
		SoundsDir: envStr("SOUNDSCAPE_SOUNDS_DIR", "./public"),
		MediaRoot: envStr("SOUNDSCAPE_MEDIA_ROOT", "./media"),

		S3Bucket:          envStr("SOUNDSCAPE_S3_BUCKET", ""),
		S3Region:          envStr("SOUNDSCAPE_S3_REGION", "us-east-1"),
		S3Endpoint:        envStr("SOUNDSCAPE_S3_ENDPOINT", ""),
		S3AccessKeyID:     envStr("SOUNDSCAPE_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: envStr("SOUNDSCAPE_S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:    envBool("SOUNDSCAPE_S3_USE_PATH_STYLE", false),

		MasterVolume:  envInt("SOUNDSCAPE_MASTER_VOLUME", 70),
		AutoBootstrap: envBool("SOUNDSCAPE_AUTO_BOOTSTRAP", true),

		StreamBitrate: envInt("SOUNDSCAPE_STREAM_BITRATE", 192),
		OpusBitrate:   envInt("SOUNDSCAPE_OPUS_BITRATE", 128000),
		STUNURL:       envStr("SOUNDSCAPE_STUN_URL", "stun:stun.l.google.com:19302"),

		MetricsEnabled: envBool("SOUNDSCAPE_METRICS_ENABLED", true),
		MaxUploadMB:    envInt("SOUNDSCAPE_MAX_UPLOAD_MB", 50),
	}
}

// MaxUploadBytes returns the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(c.MaxUploadMB) << 20
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return fallback
}
