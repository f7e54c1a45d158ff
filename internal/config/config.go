package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// UploadConfig holds intake constraints for incoming files.
type UploadConfig struct {
	MaxSizeMB         int
	AllowedExtensions []string
}

// MaxSizeBytes returns the configured upload limit in bytes.
func (u UploadConfig) MaxSizeBytes() int64 {
	return int64(u.MaxSizeMB) << 20
}

// Allows reports whether the given extension (lower-cased, with leading dot)
// is in the allow-list.
func (u UploadConfig) Allows(ext string) bool {
	for _, allowed := range u.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// DownstreamConfig holds settings for the downstream processing service.
type DownstreamConfig struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

// MinIOConfig holds object storage settings for the optional S3 staging backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StagingConfig selects and configures the staging backend.
// "disk" stages uploads under Dir; "s3" stages them in an S3-compatible bucket.
type StagingConfig struct {
	Backend string
	Dir     string
	MinIO   MinIOConfig
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables once at startup and never
// mutated afterwards; components receive it (or a sub-struct) explicitly.
type AppConfig struct {
	AppHost        string
	Port           string
	Upload         UploadConfig
	Downstream     DownstreamConfig
	Staging        StagingConfig
	AllowedOrigins []string
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Upload: UploadConfig{
			MaxSizeMB:         getEnvInt("MAX_UPLOAD_SIZE_MB", 200),
			AllowedExtensions: normalizeExtensions(getEnvList("ALLOWED_EXTENSIONS", "mp3,wav,m4a,mp4,webm,ogg,flac")),
		},
		Downstream: DownstreamConfig{
			BaseURL:       strings.TrimRight(getEnv("AI_SERVICE_URL", "http://localhost:8000"), "/"),
			Timeout:       time.Duration(getEnvInt("AI_TIMEOUT_MIN", 30)) * time.Minute,
			HealthTimeout: time.Duration(getEnvInt("AI_HEALTH_TIMEOUT_SEC", 5)) * time.Second,
		},
		Staging: StagingConfig{
			Backend: getEnv("STAGING_BACKEND", "disk"),
			Dir:     getEnv("STAGING_DIR", "./uploads"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", ""),
	}
}

// normalizeExtensions lower-cases entries and ensures each carries a leading
// dot, so they compare directly against filepath.Ext output.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma-separated variable into trimmed entries.
// An empty variable (and empty default) yields a nil slice.
func getEnvList(key, def string) []string {
	v := getEnv(key, def)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
