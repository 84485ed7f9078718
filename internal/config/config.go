package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	TokenTTL       time.Duration

	CORSOrigins []string

	// ForceNewCloseState is what an in-progress attempt becomes when a new
	// one is forced: "abandoned" or "finished".
	ForceNewCloseState string

	LogLevel    string
	LogFormat   string // json|console
	DefaultLang string
}

// FromEnv reads the process environment, after loading an optional .env
// file (or the files named in ENV_FILES) without overriding set variables.
func FromEnv() Config {
	files := csvOr("ENV_FILES", ".env")
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Strs("files", files).Msg("env files not loaded")
	}
	return Config{
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTL:           envDuration("TOKEN_TTL", 8*time.Hour),
		CORSOrigins:        csvOr("CORS_ORIGINS", "http://localhost:3000"),
		ForceNewCloseState: envOr("FORCE_NEW_CLOSE_STATE", "abandoned"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		LogFormat:          envOr("LOG_FORMAT", "json"),
		DefaultLang:        envOr("DEFAULT_LANG", "en"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
