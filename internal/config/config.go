package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string // dev|prod

	DBDriver string
	DBDSN    string

	BlobBasePath string

	RedisURL    string // memory cache when empty
	InstanceTTL time.Duration

	AuthSecret      string
	EnableLocalAuth bool
	LocalUsers      []string // user:role:bcrypt-hash

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	GradeLatency time.Duration
}

func FromEnv() Config {
	mode := Mode(envOr("MODE", string(ModeOffline)))
	return Config{
		Mode:               mode,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		LogMode:            envOr("LOG_MODE", "dev"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		BlobBasePath:       envOr("BLOB_BASE_PATH", "./data"),
		RedisURL:           os.Getenv("REDIS_URL"),
		InstanceTTL:        time.Duration(envInt("INSTANCE_TTL_SEC", 3600)) * time.Second,
		AuthSecret:         envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", true),
		LocalUsers:         csvOr("LOCAL_USERS", ""),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://quiztab.example.com"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000"),
		GradeLatency:       time.Duration(envInt("GRADE_LATENCY_MS", 0)) * time.Millisecond,
	}
}

// CORSOrigins returns the origin list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil || n < 0 {
		return def
	}
	return n
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
