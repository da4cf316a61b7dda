// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type AllocationConfig struct {
	RosterLimit     int
	CourseLabels    []string
	AutoEnroll      bool
	AutoEnrollLimit int
	ProgressTTL     time.Duration
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled    bool
	Database     DatabaseConfig
	Redis        RedisConfig
	SeedDemoData bool
	Log          struct {
		Level  string
		Format string
	}
	Allocation AllocationConfig
}

// Load reads the environment. A .env file in the working directory, when
// present, fills variables that are not already set.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "exam_allocation")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.SeedDemoData = getEnv("SEED_DEMO_DATA", "true") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Allocation.RosterLimit = parseInt(getEnv("ALLOC_ROSTER_LIMIT", "50"), 50)
	cfg.Allocation.CourseLabels = splitList(getEnv("ALLOC_COURSE_LABELS", "CS301,MATH201"))
	cfg.Allocation.AutoEnroll = getEnv("ALLOC_AUTO_ENROLL", "false") == "true"
	cfg.Allocation.AutoEnrollLimit = parseInt(getEnv("ALLOC_AUTO_ENROLL_LIMIT", "20"), 20)
	cfg.Allocation.ProgressTTL = parseDuration(getEnv("ALLOC_PROGRESS_TTL", "1h"), time.Hour)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
