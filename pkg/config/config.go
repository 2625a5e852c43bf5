package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
	Export    ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig toggles memoization of scheduling runs in Redis.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// SchedulerConfig carries defaults for scheduling runs. Requests may override
// constraints and weights per run.
type SchedulerConfig struct {
	Enabled                   bool
	MaxStudentsPerClass       int
	MaxClassesPerTeacher      int
	MaxContentPerClass        int
	WeightContentProgression  float64
	WeightStudentAvailability float64
	WeightClassSize           float64
	WeightScheduleContinuity  float64
	Workers                   int
	WorkerRetries             int
	WorkerRetryDelay          time.Duration
}

// ExportConfig controls stored schedule exports and their signed links.
type ExportConfig struct {
	Dir           string
	SigningSecret string
	LinkTTL       time.Duration
	Retention     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("SCHEDULER_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:                   v.GetBool("ENABLE_SCHEDULER"),
		MaxStudentsPerClass:       v.GetInt("SCHEDULER_MAX_STUDENTS_PER_CLASS"),
		MaxClassesPerTeacher:      v.GetInt("SCHEDULER_MAX_CLASSES_PER_TEACHER"),
		MaxContentPerClass:        v.GetInt("SCHEDULER_MAX_CONTENT_PER_CLASS"),
		WeightContentProgression:  v.GetFloat64("SCHEDULER_WEIGHT_CONTENT_PROGRESSION"),
		WeightStudentAvailability: v.GetFloat64("SCHEDULER_WEIGHT_STUDENT_AVAILABILITY"),
		WeightClassSize:           v.GetFloat64("SCHEDULER_WEIGHT_CLASS_SIZE"),
		WeightScheduleContinuity:  v.GetFloat64("SCHEDULER_WEIGHT_SCHEDULE_CONTINUITY"),
		Workers:                   v.GetInt("SCHEDULER_WORKERS"),
		WorkerRetries:             v.GetInt("SCHEDULER_WORKER_RETRIES"),
		WorkerRetryDelay:          parseDuration(v.GetString("SCHEDULER_WORKER_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Export = ExportConfig{
		Dir:           v.GetString("EXPORT_DIR"),
		SigningSecret: v.GetString("EXPORT_SIGNING_SECRET"),
		LinkTTL:       parseDuration(v.GetString("EXPORT_LINK_TTL"), time.Hour),
		Retention:     parseDuration(v.GetString("EXPORT_RETENTION"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("SCHEDULER_CACHE_TTL", "15m")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_MAX_STUDENTS_PER_CLASS", 6)
	v.SetDefault("SCHEDULER_MAX_CLASSES_PER_TEACHER", 8)
	v.SetDefault("SCHEDULER_MAX_CONTENT_PER_CLASS", 3)
	v.SetDefault("SCHEDULER_WEIGHT_CONTENT_PROGRESSION", 0.3)
	v.SetDefault("SCHEDULER_WEIGHT_STUDENT_AVAILABILITY", 0.3)
	v.SetDefault("SCHEDULER_WEIGHT_CLASS_SIZE", 0.2)
	v.SetDefault("SCHEDULER_WEIGHT_SCHEDULE_CONTINUITY", 0.2)
	v.SetDefault("SCHEDULER_WORKERS", 2)
	v.SetDefault("SCHEDULER_WORKER_RETRIES", 3)
	v.SetDefault("SCHEDULER_WORKER_RETRY_DELAY", "2s")

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNING_SECRET", "")
	v.SetDefault("EXPORT_LINK_TTL", "1h")
	v.SetDefault("EXPORT_RETENTION", "24h")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
