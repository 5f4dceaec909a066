package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the judge daemon.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	QueueName         string
	EventSubjectBase  string
	WorkerConcurrency int
	ExecutorBackend   string
	DockerHost        string
	WorkspaceRoot     string
	TimeLimit         time.Duration
	MemoryLimitMb     int
	SubmissionBudget  time.Duration
}

// HTTPAddress returns the address the ops HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and an optional
// .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("JUDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Judge Core")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8090")
	v.SetDefault("queue.name", "judge:queue")
	v.SetDefault("event.subject_base", "judge")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("executor.backend", "process")
	v.SetDefault("time_limit_ms", 5000)
	v.SetDefault("memory_limit_mb", 256)
	v.SetDefault("submission_budget_ms", 120000)

	timeLimitMs := v.GetInt("time_limit_ms")
	if timeLimitMs <= 0 {
		timeLimitMs = 5000
	}

	budgetMs := v.GetInt("submission_budget_ms")
	if budgetMs <= 0 {
		budgetMs = 120000
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		QueueName:         v.GetString("queue.name"),
		EventSubjectBase:  v.GetString("event.subject_base"),
		WorkerConcurrency: v.GetInt("worker.concurrency"),
		ExecutorBackend:   strings.ToLower(v.GetString("executor.backend")),
		DockerHost:        v.GetString("docker_host"),
		WorkspaceRoot:     v.GetString("workspace.root"),
		TimeLimit:         time.Duration(timeLimitMs) * time.Millisecond,
		MemoryLimitMb:     v.GetInt("memory_limit_mb"),
		SubmissionBudget:  time.Duration(budgetMs) * time.Millisecond,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("redis url must be provided")
	}

	if cfg.ExecutorBackend != "process" && cfg.ExecutorBackend != "docker" {
		return Config{}, fmt.Errorf("unknown executor backend %q", cfg.ExecutorBackend)
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 4
	}

	if cfg.MemoryLimitMb <= 0 {
		cfg.MemoryLimitMb = 256
	}

	return cfg, nil
}
