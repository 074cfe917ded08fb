package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
}

// SchedulerConfig contains all scheduler-related configuration settings.
type SchedulerConfig struct {
	Workers       int `mapstructure:"workers"         validate:"required,gte=1,lte=1024"`
	MaxRetries    int `mapstructure:"max_retries"     validate:"gte=0,lte=100"`
	BackoffBaseMS int `mapstructure:"backoff_base_ms" validate:"required,gte=1"`
}

// LogConfig contains all logging-related configuration settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}
