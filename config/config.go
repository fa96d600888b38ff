// Package config loads the application settings and opens the external
// resources (Postgres, Redis) the composition root wires into the
// services.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every runtime setting, sourced from the environment.
type Config struct {
	Port             string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string
	JWTSecret        string
	SchedulerOn      bool
	ClearDueSpec     string
	CloseInvoiceSpec string
}

// Load reads the configuration from environment variables with sane
// defaults for everything except the database URL and JWT secret.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("SCHEDULER_ENABLED", true)
	// Daily, shortly after midnight: clear due transactions first, then
	// close invoices with the day's clears already settled.
	v.SetDefault("CLEAR_DUE_CRON", "10 0 * * *")
	v.SetDefault("CLOSE_INVOICES_CRON", "30 0 * * *")

	cfg := &Config{
		Port:             v.GetString("PORT"),
		DatabaseURL:      v.GetString("DB_URL"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		SchedulerOn:      v.GetBool("SCHEDULER_ENABLED"),
		ClearDueSpec:     v.GetString("CLEAR_DUE_CRON"),
		CloseInvoiceSpec: v.GetString("CLOSE_INVOICES_CRON"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	return cfg, nil
}
