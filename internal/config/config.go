/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the movement-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	MovementEventExchange       string `mapstructure:"MOVEMENT_EVENT_EXCHANGE"`
	AdminJWTSecret              string `mapstructure:"ADMIN_JWT_SECRET"`
	CacheTTLSeconds             int    `mapstructure:"CACHE_TTL_SECONDS"`
	StatusRetryAttempts         int    `mapstructure:"STATUS_RETRY_ATTEMPTS"`
	ReconcileCronSpec           string `mapstructure:"RECONCILE_CRON_SPEC"`
	ReconcilePendingAfterMinute int    `mapstructure:"RECONCILE_PENDING_AFTER_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MOVEMENT_EVENT_EXCHANGE", "movement_events")
	viper.SetDefault("CACHE_TTL_SECONDS", 300)
	viper.SetDefault("STATUS_RETRY_ATTEMPTS", 3)
	viper.SetDefault("RECONCILE_CRON_SPEC", "*/5 * * * *")
	viper.SetDefault("RECONCILE_PENDING_AFTER_MINUTES", 15)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "MOVEMENT_REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("MOVEMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("ADMIN_JWT_SECRET")
	_ = viper.BindEnv("CACHE_TTL_SECONDS")
	_ = viper.BindEnv("STATUS_RETRY_ATTEMPTS")
	_ = viper.BindEnv("RECONCILE_CRON_SPEC")
	_ = viper.BindEnv("RECONCILE_PENDING_AFTER_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform-injected PORT wins over SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.MovementEventExchange = strings.TrimSpace(config.MovementEventExchange)
	if config.MovementEventExchange == "" {
		config.MovementEventExchange = "movement_events"
	}

	if config.CacheTTLSeconds <= 0 {
		config.CacheTTLSeconds = 300
	}
	if config.StatusRetryAttempts <= 0 {
		config.StatusRetryAttempts = 3
	}
	if strings.TrimSpace(config.ReconcileCronSpec) == "" {
		config.ReconcileCronSpec = "*/5 * * * *"
	}
	if config.ReconcilePendingAfterMinute <= 0 {
		config.ReconcilePendingAfterMinute = 15
	}

	return
}
