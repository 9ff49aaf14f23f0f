// Package config loads service configuration with Viper.
//
// LoadConfig searches for cmd/<service>/config.yml and .env files in the
// standard locations, loads the .env file with godotenv, maps environment
// variables onto nested keys and unmarshals the result through mapstructure
// tags:
//
//	var cfg Config
//	if err := config.LoadConfig("feedserver", &cfg); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// Environment variables win over file values: LOGGER_LEVEL=debug sets
// logger.level.
package config
