package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envConfig holds defaults sourced from the environment. Flags that the
// user sets explicitly always win over these.
type envConfig struct {
	RedisAddr string `envconfig:"REDIS_ADDR"`
	Namespace string `envconfig:"NAMESPACE" default:"sitemapper"`
	UserAgent string `envconfig:"USER_AGENT" default:"sitemapper/1.0"`
	Workers   int    `envconfig:"WORKERS" default:"3"`
}

// loadEnvConfig reads SITEMAPPER_* variables, first loading .env if one
// exists. A missing .env is normal; deployed processes get their
// variables injected directly.
func loadEnvConfig() (*envConfig, error) {
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("Warning: .env file found but could not be loaded: %v", err)
		}
	}

	var cfg envConfig
	if err := envconfig.Process("SITEMAPPER", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
