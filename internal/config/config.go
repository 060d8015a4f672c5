// Package config loads process configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Client struct {
	APIBaseURL   string        `env:"UE_API_URL" envDefault:"http://localhost:8001"`
	WSBaseURL    string        `env:"UE_WS_URL" envDefault:"ws://localhost:8001"`
	PollInterval time.Duration `env:"UE_POLL_INTERVAL" envDefault:"10s"`
	DialTimeout  time.Duration `env:"UE_DIAL_TIMEOUT" envDefault:"10s"`
}

type Server struct {
	Addr        string `env:"UE_ADDR" envDefault:":8001"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// LoadClient reads client configuration. A missing .env file is not an
// error.
func LoadClient() (Client, error) {
	_ = godotenv.Load()
	var c Client
	if err := env.Parse(&c); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// LoadServer reads dev-server configuration. With no DATABASE_URL the
// server keeps games in memory.
func LoadServer() (Server, error) {
	_ = godotenv.Load()
	var c Server
	if err := env.Parse(&c); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
