package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds the HTTP binary's settings, taken from the environment so
// deployment needs no flags.
type Server struct {
	Addr           string        `env:"PAYKG_ADDR" envDefault:":8080"`
	DBPath         string        `env:"PAYKG_DB"`
	ConfigPath     string        `env:"PAYKG_CONFIG"`
	ComputeTimeout time.Duration `env:"PAYKG_COMPUTE_TIMEOUT" envDefault:"5s"`
}

// LoadServer reads the server settings from the environment.
func LoadServer() (Server, error) {
	var s Server
	if err := env.Parse(&s); err != nil {
		return s, err
	}
	return s, nil
}
