package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/pior/nwa"
)

type config struct {
	Host              string        `env:"NWA_HOST" envDefault:"localhost"`
	Port              int           `env:"NWA_PORT" envDefault:"48879"`
	ShowTraffic       bool          `env:"NWA_SHOW_TRAFFIC" envDefault:"true"`
	LogLevel          string        `env:"NWA_LOG_LEVEL"`
	ReconnectInterval time.Duration `env:"NWA_RECONNECT_INTERVAL" envDefault:"2s"`
	HistoryFile       string        `env:"NWA_HISTORY_FILE"`
}

// loadConfig reads the environment, after an optional .env file, then applies
// the flags the user set explicitly.
func loadConfig(envFile string, flags *pflag.FlagSet) (config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}

	var err error
	if flags.Changed("host") {
		cfg.Host, err = flags.GetString("host")
	}
	if err == nil && flags.Changed("port") {
		cfg.Port, err = flags.GetInt("port")
	}
	if err == nil && flags.Changed("show-traffic") {
		cfg.ShowTraffic, err = flags.GetBool("show-traffic")
	}
	if err == nil && flags.Changed("log-level") {
		cfg.LogLevel, err = flags.GetString("log-level")
	}
	if err == nil && flags.Changed("reconnect-interval") {
		cfg.ReconnectInterval, err = flags.GetDuration("reconnect-interval")
	}
	if err == nil && flags.Changed("history") {
		cfg.HistoryFile, err = flags.GetString("history")
	}
	if err != nil {
		return config{}, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = nwa.DefaultReconnectInterval
	}
	return cfg, nil
}

func (c config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
