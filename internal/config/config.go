package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	WhitelistPath     string
	AWSRegion         string
	WaitForSync       bool
	WaitBudget        time.Duration
	FreshWindow       time.Duration
	ThrottleRetention time.Duration
	SweepInterval     time.Duration
	ProviderRPS       float64
	LogLevel          zerolog.Level
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenv(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, s, err)
	}
	return d, nil
}

// Load reads the configuration from the environment and then applies
// command-line overrides from args (usually os.Args[1:]).
func Load(args []string) (Config, error) {
	cfg := Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:      getenv("GRPC_ADDR", ":9090"),
		WhitelistPath: getenv("WHITELIST_PATH", "/etc/jupdate53.whitelist.properties"),
		AWSRegion:     getenv("AWS_REGION", "us-east-1"),
	}

	waitStr := getenv("WAIT_FOR_SYNC", "false")
	wait, err := strconv.ParseBool(waitStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid WAIT_FOR_SYNC=%q: %w", waitStr, err)
	}
	cfg.WaitForSync = wait

	if cfg.WaitBudget, err = getenvDuration("WAIT_BUDGET", "60s"); err != nil {
		return Config{}, err
	}
	if cfg.FreshWindow, err = getenvDuration("FRESH_WINDOW", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.ThrottleRetention, err = getenvDuration("THROTTLE_RETENTION", "24h"); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", "10m"); err != nil {
		return Config{}, err
	}

	rpsStr := getenv("PROVIDER_RPS", "5")
	if cfg.ProviderRPS, err = strconv.ParseFloat(rpsStr, 64); err != nil {
		return Config{}, fmt.Errorf("invalid PROVIDER_RPS=%q: %w", rpsStr, err)
	}

	levelStr := getenv("LOG_LEVEL", "info")

	fs := pflag.NewFlagSet("jupdate53", pflag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address, empty disables")
	fs.StringVar(&cfg.WhitelistPath, "whitelist", cfg.WhitelistPath, "whitelist file (.properties or .yaml)")
	fs.StringVar(&cfg.AWSRegion, "aws-region", cfg.AWSRegion, "Route53 signing region")
	fs.BoolVar(&cfg.WaitForSync, "wait", cfg.WaitForSync, "wait for changes to be INSYNC before answering")
	fs.DurationVar(&cfg.WaitBudget, "wait-budget", cfg.WaitBudget, "how long to poll for INSYNC")
	fs.DurationVar(&cfg.FreshWindow, "fresh-window", cfg.FreshWindow, "minimum time between updates of one name")
	fs.DurationVar(&cfg.ThrottleRetention, "throttle-retention", cfg.ThrottleRetention, "forget names idle longer than this, 0 keeps them forever")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "how often idle names are evicted")
	fs.Float64Var(&cfg.ProviderRPS, "provider-rps", cfg.ProviderRPS, "Route53 API calls per second, 0 is unlimited")
	fs.StringVar(&levelStr, "log-level", levelStr, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if c.WhitelistPath == "" {
		return fmt.Errorf("WHITELIST_PATH must not be empty")
	}
	if c.AWSRegion == "" {
		return fmt.Errorf("AWS_REGION must not be empty")
	}
	if c.WaitBudget < time.Second {
		return fmt.Errorf("WAIT_BUDGET too small (%s), must be >=1s", c.WaitBudget)
	}
	if c.WaitBudget > 10*time.Minute {
		return fmt.Errorf("WAIT_BUDGET too large (%s), must be <=10m", c.WaitBudget)
	}
	if c.FreshWindow < time.Second {
		return fmt.Errorf("FRESH_WINDOW too small (%s), must be >=1s", c.FreshWindow)
	}
	if c.FreshWindow > time.Hour {
		return fmt.Errorf("FRESH_WINDOW too large (%s), must be <=1h", c.FreshWindow)
	}
	if c.ThrottleRetention < 0 {
		return fmt.Errorf("THROTTLE_RETENTION must not be negative (%s)", c.ThrottleRetention)
	}
	if c.ThrottleRetention > 0 {
		if c.ThrottleRetention < c.FreshWindow {
			return fmt.Errorf("THROTTLE_RETENTION (%s) must be >= FRESH_WINDOW (%s)", c.ThrottleRetention, c.FreshWindow)
		}
		if c.SweepInterval <= 0 {
			return fmt.Errorf("SWEEP_INTERVAL must be positive when THROTTLE_RETENTION is set")
		}
	}
	if c.ProviderRPS < 0 {
		return fmt.Errorf("PROVIDER_RPS must not be negative (%v)", c.ProviderRPS)
	}
	return nil
}
