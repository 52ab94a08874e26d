package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration.
type Config struct {
	Server     ServerSettings     `hcl:"server,block"`
	Simulation SimulationSettings `hcl:"simulation,block"`
	Stats      StatsSettings      `hcl:"stats,block"`
	Games      []GameConfig       `hcl:"game,block"`
}

// ServerSettings contains transport-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// SimulationSettings controls the simulation engine.
type SimulationSettings struct {
	Auto       bool  `hcl:"auto,optional"`
	IntervalMs int   `hcl:"interval_ms,optional"`
	Seed       int64 `hcl:"seed,optional"`
}

// StatsSettings controls the upstream stats provider and its cache.
type StatsSettings struct {
	BaseURL          string `hcl:"base_url,optional"`
	APIKey           string `hcl:"api_key,optional"`
	TTLHours         int    `hcl:"ttl_hours,optional"`
	FetchConcurrency int    `hcl:"fetch_concurrency,optional"`
	DayTimeoutMs     int    `hcl:"day_timeout_ms,optional"`
	RetryAttempts    int    `hcl:"retry_attempts,optional"`
}

// GameConfig seeds a game at startup.
type GameConfig struct {
	ID       string `hcl:"id,label"`
	HomeTeam string `hcl:"home_team"`
	AwayTeam string `hcl:"away_team"`
	Date     string `hcl:"date,optional"` // YYYY-MM-DD, defaults to today
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Simulation: SimulationSettings{
			Auto:       true,
			IntervalMs: 3000,
		},
		Stats: StatsSettings{
			BaseURL:  "https://api.balldontlie.io/v1",
			TTLHours: 24,
		},
		Games: []GameConfig{
			{ID: "demo-1", HomeTeam: "Celtics", AwayTeam: "Lakers"},
			{ID: "demo-2", HomeTeam: "Warriors", AwayTeam: "Heat"},
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Simulation.IntervalMs == 0 {
		config.Simulation.IntervalMs = 3000
	}
	if config.Stats.BaseURL == "" {
		config.Stats.BaseURL = "https://api.balldontlie.io/v1"
	}
	if config.Stats.TTLHours == 0 {
		config.Stats.TTLHours = 24
	}

	return &config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Simulation.IntervalMs < 100 {
		return fmt.Errorf("simulation interval too small: %dms", c.Simulation.IntervalMs)
	}
	if c.Stats.TTLHours < 1 {
		return fmt.Errorf("stats TTL must be at least one hour")
	}
	for _, g := range c.Games {
		if g.HomeTeam == "" || g.AwayTeam == "" {
			return fmt.Errorf("game %s: both teams are required", g.ID)
		}
		if g.Date != "" {
			if _, err := time.Parse("2006-01-02", g.Date); err != nil {
				return fmt.Errorf("game %s: invalid date %q", g.ID, g.Date)
			}
		}
	}
	return nil
}

// Addr returns the full listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// SimInterval returns the simulation tick interval as a duration.
func (c *Config) SimInterval() time.Duration {
	return time.Duration(c.Simulation.IntervalMs) * time.Millisecond
}

// StatsTTL returns the cache TTL as a duration.
func (c *Config) StatsTTL() time.Duration {
	return time.Duration(c.Stats.TTLHours) * time.Hour
}

// StatsDayTimeout returns the per-day fetch timeout.
func (c *Config) StatsDayTimeout() time.Duration {
	return time.Duration(c.Stats.DayTimeoutMs) * time.Millisecond
}
