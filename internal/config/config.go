// ABOUTME: Configuration loading and parsing for rentabotd
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete rentabotd configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Limits   LimitsConfig   `yaml:"limits"`
	Naming   NamingConfig   `yaml:"naming"`
	Behavior BehaviorConfig `yaml:"behavior"`
	Auth     AuthConfig     `yaml:"auth"`
	Rentals  RentalsConfig  `yaml:"rentals"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the game server endpoint the bots connect to
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port endpoint string.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LimitsConfig holds rental quota and cooldown configuration
type LimitsConfig struct {
	MaxActiveBots   int `yaml:"max_active_bots"`
	MaxReservedBots int `yaml:"max_reserved_bots"`
	MaxTotalBots    int `yaml:"max_total_bots"`
	MinHours        int `yaml:"min_hours"`
	MaxHours        int `yaml:"max_hours"`

	CreationCooldown    time.Duration `yaml:"-"`
	CreationCooldownRaw string        `yaml:"creation_cooldown"`
}

// NamingConfig controls how internal names map to connection identities
type NamingConfig struct {
	Prefix       string   `yaml:"prefix"`
	Suffix       string   `yaml:"suffix"`
	MinLength    int      `yaml:"min_length"`
	BlockedWords []string `yaml:"blocked_words"`
}

// BehaviorConfig holds per-bot session behavior settings
type BehaviorConfig struct {
	AutoReconnect AutoReconnectConfig `yaml:"auto_reconnect"`
	IdleActivity  IdleActivityConfig  `yaml:"idle_activity"`

	ReturnAfterDeath   bool `yaml:"return_after_death"`
	AcceptOwnerTPA     bool `yaml:"accept_owner_tpa"`
	AcceptOwnerTPAHere bool `yaml:"accept_owner_tpahere"`
	DenyOthersTPA      bool `yaml:"deny_others_tpa"`

	TPAPatterns     []string `yaml:"tpa_patterns"`
	TPAHerePatterns []string `yaml:"tpahere_patterns"`
}

// AutoReconnectConfig controls the disconnect-driven reconnect path
type AutoReconnectConfig struct {
	Enabled bool `yaml:"enabled"`
	// MaxAttempts caps reconnect attempts per outage; 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`

	Delay    time.Duration `yaml:"-"`
	DelayRaw string        `yaml:"delay"`
}

// IdleActivityConfig controls the scripted idle-activity emission
type IdleActivityConfig struct {
	Enabled bool `yaml:"enabled"`
	// Types is a list of idle action variants: look, sneak, jump, move, swing, combo.
	Types []string `yaml:"types"`
	// IntervalRandomness widens the base interval to base*(1±r), re-rolled
	// after every firing.
	IntervalRandomness float64 `yaml:"interval_randomness"`

	Interval    time.Duration `yaml:"-"`
	IntervalRaw string        `yaml:"interval"`
}

// AuthConfig holds the post-login authentication handshake settings
type AuthConfig struct {
	// Mode is one of: disabled, pre-registered, auto-register.
	Mode     string `yaml:"mode"`
	Password string `yaml:"password"`

	LoginDelay    time.Duration `yaml:"-"`
	LoginDelayRaw string        `yaml:"login_delay"`
}

// RentalsConfig holds expiry sweep configuration
type RentalsConfig struct {
	WarningsEnabled bool `yaml:"warnings_enabled"`
	// WarningTimes lists remaining-minute thresholds at which owners are warned.
	WarningTimes []int `yaml:"warning_times"`

	CheckInterval    time.Duration `yaml:"-"`
	CheckIntervalRaw string        `yaml:"check_interval"`
	GracePeriod      time.Duration `yaml:"-"`
	GracePeriodRaw   string        `yaml:"grace_period"`
}

// CleanupConfig holds reserved-bot garbage collection configuration
type CleanupConfig struct {
	Enabled             bool `yaml:"enabled"`
	NotifyBeforeCleanup bool `yaml:"notify_before_cleanup"`

	Retention    time.Duration `yaml:"-"`
	RetentionRaw string        `yaml:"retention"`
	Interval     time.Duration `yaml:"-"`
	IntervalRaw  string        `yaml:"interval"`
}

// NotifyConfig holds the owner-notification sink configuration
type NotifyConfig struct {
	// WebhookURL, when set, receives owner notifications as JSON POSTs.
	WebhookURL string `yaml:"webhook_url"`
	// DispatchURL, when set, receives server-level console commands (the
	// spawn-anchor teleport) as JSON POSTs.
	DispatchURL string `yaml:"dispatch_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with the built-in defaults. Values are
// overwritten by whatever the YAML file sets.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 25565,
		},
		Database: DatabaseConfig{
			Path: "data/rentals.db",
		},
		Limits: LimitsConfig{
			MaxActiveBots:    3,
			MaxReservedBots:  5,
			MaxTotalBots:     50,
			MinHours:         1,
			MaxHours:         168,
			CreationCooldown: 60 * time.Second,
		},
		Naming: NamingConfig{
			Prefix:    "Bot_",
			MinLength: 3,
		},
		Behavior: BehaviorConfig{
			AutoReconnect: AutoReconnectConfig{
				Enabled:     true,
				MaxAttempts: 5,
				Delay:       10 * time.Second,
			},
			IdleActivity: IdleActivityConfig{
				Enabled:            true,
				Types:              []string{"look", "sneak", "jump", "move", "swing", "combo"},
				IntervalRandomness: 0.4,
				Interval:           45 * time.Second,
			},
			ReturnAfterDeath:   true,
			AcceptOwnerTPA:     true,
			AcceptOwnerTPAHere: true,
			DenyOthersTPA:      true,
			TPAPatterns: []string{
				"teleport to you",
				"teleport request",
				"has requested to teleport",
				"wants to teleport to you",
				"sent you a teleport request",
			},
			TPAHerePatterns: []string{
				"teleport to them",
				"you teleport to",
				"requests that you teleport",
				"wants you to teleport",
			},
		},
		Auth: AuthConfig{
			Mode:       "auto-register",
			Password:   "RentABot2024!",
			LoginDelay: 2 * time.Second,
		},
		Rentals: RentalsConfig{
			WarningsEnabled: true,
			WarningTimes:    []int{60, 30, 10, 5, 1},
			CheckInterval:   30 * time.Second,
			GracePeriod:     60 * time.Second,
		},
		Cleanup: CleanupConfig{
			Enabled:             true,
			NotifyBeforeCleanup: true,
			Retention:           30 * 24 * time.Hour,
			Interval:            time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Limits.MinHours < 1 {
		return fmt.Errorf("limits.min_hours must be at least 1")
	}
	if c.Limits.MaxHours < c.Limits.MinHours {
		return fmt.Errorf("limits.max_hours must be >= limits.min_hours")
	}
	switch c.Auth.Mode {
	case "disabled", "pre-registered", "auto-register":
	default:
		return fmt.Errorf("auth.mode must be one of: disabled, pre-registered, auto-register")
	}
	if r := c.Behavior.IdleActivity.IntervalRandomness; r < 0 || r >= 1 {
		return fmt.Errorf("behavior.idle_activity.interval_randomness must be in [0, 1)")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"limits.creation_cooldown", cfg.Limits.CreationCooldownRaw, &cfg.Limits.CreationCooldown},
		{"behavior.auto_reconnect.delay", cfg.Behavior.AutoReconnect.DelayRaw, &cfg.Behavior.AutoReconnect.Delay},
		{"behavior.idle_activity.interval", cfg.Behavior.IdleActivity.IntervalRaw, &cfg.Behavior.IdleActivity.Interval},
		{"auth.login_delay", cfg.Auth.LoginDelayRaw, &cfg.Auth.LoginDelay},
		{"rentals.check_interval", cfg.Rentals.CheckIntervalRaw, &cfg.Rentals.CheckInterval},
		{"rentals.grace_period", cfg.Rentals.GracePeriodRaw, &cfg.Rentals.GracePeriod},
		{"cleanup.retention", cfg.Cleanup.RetentionRaw, &cfg.Cleanup.Retention},
		{"cleanup.interval", cfg.Cleanup.IntervalRaw, &cfg.Cleanup.Interval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
