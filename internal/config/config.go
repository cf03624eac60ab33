// Package config loads ecojourney's configuration: defaults, then the
// YAML file, then an optional overlay, then a .env file and ECOJOURNEY_*
// environment variables, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // meal windows use IANA zones on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/logging"
	"github.com/rshade/ecojourney/internal/nudge"
	"github.com/rshade/ecojourney/internal/refdata"
	"github.com/rshade/ecojourney/internal/saf"
)

// ErrInvalidConfig marks a configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Nudge history backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Emissions EmissionsConfig `yaml:"emissions"`
	SAF       SAFConfig       `yaml:"saf"`
	Offsets   OffsetsConfig   `yaml:"offsets"`
	Nudges    NudgeConfig     `yaml:"nudges"`
	Storage   StorageConfig   `yaml:"storage"`
	RefData   RefDataConfig   `yaml:"refdata"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
	Caller bool   `yaml:"caller"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	CORSOrigins     []string        `yaml:"cors_origins"`
}

// RateLimitConfig is a per-client token bucket. Zero RequestsPerSecond
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// EmissionsConfig tunes the flight model.
type EmissionsConfig struct {
	RFMultiplier           float64  `yaml:"rf_multiplier"`
	RFUncertaintyPercent   float64  `yaml:"rf_uncertainty_percent"`
	FuelUncertaintyPercent *float64 `yaml:"fuel_uncertainty_percent,omitempty"`
}

// SAFConfig is the fuel market.
type SAFConfig struct {
	Provider                string  `yaml:"provider"`
	PricePerLiter           float64 `yaml:"price_per_liter"`
	ReductionFactorPerLiter float64 `yaml:"reduction_factor_per_liter"`
}

// OffsetsConfig prices generic offsets.
type OffsetsConfig struct {
	PricePerTonne float64 `yaml:"price_per_tonne"`
}

// NudgeConfig tunes the nudge catalog and limiter.
type NudgeConfig struct {
	Cooldown               time.Duration      `yaml:"cooldown"`
	TierUpgradeThreshold   int64              `yaml:"tier_upgrade_threshold"`
	CupStationRadiusMeters float64            `yaml:"cup_station_radius_meters"`
	MealWindows            []nudge.HourWindow `yaml:"meal_windows"`
	Timezone               string             `yaml:"timezone"`
}

// StorageConfig selects the persistence collaborators. An empty
// ActivityDB keeps the activity log in memory.
type StorageConfig struct {
	ActivityDB     string        `yaml:"activity_db"`
	NudgeBackend   string        `yaml:"nudge_backend"`
	NudgeFile      string        `yaml:"nudge_file"`
	RedisURL       string        `yaml:"redis_url"`
	RedisKeyPrefix string        `yaml:"redis_key_prefix"`
	NudgeTTL       time.Duration `yaml:"nudge_ttl"`
}

// RefDataConfig points at a reference dataset. Empty uses the built-in one.
type RefDataConfig struct {
	Path string `yaml:"path"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
			Output: logging.OutputStderr,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       RateLimitConfig{RequestsPerSecond: 10, Burst: 20},
			CORSOrigins:     []string{"*"},
		},
		Emissions: EmissionsConfig{
			RFMultiplier:         greenops.DefaultRFMultiplier,
			RFUncertaintyPercent: greenops.DefaultRFUncertaintyPercent,
		},
		SAF: SAFConfig{
			Provider:                saf.DefaultProvider,
			PricePerLiter:           saf.DefaultPricePerLiter,
			ReductionFactorPerLiter: saf.DefaultReductionFactorPerLiter,
		},
		Offsets: OffsetsConfig{PricePerTonne: saf.DefaultOffsetPricePerTonne},
		Nudges: NudgeConfig{
			Cooldown:               nudge.DefaultCooldown,
			TierUpgradeThreshold:   nudge.DefaultTierUpgradeThreshold,
			CupStationRadiusMeters: nudge.DefaultCupStationRadiusMeters,
			MealWindows:            nudge.DefaultMealWindows(),
			Timezone:               "Asia/Singapore",
		},
		Storage: StorageConfig{
			NudgeBackend:   BackendMemory,
			RedisKeyPrefix: nudge.DefaultRedisKeyPrefix,
		},
	}
}

// HomeDir returns $ECOJOURNEY_HOME or ~/.ecojourney.
func HomeDir() (string, error) {
	if dir := os.Getenv("ECOJOURNEY_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".ecojourney"), nil
}

// DefaultPath is the config file used when none is given.
func DefaultPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds a Config from path. An empty path means DefaultPath, which
// may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := New()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := greenops.NewRadiativeForcingModel(c.Emissions.RFMultiplier, c.Emissions.RFUncertaintyPercent); err != nil {
		add("emissions: %v", err)
	}
	if p := c.Emissions.FuelUncertaintyPercent; p != nil && (*p < 0 || *p > 100) {
		add("emissions.fuel_uncertainty_percent %v outside [0,100]", *p)
	}
	if err := c.SAFMarket().Validate(); err != nil {
		add("saf: %v", err)
	}
	if c.Offsets.PricePerTonne <= 0 {
		add("offsets.price_per_tonne %v must be positive", c.Offsets.PricePerTonne)
	}
	if _, err := c.NudgeSettings(nil); err != nil {
		add("nudges: %v", err)
	}
	switch c.Storage.NudgeBackend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			add("storage.redis_url is required for the redis nudge backend")
		}
	default:
		add("storage.nudge_backend %q must be one of memory, file, redis", c.Storage.NudgeBackend)
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		add("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst == 0 {
		add("server.rate_limit.burst must be positive when requests_per_second is set")
	}
	switch c.Logging.Output {
	case logging.OutputStderr, logging.OutputStdout, logging.OutputFile:
	default:
		add("logging.output %q must be one of stderr, stdout, file", c.Logging.Output)
	}
	return errors.Join(errs...)
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
		File:   c.Logging.File,
		Caller: c.Logging.Caller,
	}
}

// RadiativeForcing builds the configured model.
func (c *Config) RadiativeForcing() (greenops.RadiativeForcingModel, error) {
	return greenops.NewRadiativeForcingModel(c.Emissions.RFMultiplier, c.Emissions.RFUncertaintyPercent)
}

// SAFMarket converts the saf section.
func (c *Config) SAFMarket() saf.Market {
	return saf.Market{
		Provider:                c.SAF.Provider,
		PricePerLiter:           c.SAF.PricePerLiter,
		ReductionFactorPerLiter: c.SAF.ReductionFactorPerLiter,
	}
}

// NudgeSettings converts the nudges section, attaching stations.
func (c *Config) NudgeSettings(stations []refdata.CupStation) (nudge.Settings, error) {
	loc := time.UTC
	if c.Nudges.Timezone != "" {
		l, err := time.LoadLocation(c.Nudges.Timezone)
		if err != nil {
			return nudge.Settings{}, fmt.Errorf("loading timezone %q: %w", c.Nudges.Timezone, err)
		}
		loc = l
	}
	s := nudge.Settings{
		Cooldown:               c.Nudges.Cooldown,
		TierUpgradeThreshold:   c.Nudges.TierUpgradeThreshold,
		CupStationRadiusMeters: c.Nudges.CupStationRadiusMeters,
		MealWindows:            c.Nudges.MealWindows,
		Location:               loc,
		CupStations:            stations,
	}
	if err := s.Validate(); err != nil {
		return nudge.Settings{}, err
	}
	return s, nil
}

// LoadRefData loads the configured reference dataset and applies the
// fuel uncertainty override, if any.
func (c *Config) LoadRefData() (*refdata.Snapshot, error) {
	var (
		snap *refdata.Snapshot
		err  error
	)
	if c.RefData.Path != "" {
		snap, err = refdata.LoadFile(c.RefData.Path)
	} else {
		snap, err = refdata.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if p := c.Emissions.FuelUncertaintyPercent; p != nil {
		return snap.WithFuelUncertainty(*p)
	}
	return snap, nil
}
