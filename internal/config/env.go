package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ECOJOURNEY_"

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are named) into the process environment. Variables that are already
// set win, and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from ECOJOURNEY_* variables. REDIS_URL is
// honoured when ECOJOURNEY_REDIS_URL is unset.
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"LOG_LEVEL", &c.Logging.Level},
		{"LOG_FORMAT", &c.Logging.Format},
		{"LOG_OUTPUT", &c.Logging.Output},
		{"LOG_FILE", &c.Logging.File},
		{"SERVER_ADDR", &c.Server.Addr},
		{"SAF_PROVIDER", &c.SAF.Provider},
		{"NUDGE_TIMEZONE", &c.Nudges.Timezone},
		{"ACTIVITY_DB", &c.Storage.ActivityDB},
		{"NUDGE_BACKEND", &c.Storage.NudgeBackend},
		{"NUDGE_FILE", &c.Storage.NudgeFile},
		{"REDIS_URL", &c.Storage.RedisURL},
		{"REFDATA_PATH", &c.RefData.Path},
	}
	for _, s := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + s.key); ok {
			*s.dst = v
		}
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if v, ok := os.LookupEnv(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"RF_MULTIPLIER", &c.Emissions.RFMultiplier},
		{"RF_UNCERTAINTY_PERCENT", &c.Emissions.RFUncertaintyPercent},
		{"SAF_PRICE_PER_LITER", &c.SAF.PricePerLiter},
		{"SAF_REDUCTION_FACTOR", &c.SAF.ReductionFactorPerLiter},
		{"OFFSET_PRICE_PER_TONNE", &c.Offsets.PricePerTonne},
		{"RATE_LIMIT_RPS", &c.Server.RateLimit.RequestsPerSecond},
	}
	for _, f := range floats {
		v, ok := os.LookupEnv(EnvPrefix + f.key)
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not a number", ErrInvalidConfig, EnvPrefix, f.key, v)
		}
		*f.dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "RATE_LIMIT_BURST"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sRATE_LIMIT_BURST=%q is not an integer", ErrInvalidConfig, EnvPrefix, v)
		}
		c.Server.RateLimit.Burst = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "NUDGE_COOLDOWN"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sNUDGE_COOLDOWN=%q: %w", ErrInvalidConfig, EnvPrefix, v, err)
		}
		c.Nudges.Cooldown = d
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
