package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service, loaded from an app.env
// file and overridable through environment variables.
type Config struct {
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	DBSource      string `mapstructure:"DB_SOURCE"`
	RedisAddress  string `mapstructure:"REDIS_ADDRESS"`

	GeocoderBaseURL string        `mapstructure:"GEOCODER_BASE_URL"`
	GeocoderAPIKey  string        `mapstructure:"GEOCODER_API_KEY"`
	GeocoderTimeout time.Duration `mapstructure:"GEOCODER_TIMEOUT"`

	// CoveragePolicy decides what happens for ZIPs outside the covered
	// states: "federal_only" returns a minimal federal-level result,
	// "reject" returns an out-of-coverage error.
	CoveragePolicy string `mapstructure:"COVERAGE_POLICY"`

	// FullCoverageStates lists the 2-letter codes of states with full
	// federal+state+county+local data.
	FullCoverageStates []string `mapstructure:"FULL_COVERAGE_STATES"`

	// Cache sizing and TTLs. Fallback results get a much shorter TTL since
	// their quality is too low to trust for days.
	CacheSize          int           `mapstructure:"CACHE_SIZE"`
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	FallbackCacheTTL   time.Duration `mapstructure:"FALLBACK_CACHE_TTL"`
}

// LoadConfig reads configuration from the given directory, with environment
// variables taking precedence over file values.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	viper.SetDefault("GEOCODER_TIMEOUT", "3s")
	viper.SetDefault("COVERAGE_POLICY", "federal_only")
	viper.SetDefault("FULL_COVERAGE_STATES", []string{"CA"})
	viper.SetDefault("CACHE_SIZE", 4096)
	viper.SetDefault("CACHE_TTL", "72h")
	viper.SetDefault("FALLBACK_CACHE_TTL", "15m")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
