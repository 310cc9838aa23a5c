package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "slidesync"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SLIDESYNC"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	// Set configuration file details
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml") // Primary format, but viper supports multiple formats

	// Add configuration search paths
	l.addConfigPaths()

	// Set environment variable handling
	l.setupEnvironmentVariables()

	// Set defaults
	l.setDefaults()

	// Try to read configuration file
	if err := l.v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			// Only return error if it's NOT a "config file not found" error
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, continue with defaults and env vars
	}

	// Unmarshal into our config struct
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadWithoutValidation loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration without validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	// Set configuration file details
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml") // Primary format, but viper supports multiple formats

	// Add configuration search paths
	l.addConfigPaths()

	// Set environment variable handling
	l.setupEnvironmentVariables()

	// Set defaults
	l.setDefaults()

	// Try to read configuration file
	if err := l.v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			// Only return error if it's NOT a "config file not found" error
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, continue with defaults and env vars
	}

	// Unmarshal into our config struct
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	// Set the specific config file
	l.v.SetConfigFile(configFile)

	// Set environment variable handling
	l.setupEnvironmentVariables()

	// Set defaults
	l.setDefaults()

	// Read the config file
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	// Unmarshal into our config struct
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	// Set the specific config file
	l.v.SetConfigFile(configFile)

	// Set environment variable handling
	l.setupEnvironmentVariables()

	// Set defaults
	l.setDefaults()

	// Read the config file
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	// Unmarshal into our config struct
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// BindFlag is a no-op that always returns nil; command-line flags are
// bound to configuration keys by the cmd package's init functions.
func (l *Loader) BindFlag(key, flagName string) error {
	return nil
}

// BindFlagSet is a no-op that always returns nil; command-line flags are
// bound to configuration keys by the cmd package's init functions.
func (l *Loader) BindFlagSet(flagSet interface{}) error {
	return nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	// Current directory
	l.v.AddConfigPath(".")

	// User's home directory
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	// System-wide configuration
	l.v.AddConfigPath("/etc/slidesync")

	// XDG config directory
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "slidesync"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "slidesync"))
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	// Set the prefix for environment variables
	l.v.SetEnvPrefix(EnvPrefix)

	// Enable automatic environment variable binding
	l.v.AutomaticEnv()

	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	// Path defaults (empty; these are normally supplied as required flags)
	l.v.SetDefault("paths.footage", defaults.Paths.Footage)
	l.v.SetDefault("paths.slides", defaults.Paths.Slides)
	l.v.SetDefault("paths.sync", defaults.Paths.Sync)
	l.v.SetDefault("paths.output", defaults.Paths.Output)
	l.v.SetDefault("paths.cache_dir", defaults.Paths.CacheDir)

	// Tracker defaults
	l.v.SetDefault("tracker.frameskip", defaults.Tracker.Frameskip)
	l.v.SetDefault("tracker.max_match_ratio", defaults.Tracker.MaxMatchRatio)
	l.v.SetDefault("tracker.ransac_threshold", defaults.Tracker.RANSACThreshold)
	l.v.SetDefault("tracker.min_matches_for_homography", defaults.Tracker.MinMatchesForHomography)
	l.v.SetDefault("tracker.deviation_grace", defaults.Tracker.DeviationGrace)
	l.v.SetDefault("tracker.deformation_grace", defaults.Tracker.DeformationGrace)
	l.v.SetDefault("tracker.slide_match_cost_max", defaults.Tracker.SlideMatchCostMax)
	l.v.SetDefault("tracker.salvage_cost_max", defaults.Tracker.SalvageCostMax)
	l.v.SetDefault("tracker.hard_frame_cost_floor", defaults.Tracker.HardFrameCostFloor)
	l.v.SetDefault("tracker.min_quad_area", defaults.Tracker.MinQuadArea)
	l.v.SetDefault("tracker.max_quad_area", defaults.Tracker.MaxQuadArea)
	l.v.SetDefault("tracker.slide_match_absolute_floor", defaults.Tracker.SlideMatchAbsoluteFloor)
	l.v.SetDefault("tracker.slide_match_relative_floor", defaults.Tracker.SlideMatchRelativeFloor)
	l.v.SetDefault("tracker.keyframe_deviation_threshold", defaults.Tracker.KeyframeDeviationThreshold)
	l.v.SetDefault("tracker.keyframe_deformation_threshold", defaults.Tracker.KeyframeDeformationThreshold)
	l.v.SetDefault("tracker.badcount_full_scan_threshold", defaults.Tracker.BadcountFullScanThreshold)
	l.v.SetDefault("tracker.near_window_radius", defaults.Tracker.NearWindowRadius)
	l.v.SetDefault("tracker.nearcount_salvage_threshold", defaults.Tracker.NearcountSalvageThreshold)
	l.v.SetDefault("tracker.tick_period_millis", defaults.Tracker.TickPeriodMillis)

	// Metrics defaults
	l.v.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoader()
	loader.setDefaults()

	// If no filename provided, use default
	if filename == "" {
		filename = "slidesync.yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	paths = append(paths, "/etc/slidesync")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "slidesync"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "slidesync"))
	}

	return paths
}

// PrintConfigInfo prints information about configuration loading for debugging.
func (l *Loader) PrintConfigInfo() {
	fmt.Printf("Configuration file used: %s\n", l.GetConfigFileUsed())
	fmt.Printf("Configuration search paths: %v\n", GetConfigSearchPaths())
	fmt.Printf("Environment prefix: %s\n", EnvPrefix)
}
