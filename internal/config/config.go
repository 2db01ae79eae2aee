package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Reserved update-site ids (spec §3).
const (
	PredefinedUpdateSiteID = "default"
	UploadSiteID           = "_upload"

	defaultUpdateCenterURL = "https://updates.jenkins.io/update-center.json"
)

// Config holds the Update Center's environment toggles (spec §6).
type Config struct {
	// Never disables all outbound metadata updates. <pkg>.never.
	Never bool `mapstructure:"never"`
	// NoSignatureCheck disables signature verification. Test use only.
	NoSignatureCheck bool `mapstructure:"no_signature_check"`
	// DefaultIntervalSeconds is the default downloadable refresh interval.
	DefaultIntervalSeconds int64 `mapstructure:"default_interval_seconds"`
	// UpdateCenterURL overrides the baked-in default site URL.
	UpdateCenterURL string `mapstructure:"update_center_url"`
	// DefaultUpdateSiteID overrides the reserved default site id.
	DefaultUpdateSiteID string `mapstructure:"default_update_site_id"`
	// PluginDownloadReadTimeoutSeconds bounds plugin download reads.
	PluginDownloadReadTimeoutSeconds int `mapstructure:"plugin_download_read_timeout_seconds"`
	// SkipPermissionCheck is an escape hatch for admin-only HTTP access.
	SkipPermissionCheck bool `mapstructure:"skip_permission_check"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// MetadataPoolSize/MetadataPoolQueueSize bound the metadata refresh
	// and connection-check pool (spec §4.8, §5).
	MetadataPoolSize      int `mapstructure:"metadata_pool_size"`
	MetadataPoolQueueSize int `mapstructure:"metadata_pool_queue_size"`

	// Home is the controller's data directory: registry, metadata cache,
	// install-resume state (spec §6 "<home>/...").
	Home string `mapstructure:"home"`
}

// Default returns the Update Center's default configuration.
func Default() *Config {
	return &Config{
		DefaultIntervalSeconds:           int64((24 * time.Hour).Seconds()),
		UpdateCenterURL:                  defaultUpdateCenterURL,
		DefaultUpdateSiteID:              PredefinedUpdateSiteID,
		PluginDownloadReadTimeoutSeconds: 60,
		LogLevel:                         "info",
		LogFormat:                        "text",
		MetadataPoolSize:                 8,
		MetadataPoolQueueSize:            64,
		Home:                             defaultHome(),
	}
}

// Load reads configuration from cfgFile (or the conventional search path)
// and environment variables prefixed UPDATECENTER_.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("update-center")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(defaultHome())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("UPDATECENTER")
	// Unmarshal only sees keys viper already knows, so bind each key to its
	// UPDATECENTER_<KEY> variable explicitly.
	for _, key := range []string{"never", "no_signature_check", "default_interval_seconds",
		"update_center_url", "default_update_site_id", "plugin_download_read_timeout_seconds",
		"skip_permission_check", "log_level", "log_format", "metadata_pool_size",
		"metadata_pool_queue_size", "home"} {
		viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save persists cfg to the conventional config path under Home.
func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

// SaveTo persists cfg to cfgFile, or the conventional path if empty.
func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("never", cfg.Never)
	viper.Set("no_signature_check", cfg.NoSignatureCheck)
	viper.Set("default_interval_seconds", cfg.DefaultIntervalSeconds)
	viper.Set("update_center_url", cfg.UpdateCenterURL)
	viper.Set("default_update_site_id", cfg.DefaultUpdateSiteID)
	viper.Set("plugin_download_read_timeout_seconds", cfg.PluginDownloadReadTimeoutSeconds)
	viper.Set("skip_permission_check", cfg.SkipPermissionCheck)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("metadata_pool_size", cfg.MetadataPoolSize)
	viper.Set("metadata_pool_queue_size", cfg.MetadataPoolQueueSize)
	viper.Set("home", cfg.Home)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		if dir := filepath.Dir(cfgPath); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(cfg.Home, "update-center.yaml")
		if err := os.MkdirAll(cfg.Home, 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	return os.Chmod(cfgPath, 0600)
}

// DownloadReadTimeout returns the configured plugin download read timeout.
func (c *Config) DownloadReadTimeout() time.Duration {
	return time.Duration(c.PluginDownloadReadTimeoutSeconds) * time.Second
}

// DefaultInterval returns the configured default downloadable refresh interval.
func (c *Config) DefaultInterval() time.Duration {
	return time.Duration(c.DefaultIntervalSeconds) * time.Second
}

func defaultHome() string {
	if home := os.Getenv("UPDATECENTER_HOME"); home != "" {
		return home
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Jenkins", "update-center")
	default:
		return "/var/lib/jenkins/update-center"
	}
}
