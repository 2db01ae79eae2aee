package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would cause panics are clamped to safe defaults.
// Other validation errors are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.UpdateCenterURL != "" {
		u, err := url.Parse(c.UpdateCenterURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("update_center_url %q is not a valid URL: %w", c.UpdateCenterURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("update_center_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.DefaultUpdateSiteID == "" {
		errs = append(errs, fmt.Errorf("default_update_site_id must not be empty, clamping to %q", PredefinedUpdateSiteID))
		c.DefaultUpdateSiteID = PredefinedUpdateSiteID
	} else if c.DefaultUpdateSiteID == UploadSiteID {
		errs = append(errs, fmt.Errorf("default_update_site_id may not be the reserved id %q, clamping to %q", UploadSiteID, PredefinedUpdateSiteID))
		c.DefaultUpdateSiteID = PredefinedUpdateSiteID
	}

	// Clamp the download read timeout to a safe range to prevent a zero or
	// negative context deadline on every plugin download.
	if c.PluginDownloadReadTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("plugin_download_read_timeout_seconds %d is below minimum 1, clamping", c.PluginDownloadReadTimeoutSeconds))
		c.PluginDownloadReadTimeoutSeconds = 60
	} else if c.PluginDownloadReadTimeoutSeconds > 3600 {
		errs = append(errs, fmt.Errorf("plugin_download_read_timeout_seconds %d exceeds maximum 3600, clamping", c.PluginDownloadReadTimeoutSeconds))
		c.PluginDownloadReadTimeoutSeconds = 3600
	}

	if c.DefaultIntervalSeconds < 60 {
		errs = append(errs, fmt.Errorf("default_interval_seconds %d is below minimum 60, clamping", c.DefaultIntervalSeconds))
		c.DefaultIntervalSeconds = 60
	}

	if c.MetadataPoolSize < 1 {
		errs = append(errs, fmt.Errorf("metadata_pool_size %d is below minimum 1, clamping", c.MetadataPoolSize))
		c.MetadataPoolSize = 1
	} else if c.MetadataPoolSize > 64 {
		errs = append(errs, fmt.Errorf("metadata_pool_size %d exceeds maximum 64, clamping", c.MetadataPoolSize))
		c.MetadataPoolSize = 64
	}

	if c.MetadataPoolQueueSize < 1 {
		errs = append(errs, fmt.Errorf("metadata_pool_queue_size %d is below minimum 1, clamping", c.MetadataPoolQueueSize))
		c.MetadataPoolQueueSize = 1
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
