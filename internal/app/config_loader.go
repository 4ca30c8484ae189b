package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.linkgrab")
		v.AddConfigPath("/etc/linkgrab")
	}

	v.SetEnvPrefix("LINKGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// configured lists replace the defaults instead of merging into them
	if v.IsSet("categories") {
		config.Categories = nil
	}
	if v.IsSet("discovery.selectors") {
		config.Discovery.Selectors = nil
	}
	if v.IsSet("discovery.link_rels") {
		config.Discovery.LinkRels = nil
	}
	if v.IsSet("discovery.feed_extensions") {
		config.Discovery.FeedExtensions = nil
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys makes scalar keys overridable from the environment even when
// no config file mentions them
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port", "server.metrics_enabled",
		"http.user_agent", "http.connect_timeout", "http.page_timeout", "http.read_timeout", "http.max_redirects",
		"discovery.default_category", "discovery.max_page_bytes", "discovery.detect_language",
		"download.base_dir", "download.logs_dir", "download.chunk_size", "download.workers", "download.min_free_bytes",
		"jobs.database_path", "jobs.max_concurrent", "jobs.check_interval",
		"notification.enabled", "notification.sound", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	} {
		_ = v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)

	if config.Jobs.DatabasePath != ":memory:" {
		config.Jobs.DatabasePath = expandPath(config.Jobs.DatabasePath)
	}
	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.HTTP.UserAgent == "" {
		return fmt.Errorf("user agent not configured")
	}

	if config.HTTP.ConnectTimeout <= 0 || config.HTTP.PageTimeout <= 0 || config.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}

	if config.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("max redirects cannot be negative")
	}

	if config.Download.ChunkSize < 512 {
		return fmt.Errorf("chunk size must be at least 512 bytes")
	}

	if config.Download.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if config.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent jobs must be at least 1")
	}

	if config.Jobs.CheckInterval <= 0 {
		return fmt.Errorf("job check interval must be positive")
	}

	if config.Jobs.DatabasePath == "" {
		return fmt.Errorf("jobs database path not configured")
	}

	if len(config.Discovery.Selectors) == 0 {
		return fmt.Errorf("at least one discovery selector is required")
	}

	table, err := domain.NewCategoryTable(config.Categories)
	if err != nil {
		return fmt.Errorf("invalid categories: %w", err)
	}
	if !table.Has(config.Discovery.DefaultCategory) {
		return fmt.Errorf("default category %q is not defined", config.Discovery.DefaultCategory)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configSettings(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// configSettings flattens config into the keys LoadConfig reads back
func configSettings(config *domain.Config) map[string]interface{} {
	selectors := make([]map[string]interface{}, 0, len(config.Discovery.Selectors))
	for _, s := range config.Discovery.Selectors {
		selectors = append(selectors, map[string]interface{}{"tag": s.Tag, "attr": s.Attr})
	}
	categories := make([]map[string]interface{}, 0, len(config.Categories))
	for _, c := range config.Categories {
		categories = append(categories, map[string]interface{}{"name": c.Name, "extensions": c.Extensions})
	}

	return map[string]interface{}{
		"server.host":                config.Server.Host,
		"server.port":                config.Server.Port,
		"server.metrics_enabled":     config.Server.MetricsEnabled,
		"http.user_agent":            config.HTTP.UserAgent,
		"http.connect_timeout":       config.HTTP.ConnectTimeout.String(),
		"http.page_timeout":          config.HTTP.PageTimeout.String(),
		"http.read_timeout":          config.HTTP.ReadTimeout.String(),
		"http.max_redirects":         config.HTTP.MaxRedirects,
		"discovery.default_category": config.Discovery.DefaultCategory,
		"discovery.max_page_bytes":   config.Discovery.MaxPageBytes,
		"discovery.detect_language":  config.Discovery.DetectLanguage,
		"discovery.selectors":        selectors,
		"discovery.link_rels":        config.Discovery.LinkRels,
		"discovery.feed_extensions":  config.Discovery.FeedExtensions,
		"download.base_dir":          config.Download.BaseDir,
		"download.logs_dir":          config.Download.LogsDir,
		"download.chunk_size":        config.Download.ChunkSize,
		"download.workers":           config.Download.Workers,
		"download.min_free_bytes":    config.Download.MinFreeBytes,
		"categories":                 categories,
		"jobs.database_path":         config.Jobs.DatabasePath,
		"jobs.max_concurrent":        config.Jobs.MaxConcurrent,
		"jobs.check_interval":        config.Jobs.CheckInterval.String(),
		"notification.enabled":       config.Notification.Enabled,
		"notification.sound":         config.Notification.Sound,
		"notification.method":        config.Notification.Method,
		"logging.level":              config.Logging.Level,
		"logging.format":             config.Logging.Format,
		"logging.output_path":        config.Logging.OutputPath,
		"logging.max_size_mb":        config.Logging.MaxSizeMB,
		"logging.max_backups":        config.Logging.MaxBackups,
		"logging.max_age_days":       config.Logging.MaxAgeDays,
		"logging.compress":           config.Logging.Compress,
	}
}
