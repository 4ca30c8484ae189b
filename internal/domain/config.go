package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Discovery    DiscoveryConfig    `mapstructure:"discovery"`
	Download     DownloadConfig     `mapstructure:"download"`
	Categories   []CategoryConfig   `mapstructure:"categories"`
	Jobs         JobsConfig         `mapstructure:"jobs"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// HTTPConfig contains the outbound HTTP client settings shared by discovery and downloads
type HTTPConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PageTimeout    time.Duration `mapstructure:"page_timeout"` // whole-page budget for discovery
	ReadTimeout    time.Duration `mapstructure:"read_timeout"` // max silence between reads of a file body
	MaxRedirects   int           `mapstructure:"max_redirects"`
}

// SelectorConfig names one resource-bearing attribute of one element
type SelectorConfig struct {
	Tag  string `mapstructure:"tag"`
	Attr string `mapstructure:"attr"`
}

// DiscoveryConfig contains link discovery configuration
type DiscoveryConfig struct {
	DefaultCategory string           `mapstructure:"default_category"`
	MaxPageBytes    int64            `mapstructure:"max_page_bytes"`
	DetectLanguage  bool             `mapstructure:"detect_language"`
	Selectors       []SelectorConfig `mapstructure:"selectors"`
	LinkRels        []string         `mapstructure:"link_rels"`
	FeedExtensions  []string         `mapstructure:"feed_extensions"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	LogsDir      string `mapstructure:"logs_dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	Workers      int    `mapstructure:"workers"`
	MinFreeBytes uint64 `mapstructure:"min_free_bytes"`
}

// CategoryConfig is one row of the category table as written in configuration
type CategoryConfig struct {
	Name       string   `mapstructure:"name"`
	Extensions []string `mapstructure:"extensions"`
}

// JobsConfig contains the server job registry configuration
type JobsConfig struct {
	DatabasePath  string        `mapstructure:"database_path"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultUserAgent is sent on every outbound request
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"

// DefaultSelectors returns the resource-bearing element/attribute pairs in precedence order
func DefaultSelectors() []SelectorConfig {
	return []SelectorConfig{
		{Tag: "a", Attr: "href"},
		{Tag: "link", Attr: "href"},
		{Tag: "img", Attr: "src"},
		{Tag: "img", Attr: "srcset"},
		{Tag: "source", Attr: "src"},
		{Tag: "source", Attr: "srcset"},
		{Tag: "video", Attr: "src"},
		{Tag: "audio", Attr: "src"},
		{Tag: "track", Attr: "src"},
		{Tag: "embed", Attr: "src"},
		{Tag: "object", Attr: "data"},
	}
}

// DefaultCategories returns the built-in category table rows
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{Name: "Images", Extensions: []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".bmp", ".tiff", ".ico"}},
		{Name: "Documents", Extensions: []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".rtf", ".odt", ".csv", ".pages", ".numbers", ".key"}},
		{Name: "Videos", Extensions: []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".flv", ".wmv", ".mpeg", ".mpg"}},
		{Name: "Audio", Extensions: []string{".mp3", ".wav", ".ogg", ".aac", ".flac", ".m4a", ".wma"}},
		{Name: "Archives", Extensions: []string{".zip", ".rar", ".tar", ".gz", ".7z", ".bz2", ".xz"}},
		{Name: "Source/Text", Extensions: []string{".java", ".js", ".html", ".css", ".xml", ".json", ".py", ".c", ".cpp", ".h", ".cs", ".php", ".rb", ".sql", ".md"}},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8088,
			MetricsEnabled: true,
		},
		HTTP: HTTPConfig{
			UserAgent:      DefaultUserAgent,
			ConnectTimeout: 15 * time.Second,
			PageTimeout:    20 * time.Second,
			ReadTimeout:    60 * time.Second,
			MaxRedirects:   10,
		},
		Discovery: DiscoveryConfig{
			DefaultCategory: "Images",
			MaxPageBytes:    10 << 20,
			DetectLanguage:  true,
			Selectors:       DefaultSelectors(),
			LinkRels:        []string{"stylesheet", "icon", "shortcut icon", "apple-touch-icon", "preload", "manifest"},
			FeedExtensions:  []string{".xml", ".rss", ".atom"},
		},
		Download: DownloadConfig{
			BaseDir:      "$HOME/Downloads/linkgrab",
			LogsDir:      "$HOME/.linkgrab/logs",
			ChunkSize:    8192,
			Workers:      1,
			MinFreeBytes: 0,
		},
		Categories: DefaultCategories(),
		Jobs: JobsConfig{
			DatabasePath:  ":memory:",
			MaxConcurrent: 2,
			CheckInterval: 2 * time.Second,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			MaxSizeMB:  5,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}
