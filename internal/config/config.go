// Package config provides configuration management for clipforge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/clipforge/clipforge/pkg/duration"
)

// Default configuration values.
const (
	defaultServerPort      = 8000
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultUserVideoLimit   = 60
	defaultMaxClipDuration  = 600 * time.Second
	defaultRetentionDays    = 7
	defaultTempFrameMaxAge  = 24 * time.Hour
	defaultTokenTTL         = time.Hour
	defaultPlexTimeout      = 15 * time.Second
	defaultPlexRetries      = 3
	defaultPlexRetryBase    = time.Second
	defaultPlexRetryMax     = 10 * time.Second
	defaultFFmpegRetries    = 2
	defaultFFmpegRetryBase  = 500 * time.Millisecond
	defaultFFmpegRetryMax   = 5 * time.Second
	defaultPlexBreakerMax   = 5
	defaultPlexBreakerReset = 30 * time.Second
	defaultFFBreakerMax     = 3
	defaultFFBreakerReset   = 60 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Plex       PlexConfig       `mapstructure:"plex"`
	FFmpeg     FFmpegConfig     `mapstructure:"ffmpeg"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	VideoDir      string `mapstructure:"video_dir"`
	SnapshotDir   string `mapstructure:"snapshot_dir"`
	EditedDir     string `mapstructure:"edited_dir"`
	ThumbnailDir  string `mapstructure:"thumbnail_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PlexConfig holds Plex server access configuration.
type PlexConfig struct {
	ServerURL string `mapstructure:"server_url"`
	// ServerToken is an admin token used to enumerate sessions on an owned
	// server. User tokens are supplied per request.
	ServerToken string `mapstructure:"server_token"`
	// ServerName restricts discovery to a single named server when no
	// admin token is configured.
	ServerName    string        `mapstructure:"server_name"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TestMode      bool          `mapstructure:"test_mode"`
	TestVideoFile string        `mapstructure:"test_video_file"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = use PATH)
	ProbePath  string `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = use PATH)
}

// AuthConfig holds token signing configuration.
type AuthConfig struct {
	SecretKey       string        `mapstructure:"secret_key"`
	Issuer          string        `mapstructure:"issuer"`
	MediaTokenTTL   time.Duration `mapstructure:"media_token_ttl"`
	SessionTokenTTL time.Duration `mapstructure:"session_token_ttl"`
}

// ProcessingConfig holds artifact processing configuration.
type ProcessingConfig struct {
	UserVideoLimit  int           `mapstructure:"user_video_limit"`
	MaxClipDuration time.Duration `mapstructure:"max_clip_duration"`
}

// RetryConfig holds a single retry profile.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	ExponentialBase float64       `mapstructure:"exponential_base"`
}

// BreakerConfig holds a single circuit breaker profile.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// ResilienceConfig holds retry and circuit breaker profiles for the two
// external dependencies.
type ResilienceConfig struct {
	PlexRetry     RetryConfig   `mapstructure:"plex_retry"`
	FFmpegRetry   RetryConfig   `mapstructure:"ffmpeg_retry"`
	PlexBreaker   BreakerConfig `mapstructure:"plex_breaker"`
	FFmpegBreaker BreakerConfig `mapstructure:"ffmpeg_breaker"`
}

// CleanupConfig holds background cleanup configuration.
type CleanupConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RetentionCron   string        `mapstructure:"retention_cron"`
	TempSweepCron   string        `mapstructure:"temp_sweep_cron"`
	TempFrameMaxAge time.Duration `mapstructure:"temp_frame_max_age"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with CLIPFORGE_ and use underscores
// for nesting. Example: CLIPFORGE_SERVER_PORT=8000.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/clipforge")
		v.AddConfigPath("$HOME/.clipforge")
	}

	// Environment variable settings
	v.SetEnvPrefix("CLIPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, DecodeHooks()); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := cfg.Storage.Normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DecodeHooks builds the unmarshal hooks. Duration fields accept
// calendar spellings such as "7 days" or "2w" in addition to the
// standard Go forms, so retention windows read naturally in YAML.
func DecodeHooks() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		humanDurationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

func humanDurationHook() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != durationType {
			return data, nil
		}
		return duration.Parse(data.(string))
	}
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "clipforge.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.video_dir", "videos")
	v.SetDefault("storage.snapshot_dir", "snapshots")
	v.SetDefault("storage.edited_dir", "edited")
	v.SetDefault("storage.thumbnail_dir", "thumbnails")
	v.SetDefault("storage.retention_days", defaultRetentionDays)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Plex defaults
	v.SetDefault("plex.server_url", "")
	v.SetDefault("plex.server_token", "")
	v.SetDefault("plex.server_name", "")
	v.SetDefault("plex.timeout", defaultPlexTimeout)
	v.SetDefault("plex.test_mode", false)
	v.SetDefault("plex.test_video_file", "test.mkv")

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	// Auth defaults
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.issuer", "clipforge")
	v.SetDefault("auth.media_token_ttl", defaultTokenTTL)
	v.SetDefault("auth.session_token_ttl", 24*time.Hour)

	// Processing defaults
	v.SetDefault("processing.user_video_limit", defaultUserVideoLimit)
	v.SetDefault("processing.max_clip_duration", defaultMaxClipDuration)

	// Resilience defaults
	v.SetDefault("resilience.plex_retry.max_attempts", defaultPlexRetries)
	v.SetDefault("resilience.plex_retry.base_delay", defaultPlexRetryBase)
	v.SetDefault("resilience.plex_retry.max_delay", defaultPlexRetryMax)
	v.SetDefault("resilience.plex_retry.exponential_base", 2.0)
	v.SetDefault("resilience.ffmpeg_retry.max_attempts", defaultFFmpegRetries)
	v.SetDefault("resilience.ffmpeg_retry.base_delay", defaultFFmpegRetryBase)
	v.SetDefault("resilience.ffmpeg_retry.max_delay", defaultFFmpegRetryMax)
	v.SetDefault("resilience.ffmpeg_retry.exponential_base", 2.0)
	v.SetDefault("resilience.plex_breaker.failure_threshold", defaultPlexBreakerMax)
	v.SetDefault("resilience.plex_breaker.reset_timeout", defaultPlexBreakerReset)
	v.SetDefault("resilience.ffmpeg_breaker.failure_threshold", defaultFFBreakerMax)
	v.SetDefault("resilience.ffmpeg_breaker.reset_timeout", defaultFFBreakerReset)

	// Cleanup defaults
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.retention_cron", "0 0 3 * * *") // Daily at 3 AM (6-field cron)
	v.SetDefault("cleanup.temp_sweep_cron", "0 30 * * * *")
	v.SetDefault("cleanup.temp_frame_max_age", defaultTempFrameMaxAge)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days must be at least 1")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Auth validation
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key is required")
	}
	if c.Auth.MediaTokenTTL <= 0 {
		return fmt.Errorf("auth.media_token_ttl must be positive")
	}
	if c.Auth.SessionTokenTTL <= 0 {
		return fmt.Errorf("auth.session_token_ttl must be positive")
	}

	// Processing validation
	if c.Processing.UserVideoLimit < 1 {
		return fmt.Errorf("processing.user_video_limit must be at least 1")
	}
	if c.Processing.MaxClipDuration <= 0 {
		return fmt.Errorf("processing.max_clip_duration must be positive")
	}

	// Resilience validation
	for name, r := range map[string]RetryConfig{
		"plex_retry":   c.Resilience.PlexRetry,
		"ffmpeg_retry": c.Resilience.FFmpegRetry,
	} {
		if r.MaxAttempts < 1 {
			return fmt.Errorf("resilience.%s.max_attempts must be at least 1", name)
		}
		if r.ExponentialBase < 1 {
			return fmt.Errorf("resilience.%s.exponential_base must be at least 1", name)
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Normalize resolves BaseDir to an absolute path. Artifact rows store the
// full file path and the media sandbox only serves absolute ones, so a
// relative base dir must be resolved before anything is written under it.
func (c *StorageConfig) Normalize() error {
	abs, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return fmt.Errorf("resolving storage base dir %q: %w", c.BaseDir, err)
	}
	c.BaseDir = abs
	return nil
}

// VideoPath returns the full path to the clip storage directory.
func (c *StorageConfig) VideoPath() string {
	return filepath.Join(c.BaseDir, c.VideoDir)
}

// SnapshotPath returns the full path to the snapshot storage directory.
// Temporary preview and burst frames are also written here.
func (c *StorageConfig) SnapshotPath() string {
	return filepath.Join(c.BaseDir, c.SnapshotDir)
}

// EditedPath returns the full path to the edited clip storage directory.
func (c *StorageConfig) EditedPath() string {
	return filepath.Join(c.BaseDir, c.EditedDir)
}

// ThumbnailPath returns the full path to the thumbnail storage directory.
func (c *StorageConfig) ThumbnailPath() string {
	return filepath.Join(c.BaseDir, c.ThumbnailDir)
}

// ArtifactPaths returns every artifact directory managed under BaseDir.
func (c *StorageConfig) ArtifactPaths() []string {
	return []string{c.VideoPath(), c.SnapshotPath(), c.EditedPath(), c.ThumbnailPath()}
}

// EnsureDirectories creates all storage directories if they do not exist.
func (c *StorageConfig) EnsureDirectories() error {
	for _, dir := range c.ArtifactPaths() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// TestVideoPath returns the first existing candidate location for the test
// fixture file. The second return is false when no candidate exists; test
// mode must fail fast rather than fall through to network discovery.
func (c *PlexConfig) TestVideoPath(storageBase string) (string, bool) {
	candidates := []string{
		c.TestVideoFile,
		filepath.Join(storageBase, c.TestVideoFile),
		filepath.Join(".", c.TestVideoFile),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}
