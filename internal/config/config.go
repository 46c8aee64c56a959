// Package config provides configuration management for renderd.
// Configuration is loaded from environment variables with sensible defaults;
// encoder quality presets may additionally be overridden from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort     = "RENDERD_PORT"
	EnvLogLevel = "RENDERD_LOG_LEVEL"
	EnvDataDir  = "RENDERD_DATA_DIR"
	EnvHeadless = "RENDERD_HEADLESS"

	// Encoder environment variable names
	EnvFFmpegPath    = "RENDERD_FFMPEG_PATH"
	EnvFFprobePath   = "RENDERD_FFPROBE_PATH"
	EnvMaxConcurrent = "RENDERD_MAX_CONCURRENT"
	EnvEncodeTimeout = "RENDERD_ENCODE_TIMEOUT"
	EnvPresetsFile   = "RENDERD_PRESETS_FILE"

	// Fetch environment variable names
	EnvFetchTimeout   = "RENDERD_FETCH_TIMEOUT"
	EnvCacheEnabled   = "RENDERD_CACHE_ENABLED"
	EnvCacheRetention = "RENDERD_CACHE_RETENTION"

	// Storage environment variable names
	EnvStorageEndpoint   = "RENDERD_STORAGE_ENDPOINT"
	EnvStorageBucket     = "RENDERD_STORAGE_BUCKET"
	EnvStorageRegion     = "RENDERD_STORAGE_REGION"
	EnvStorageAccessKey  = "RENDERD_STORAGE_ACCESS_KEY"
	EnvStorageSecretKey  = "RENDERD_STORAGE_SECRET_KEY"
	EnvStoragePublicRead = "RENDERD_STORAGE_PUBLIC_READ"
	EnvSignedURLTTL      = "RENDERD_SIGNED_URL_TTL"
	EnvCallbackSecret    = "RENDERD_CALLBACK_SECRET"

	// Database filename
	DBFilename = "renderd.db"

	// Concurrency and timeout defaults
	DefaultMaxConcurrent     = 3
	DefaultEncodeTimeout     = 600  // seconds
	DefaultProbeTimeout      = 30   // seconds
	DefaultFetchTimeout      = 120  // seconds
	DefaultCacheRetention    = 24   // hours
	DefaultArtifactRetention = 72   // hours
	DefaultSignedURLTTL      = 7 * 24 * 3600 // seconds (7 days)
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ScratchDir() string
	CacheDir() string
	ArtifactsDir() string
	Headless() bool

	FFmpegPath() string
	FFprobePath() string
	MaxConcurrent() int64
	EncodeTimeout() time.Duration
	ProbeTimeout() time.Duration
	Presets() PresetTable

	FetchTimeout() time.Duration
	CacheEnabled() bool
	CacheRetention() time.Duration
	ArtifactRetention() time.Duration

	StorageEndpoint() string
	StorageBucket() string
	StorageRegion() string
	StorageAccessKey() string
	StorageSecretKey() string
	StoragePublicRead() bool
	SignedURLTTL() time.Duration
	CallbackSecret() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath    string
	ffprobePath   string
	maxConcurrent int64
	encodeTimeout time.Duration
	presets       PresetTable

	fetchTimeout   time.Duration
	cacheEnabled   bool
	cacheRetention time.Duration

	storageEndpoint   string
	storageBucket     string
	storageRegion     string
	storageAccessKey  string
	storageSecretKey  string
	storagePublicRead bool
	signedURLTTL      time.Duration
	callbackSecret    string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		maxConcurrent:  DefaultMaxConcurrent,
		encodeTimeout:  DefaultEncodeTimeout * time.Second,
		fetchTimeout:   DefaultFetchTimeout * time.Second,
		cacheEnabled:   true,
		cacheRetention: DefaultCacheRetention * time.Hour,
		signedURLTTL:   DefaultSignedURLTTL * time.Second,
		presets:        DefaultPresets(),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.headless = boolEnv(EnvHeadless, false)

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	if mc := os.Getenv(EnvMaxConcurrent); mc != "" {
		n, err := strconv.Atoi(mc)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxConcurrent, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1", EnvMaxConcurrent)
		}
		cfg.maxConcurrent = int64(n)
	}

	if et := os.Getenv(EnvEncodeTimeout); et != "" {
		secs, err := strconv.Atoi(et)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvEncodeTimeout, err)
		}
		if secs < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1 second", EnvEncodeTimeout)
		}
		cfg.encodeTimeout = time.Duration(secs) * time.Second
	}

	if ft := os.Getenv(EnvFetchTimeout); ft != "" {
		secs, err := strconv.Atoi(ft)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvFetchTimeout, err)
		}
		cfg.fetchTimeout = time.Duration(secs) * time.Second
	}

	cfg.cacheEnabled = boolEnv(EnvCacheEnabled, true)

	if cr := os.Getenv(EnvCacheRetention); cr != "" {
		hours, err := strconv.Atoi(cr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvCacheRetention, err)
		}
		cfg.cacheRetention = time.Duration(hours) * time.Hour
	}

	cfg.storageEndpoint = os.Getenv(EnvStorageEndpoint)
	cfg.storageBucket = os.Getenv(EnvStorageBucket)
	cfg.storageRegion = os.Getenv(EnvStorageRegion)
	cfg.storageAccessKey = os.Getenv(EnvStorageAccessKey)
	cfg.storageSecretKey = os.Getenv(EnvStorageSecretKey)
	cfg.storagePublicRead = boolEnv(EnvStoragePublicRead, false)
	cfg.callbackSecret = os.Getenv(EnvCallbackSecret)

	if ttl := os.Getenv(EnvSignedURLTTL); ttl != "" {
		secs, err := strconv.Atoi(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSignedURLTTL, err)
		}
		if secs < 1 {
			return nil, fmt.Errorf("invalid %s: must be at least 1 second", EnvSignedURLTTL)
		}
		cfg.signedURLTTL = time.Duration(secs) * time.Second
	}

	if pf := os.Getenv(EnvPresetsFile); pf != "" {
		presets, err := LoadPresets(pf, cfg.presets)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPresetsFile, err)
		}
		cfg.presets = presets
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ScratchDir returns the per-job download/working directory root
func (c *EnvConfig) ScratchDir() string {
	return filepath.Join(c.dataDir, "scratch")
}

// CacheDir returns the content-addressed download cache path
func (c *EnvConfig) CacheDir() string {
	return filepath.Join(c.dataDir, "cache")
}

// ArtifactsDir returns the directory holding finished render outputs
func (c *EnvConfig) ArtifactsDir() string {
	return filepath.Join(c.dataDir, "artifacts")
}

// Headless reports whether the system tray should be disabled
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// MaxConcurrent returns the number of simultaneous render slots
func (c *EnvConfig) MaxConcurrent() int64 {
	return c.maxConcurrent
}

// EncodeTimeout returns the hard wall-clock limit for one encode subprocess
func (c *EnvConfig) EncodeTimeout() time.Duration {
	return c.encodeTimeout
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return DefaultProbeTimeout * time.Second
}

func (c *EnvConfig) Presets() PresetTable {
	return c.presets
}

func (c *EnvConfig) FetchTimeout() time.Duration {
	return c.fetchTimeout
}

func (c *EnvConfig) CacheEnabled() bool {
	return c.cacheEnabled
}

func (c *EnvConfig) CacheRetention() time.Duration {
	return c.cacheRetention
}

func (c *EnvConfig) ArtifactRetention() time.Duration {
	return DefaultArtifactRetention * time.Hour
}

func (c *EnvConfig) StorageEndpoint() string {
	return c.storageEndpoint
}

func (c *EnvConfig) StorageBucket() string {
	return c.storageBucket
}

func (c *EnvConfig) StorageRegion() string {
	if c.storageRegion != "" {
		return c.storageRegion
	}
	return "us-east-1"
}

func (c *EnvConfig) StorageAccessKey() string {
	return c.storageAccessKey
}

func (c *EnvConfig) StorageSecretKey() string {
	return c.storageSecretKey
}

func (c *EnvConfig) StoragePublicRead() bool {
	return c.storagePublicRead
}

// SignedURLTTL returns the expiry applied to presigned download URLs
func (c *EnvConfig) SignedURLTTL() time.Duration {
	return c.signedURLTTL
}

func (c *EnvConfig) CallbackSecret() string {
	return c.callbackSecret
}

func boolEnv(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "TRUE", "yes":
		return true
	case "0", "false", "FALSE", "no":
		return false
	}
	return fallback
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
