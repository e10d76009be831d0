package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:8471"
	DefaultDBFileName = "pixelfort.db"
	DefaultLogLevel   = "info"

	DefaultSessionTTLHours = 24 * 7

	DefaultUploadMaxBytes        int64 = 10 * 1024 * 1024
	DefaultUploadMultipartMemory int64 = 8 * 1024 * 1024

	DefaultThumbnailMaxPx       = 200
	DefaultThumbnailJPEGQuality = 85

	DefaultDeriveTimeoutSeconds  = 10
	DefaultReconcileGraceMinutes = 15

	configDirEnvKey          = "PIXELFORT_CONFIG_DIR"
	trustProjectConfigEnvKey = "PIXELFORT_TRUST_PROJECT_CONFIG"

	uploadAllowedMediaTypesEnvKey = "PIXELFORT_ALLOWED_MEDIA_TYPES"

	configFileName = ".pixelfort.toml"
)

// UploadConfig defines runtime limits for photo uploads.
type UploadConfig struct {
	MaxUploadBytes     int64    `toml:"max_upload_bytes"`
	MultipartMaxMemory int64    `toml:"multipart_max_memory"`
	AllowedMediaTypes  []string `toml:"allowed_media_types"`
}

// ThumbnailConfig defines thumbnail rendering parameters.
type ThumbnailConfig struct {
	MaxPx       int `toml:"max_px"`
	JPEGQuality int `toml:"jpeg_quality"`
}

// ReconcileConfig tunes the orphan reconciler.
type ReconcileConfig struct {
	GraceMinutes int `toml:"grace_minutes"`
}

// Config defines runtime configuration for pixelfort.
type Config struct {
	APIURL               string          `toml:"api_url"`
	DBPath               string          `toml:"db_path"`
	StoragePath          string          `toml:"storage_path"`
	LogLevel             string          `toml:"log_level"`
	SessionTTLHours      int             `toml:"session_ttl_hours"`
	DeriveTimeoutSeconds int             `toml:"derive_timeout_seconds"`
	Uploads              UploadConfig    `toml:"uploads"`
	Thumbnails           ThumbnailConfig `toml:"thumbnails"`
	Reconcile            ReconcileConfig `toml:"reconcile"`

	TrustedProjectConfigPath string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:               DefaultAPIURL,
		DBPath:               "",
		StoragePath:          "",
		LogLevel:             DefaultLogLevel,
		SessionTTLHours:      DefaultSessionTTLHours,
		DeriveTimeoutSeconds: DefaultDeriveTimeoutSeconds,
		Uploads: UploadConfig{
			MaxUploadBytes:     DefaultUploadMaxBytes,
			MultipartMaxMemory: DefaultUploadMultipartMemory,
			AllowedMediaTypes:  nil,
		},
		Thumbnails: ThumbnailConfig{
			MaxPx:       DefaultThumbnailMaxPx,
			JPEGQuality: DefaultThumbnailJPEGQuality,
		},
		Reconcile: ReconcileConfig{
			GraceMinutes: DefaultReconcileGraceMinutes,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"storage_path",
	"log_level",
	"session_ttl_hours",
	"derive_timeout_seconds",
	"uploads.max_upload_bytes",
	"uploads.multipart_max_memory",
	"uploads.allowed_media_types",
	"thumbnails.max_px",
	"thumbnails.jpeg_quality",
	"reconcile.grace_minutes",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "storage_path":
		return c.StoragePath, nil
	case "log_level":
		return c.LogLevel, nil
	case "session_ttl_hours":
		return strconv.Itoa(c.SessionTTLHours), nil
	case "derive_timeout_seconds":
		return strconv.Itoa(c.DeriveTimeoutSeconds), nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "uploads.allowed_media_types":
		return strings.Join(c.Uploads.AllowedMediaTypes, ","), nil
	case "thumbnails.max_px":
		return strconv.Itoa(c.Thumbnails.MaxPx), nil
	case "thumbnails.jpeg_quality":
		return strconv.Itoa(c.Thumbnails.JPEGQuality), nil
	case "reconcile.grace_minutes":
		return strconv.Itoa(c.Reconcile.GraceMinutes), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			homePath := filepath.Join(home, configFileName)
			if err := loadFile(homePath, &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.StoragePath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.StoragePath = filepath.Join(cwd, "photos")
		}
	}

	if apiURL := os.Getenv("PIXELFORT_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv("PIXELFORT_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if storagePath := os.Getenv("PIXELFORT_STORAGE"); storagePath != "" {
		cfg.StoragePath = storagePath
	}
	if raw := strings.TrimSpace(os.Getenv(uploadAllowedMediaTypesEnvKey)); raw != "" {
		cfg.Uploads.AllowedMediaTypes = splitCSV(raw)
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "session_ttl_hours", "derive_timeout_seconds", "thumbnails.max_px", "thumbnails.jpeg_quality", "reconcile.grace_minutes":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.allowed_media_types":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	child, ok := data[parts[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		data[parts[0]] = child
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) normalizeDefaults() {
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = DefaultSessionTTLHours
	}
	if c.DeriveTimeoutSeconds <= 0 {
		c.DeriveTimeoutSeconds = DefaultDeriveTimeoutSeconds
	}
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultUploadMaxBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultUploadMultipartMemory
	}
	if c.Thumbnails.MaxPx <= 0 {
		c.Thumbnails.MaxPx = DefaultThumbnailMaxPx
	}
	if c.Thumbnails.JPEGQuality <= 0 || c.Thumbnails.JPEGQuality > 100 {
		c.Thumbnails.JPEGQuality = DefaultThumbnailJPEGQuality
	}
	if c.Reconcile.GraceMinutes <= 0 {
		c.Reconcile.GraceMinutes = DefaultReconcileGraceMinutes
	}
	normalized := make([]string, 0, len(c.Uploads.AllowedMediaTypes))
	for _, mt := range c.Uploads.AllowedMediaTypes {
		mt = strings.TrimSpace(strings.ToLower(mt))
		if mt != "" {
			normalized = append(normalized, mt)
		}
	}
	c.Uploads.AllowedMediaTypes = normalized
}

// MediaTypeAllowed reports whether mediaType passes the configured allowlist.
// An empty allowlist permits any image/* media type.
func (c *Config) MediaTypeAllowed(mediaType string) bool {
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	if len(c.Uploads.AllowedMediaTypes) == 0 {
		return strings.HasPrefix(mediaType, "image/")
	}
	for _, allowed := range c.Uploads.AllowedMediaTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}
