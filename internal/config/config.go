package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/asad/blobreader/internal/blobstore"
)

// EnvPrefix prefixes every environment variable read by Load, e.g. BLOBREADER_DATA_DIR.
const EnvPrefix = "BLOBREADER"

// Config holds the application configuration.
// It is built once at startup and handed to each component explicitly.
type Config struct {
	// Port is the HTTP port the edge router listens on.
	// Default: 8080
	Port int

	// DataDir is the directory holding the <id>.blob store files.
	// Default: ./data
	DataDir string

	// DefaultStore is the store id used when a request names none.
	// Default: "" (no default store)
	DefaultStore string

	// AutoIndex lists every store in DataDir instead of only DefaultStore.
	// Default: false
	AutoIndex bool

	// DefaultEncoding applies to index lines with an empty encoding field.
	// Default: gzip
	DefaultEncoding string

	// DefaultMediaType applies to index lines with an empty media type field.
	// Default: application/octet-stream
	DefaultMediaType string

	// ScratchDir holds temporary files while gzip entries are decompressed.
	// Default: "" (the OS temp dir)
	ScratchDir string

	// PageSize is the number of entries per listing page when the request gives none.
	// Default: 20
	PageSize int

	// EnabledServices lists the services whose routes are mounted.
	// Default: "stores"
	EnabledServices []string

	// LogLevel controls the verbosity of logging (debug, info, warn, error).
	// Default: "info"
	LogLevel string
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("default_store", "")
	v.SetDefault("auto_index", false)
	v.SetDefault("default_encoding", blobstore.StandardDefaults.Encoding)
	v.SetDefault("default_media_type", blobstore.StandardDefaults.MediaType)
	v.SetDefault("scratch_dir", "")
	v.SetDefault("page_size", 20)
	v.SetDefault("enabled_services", "stores")
	v.SetDefault("log_level", "info")
}

// NewViper returns a viper instance with defaults and environment binding.
// A non-empty configFile is read as well; a missing default config is not an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", configFile, err)
		}
	} else {
		v.SetConfigName("blobreader")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v, nil
}

// Load builds a Config from the values known to v.
func Load(v *viper.Viper) *Config {
	return &Config{
		Port:             v.GetInt("port"),
		DataDir:          v.GetString("data_dir"),
		DefaultStore:     v.GetString("default_store"),
		AutoIndex:        v.GetBool("auto_index"),
		DefaultEncoding:  v.GetString("default_encoding"),
		DefaultMediaType: v.GetString("default_media_type"),
		ScratchDir:       v.GetString("scratch_dir"),
		PageSize:         v.GetInt("page_size"),
		EnabledServices:  splitList(v.GetString("enabled_services")),
		LogLevel:         v.GetString("log_level"),
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsServiceEnabled checks if a given service name is in the EnabledServices list.
func (c *Config) IsServiceEnabled(serviceName string) bool {
	for _, s := range c.EnabledServices {
		if s == serviceName {
			return true
		}
	}
	return false
}

// Defaults returns the entry defaults to resolve empty index fields with.
func (c *Config) Defaults() blobstore.Defaults {
	return blobstore.Defaults{
		MediaType: c.DefaultMediaType,
		Encoding:  c.DefaultEncoding,
	}
}

// StreamOptions returns the options entries are streamed with.
func (c *Config) StreamOptions() blobstore.Options {
	return blobstore.Options{
		Defaults:   c.Defaults(),
		ScratchDir: c.ScratchDir,
	}
}

// Validate performs basic validation on the configuration.
// Returns an error if any invalid settings are detected.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port >= 65536 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.DefaultEncoding != blobstore.EncodingGzip && c.DefaultEncoding != blobstore.EncodingIdentity {
		return fmt.Errorf("unsupported default_encoding %q (gzip or identity)", c.DefaultEncoding)
	}
	if c.DefaultMediaType == "" {
		return fmt.Errorf("default_media_type cannot be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("invalid page_size: %d", c.PageSize)
	}
	if strings.ContainsAny(c.DefaultStore, `/\`) || strings.Contains(c.DefaultStore, "..") {
		return fmt.Errorf("invalid default_store %q", c.DefaultStore)
	}
	return nil
}
