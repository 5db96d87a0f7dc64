// ABOUTME: Layered configuration: struct defaults, YAML file, env vars.
// ABOUTME: Also resolves XDG data paths for the database and uploads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment variables read by Load.
// VITALS_WHOOP_CLIENT_ID maps to whoop.client_id.
const EnvPrefix = "VITALS_"

// Config holds all runtime settings.
type Config struct {
	// DataDir is the root directory for the database and saved uploads.
	// Supports ~ expansion. Defaults to the XDG data directory.
	DataDir string `koanf:"data_dir"`

	Whoop  WhoopConfig  `koanf:"whoop"`
	Ingest IngestConfig `koanf:"ingest"`
}

// WhoopConfig configures the vendor API connection.
type WhoopConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri"`
	BaseURL      string `koanf:"base_url"`
	AuthURL      string `koanf:"auth_url"`
	TokenURL     string `koanf:"token_url"`
	SyncDaysBack int    `koanf:"sync_days_back"`
}

// IngestConfig configures archive ingestion behavior.
type IngestConfig struct {
	// KeepUploads retains a copy of each ingested archive under
	// DataDir/uploads for reprocessing.
	KeepUploads bool `koanf:"keep_uploads"`
}

func defaultConfig() *Config {
	return &Config{
		DataDir: "",
		Whoop: WhoopConfig{
			BaseURL:      "https://api.prod.whoop.com/developer",
			AuthURL:      "https://api.prod.whoop.com/oauth/oauth2/auth",
			TokenURL:     "https://api.prod.whoop.com/oauth/oauth2/token",
			RedirectURI:  "http://localhost:8789/callback",
			SyncDaysBack: 730,
		},
		Ingest: IngestConfig{
			KeepUploads: true,
		},
	}
}

// configFilePaths lists where a config file is searched, first hit wins.
func configFilePaths() []string {
	var paths []string
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		paths = append(paths, ExpandPath(p))
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return append(paths,
		"vitals.yaml",
		filepath.Join(configDir, "vitals", "config.yaml"),
	)
}

// Load builds the configuration in three layers: struct defaults, then
// an optional YAML file, then VITALS_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	for _, path := range configFilePaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		break
	}

	envProvider := env.Provider(EnvPrefix, ".", func(key string) string {
		key = strings.TrimPrefix(key, EnvPrefix)
		key = strings.ToLower(key)
		// WHOOP_CLIENT_ID -> whoop.client_id, DATA_DIR -> data_dir
		for _, section := range []string{"whoop", "ingest"} {
			if strings.HasPrefix(key, section+"_") {
				return section + "." + strings.TrimPrefix(key, section+"_")
			}
		}
		return key
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			homeDir, _ := os.UserHomeDir()
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
		return filepath.Join(dataDir, "vitals")
	}
	return ExpandPath(c.DataDir)
}

// DatabasePath returns the SQLite database location under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "vitals.db")
}

// UploadsDir returns where ingested archives are retained.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.GetDataDir(), "uploads")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
