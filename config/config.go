package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Backend names the persistence backend holding sealed shard state.
const (
	BackendFilesystem = "filesystem"
	BackendLevelDB    = "leveldb"
)

type Config struct {
	// DataDir is the node's working directory. ShardsDir and the sealing
	// key file default to locations below it.
	DataDir string `toml:"DataDir"`
	// ShardsDir is the root of the sealed shard tree, relative to the
	// storage backend.
	ShardsDir string `toml:"ShardsDir"`
	// StateFile is the name of the sealed state file inside each shard
	// directory.
	StateFile string `toml:"StateFile"`
	// StorageBackend selects where sealed state lives: "filesystem" or
	// "leveldb".
	StorageBackend string `toml:"StorageBackend"`
	// SealKeyFile is the path of the development sealing key file. Ignored
	// when the platform provides hardware key derivation.
	SealKeyFile string `toml:"SealKeyFile"`
	// InsecureSealing disables state encryption entirely. Development only.
	InsecureSealing bool `toml:"InsecureSealing"`
	// BanTimeMinutes is how long stale operations stay banned from the pool.
	BanTimeMinutes uint64 `toml:"BanTimeMinutes"`
	// MetricsAddress is the listen address of the prometheus endpoint. An
	// empty value disables the listener.
	MetricsAddress string `toml:"MetricsAddress"`
	// Env labels log output (e.g. "dev", "prod").
	Env string `toml:"Env"`
}

// Load reads the configuration at path, creating a default file first when
// none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{DataDir: "./tee-data"}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./tee-data"
	}
	if strings.TrimSpace(c.ShardsDir) == "" {
		c.ShardsDir = "shards"
	}
	if strings.TrimSpace(c.StateFile) == "" {
		c.StateFile = "state.seal"
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = BackendFilesystem
	}
	if strings.TrimSpace(c.SealKeyFile) == "" {
		c.SealKeyFile = filepath.Join(c.DataDir, "sealing.key")
	}
	if c.BanTimeMinutes == 0 {
		c.BanTimeMinutes = 30
	}
}

// Validate ensures the configuration is self-consistent.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendFilesystem, BackendLevelDB:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if strings.Contains(c.StateFile, "/") {
		return fmt.Errorf("state file name %q must not contain path separators", c.StateFile)
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
