// Package config loads the TOML settings of the indexdb command.
//
// A minimal file:
//
//	[store]
//	kind = "s3"
//	bucket = "indexes"
//	prefix = "chromium/"
//	commit_table = "indexdb-commits"
//
//	[merge]
//	concurrency = 8
//	memory_limit_bytes = 4294967296
//
//	[producer]
//	command = "indexer"
//	args = ["--out", "{out}"]
//	workers = 16
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/hupe1980/indexdb/internal/compress"
)

// Config is the complete command configuration.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Merge    MergeConfig    `toml:"merge"`
	Producer ProducerConfig `toml:"producer"`
	Log      LogConfig      `toml:"log"`
}

// StoreConfig selects and configures the blob store archives are published to.
type StoreConfig struct {
	// Kind is one of "local", "memory", "s3" or "minio".
	Kind string `toml:"kind"`

	// Root is the directory of a local store.
	Root string `toml:"root"`

	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`

	// Endpoint is the MinIO host:port, or an S3-compatible endpoint URL.
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Insecure  bool   `toml:"insecure"`

	// CommitTable names the DynamoDB table that serializes pointer updates.
	// Only valid with kind "s3".
	CommitTable string `toml:"commit_table"`

	// Compression is "none", "lz4" or "zstd".
	Compression string `toml:"compression"`

	// IOLimitBytesPerSec throttles uploads and downloads. 0 is unlimited.
	IOLimitBytesPerSec int64 `toml:"io_limit_bytes_per_sec"`
}

// MergeConfig bounds parallel merging.
type MergeConfig struct {
	Concurrency      int   `toml:"concurrency"`
	MemoryLimitBytes int64 `toml:"memory_limit_bytes"`
}

// ProducerConfig describes the external fact producer run by the build command.
type ProducerConfig struct {
	// Command is the producer executable.
	Command string `toml:"command"`
	// Args are passed to every run. "{in}" and "{out}" are replaced with the
	// unit and the index path to write.
	Args []string `toml:"args"`
	// Workers bounds concurrent producer processes.
	Workers int `toml:"workers"`
	// TimeoutSec bounds a single run. 0 disables the timeout.
	TimeoutSec int `toml:"timeout_sec"`
}

// Timeout returns TimeoutSec as a duration.
func (p ProducerConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Store.Kind == "" {
		c.Store.Kind = "local"
	}
	if c.Store.Kind == "local" && c.Store.Root == "" {
		c.Store.Root = "."
	}
	if c.Store.Compression == "" {
		c.Store.Compression = "none"
	}
	if c.Merge.Concurrency <= 0 {
		c.Merge.Concurrency = runtime.GOMAXPROCS(0)
	}
	if c.Producer.Workers <= 0 {
		c.Producer.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Parse decodes TOML, fills in defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads the TOML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Validate checks that the settings are consistent.
func (c Config) Validate() error {
	s := c.Store
	switch s.Kind {
	case "local":
		if s.Root == "" {
			return fmt.Errorf("config: store.root is required for a local store")
		}
	case "memory":
	case "s3", "minio":
		if s.Bucket == "" {
			return fmt.Errorf("config: store.bucket is required for a %s store", s.Kind)
		}
		if s.Kind == "minio" && s.Endpoint == "" {
			return fmt.Errorf("config: store.endpoint is required for a minio store")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", s.Kind)
	}
	if s.CommitTable != "" && s.Kind != "s3" {
		return fmt.Errorf("config: store.commit_table requires kind \"s3\", got %q", s.Kind)
	}
	if _, err := compress.ParseAlgorithm(s.Compression); err != nil {
		return fmt.Errorf("config: store.compression: %w", err)
	}
	if s.IOLimitBytesPerSec < 0 {
		return fmt.Errorf("config: store.io_limit_bytes_per_sec must not be negative")
	}
	if c.Merge.MemoryLimitBytes < 0 {
		return fmt.Errorf("config: merge.memory_limit_bytes must not be negative")
	}
	if c.Producer.TimeoutSec < 0 {
		return fmt.Errorf("config: producer.timeout_sec must not be negative")
	}
	return nil
}
