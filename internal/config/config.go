// Package config loads and validates node and table-encoding settings.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
	"github.com/mundrapranay/silhouette-db/internal/dokvs"
	"github.com/mundrapranay/silhouette-db/internal/gf2e"
	"github.com/mundrapranay/silhouette-db/internal/okvs"
)

// Config is the full configuration of a dokvs-server node.
type Config struct {
	// Node holds the raft and gRPC settings
	Node NodeConfig `yaml:"node" json:"node"`

	// Dokvs holds the defaults used to encode published tables
	Dokvs DokvsConfig `yaml:"dokvs" json:"dokvs"`

	// LogLevel is an hclog level name: trace, debug, info, warn, error
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NodeConfig describes one replica.
type NodeConfig struct {
	// Unique ID for this node
	NodeID string `yaml:"node_id" json:"node_id"`

	// Address to listen for Raft communication
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Address to listen for the gRPC API
	GRPCAddr string `yaml:"grpc_addr" json:"grpc_addr"`

	// Directory to store Raft logs and snapshots
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Bootstrap a new cluster (first node)
	Bootstrap bool `yaml:"bootstrap" json:"bootstrap"`

	// gRPC address of an existing member to join through
	Join string `yaml:"join" json:"join"`

	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout" json:"heartbeat_timeout"`
	ElectionTimeout  time.Duration `yaml:"election_timeout" json:"election_timeout"`
	CommitTimeout    time.Duration `yaml:"commit_timeout" json:"commit_timeout"`
}

// DokvsConfig selects how tables are encoded.
type DokvsConfig struct {
	// Backend: "dokvs" (oblivious) or "kvs" (plain baseline)
	Backend string `yaml:"backend" json:"backend"`

	// Type is a dokvs.Type name such as "H3_BLAZE_GCT"
	Type string `yaml:"type" json:"type"`

	// L is the value length in bits; 0 infers it from published values
	L int `yaml:"l" json:"l"`

	// Capacity is the minimum table capacity
	Capacity int `yaml:"capacity" json:"capacity"`

	// PRF: "blake3" or "cshake"
	PRF string `yaml:"prf" json:"prf"`

	Parallel        bool `yaml:"parallel" json:"parallel"`
	ExpectedBinSize int  `yaml:"expected_bin_size" json:"expected_bin_size"`

	// FreeMode disables doubly oblivious randomization
	FreeMode bool `yaml:"free_mode" json:"free_mode"`

	// Retries under fresh hash keys after a failed encode
	Retries int `yaml:"retries" json:"retries"`

	// MaxCapacity bounds Capacity and the number of pairs in one table
	MaxCapacity int `yaml:"max_capacity" json:"max_capacity"`

	// MaxL bounds L, requested or inferred from the values
	MaxL int `yaml:"max_l" json:"max_l"`
}

// Default limits for published tables.
const (
	DefaultMaxCapacity = 1 << 22
	DefaultMaxL        = 1 << 16
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ListenAddr:       "127.0.0.1:8080",
			GRPCAddr:         "127.0.0.1:9090",
			DataDir:          "./data",
			HeartbeatTimeout: 1000 * time.Millisecond,
			ElectionTimeout:  1000 * time.Millisecond,
			CommitTimeout:    50 * time.Millisecond,
		},
		Dokvs: DokvsConfig{
			Backend:         okvs.BackendDokvs,
			Type:            dokvs.H3BlazeGct.String(),
			PRF:             crypto.PRFBlake3,
			ExpectedBinSize: dokvs.DefaultExpectedBinSize,
			Retries:         2,
			MaxCapacity:     DefaultMaxCapacity,
			MaxL:            DefaultMaxL,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads configuration from a YAML file on top of Default.
func LoadConfig(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filePath, data, 0644)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Node.ListenAddr == "" {
		return fmt.Errorf("node.listen_addr is required")
	}
	if c.Node.GRPCAddr == "" {
		return fmt.Errorf("node.grpc_addr is required")
	}
	if c.Node.DataDir == "" {
		return fmt.Errorf("node.data_dir is required")
	}
	if c.Node.Bootstrap && c.Node.Join != "" {
		return fmt.Errorf("node.bootstrap and node.join are mutually exclusive")
	}
	if c.Node.HeartbeatTimeout <= 0 || c.Node.ElectionTimeout <= 0 || c.Node.CommitTimeout <= 0 {
		return fmt.Errorf("raft timeouts must be positive")
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return c.Dokvs.Validate()
}

// Validate checks the encoding settings.
func (d *DokvsConfig) Validate() error {
	if d.MaxCapacity <= 0 || d.MaxCapacity > dokvs.MaxN {
		return fmt.Errorf("dokvs.max_capacity must be in [1, %d], got %d", dokvs.MaxN, d.MaxCapacity)
	}
	if d.MaxL <= 0 {
		return fmt.Errorf("dokvs.max_l must be positive, got %d", d.MaxL)
	}
	switch d.Backend {
	case okvs.BackendDokvs, okvs.BackendKVS:
	default:
		return fmt.Errorf("dokvs.backend must be %q or %q, got %q", okvs.BackendDokvs, okvs.BackendKVS, d.Backend)
	}
	if d.Backend == okvs.BackendKVS {
		return nil
	}
	t, err := dokvs.ParseType(d.Type)
	if err != nil {
		return err
	}
	if d.L < 0 {
		return fmt.Errorf("dokvs.l must not be negative, got %d", d.L)
	}
	if d.L > d.MaxL {
		return fmt.Errorf("dokvs.l must be at most %d, got %d", d.MaxL, d.L)
	}
	if t == dokvs.MegaBin && d.L != 0 && d.L < 40 {
		return fmt.Errorf("dokvs.l must be at least 40 for %s, got %d", t, d.L)
	}
	if t == dokvs.MegaBin && d.L > gf2e.MaxL {
		return fmt.Errorf("dokvs.l must be at most %d for %s, got %d", gf2e.MaxL, t, d.L)
	}
	if d.Capacity < 0 {
		return fmt.Errorf("dokvs.capacity must not be negative, got %d", d.Capacity)
	}
	if d.Capacity > d.MaxCapacity {
		return fmt.Errorf("dokvs.capacity must be at most %d, got %d", d.MaxCapacity, d.Capacity)
	}
	if _, err := crypto.PRFByName(d.PRF); err != nil {
		return err
	}
	if d.Retries < 0 {
		return fmt.Errorf("dokvs.retries must not be negative, got %d", d.Retries)
	}
	if d.ExpectedBinSize < 0 {
		return fmt.Errorf("dokvs.expected_bin_size must not be negative, got %d", d.ExpectedBinSize)
	}
	return nil
}

// Params converts the settings into encoder parameters.
func (d *DokvsConfig) Params(logger hclog.Logger) (okvs.Params, error) {
	t, err := dokvs.ParseType(d.Type)
	if err != nil && d.Backend != okvs.BackendKVS {
		return okvs.Params{}, err
	}
	return okvs.Params{
		Type:            t,
		L:               d.L,
		Capacity:        d.Capacity,
		PRF:             d.PRF,
		ExpectedBinSize: d.ExpectedBinSize,
		Parallel:        d.Parallel,
		FreeMode:        d.FreeMode,
		Retries:         d.Retries,
		Logger:          logger,
	}, nil
}
