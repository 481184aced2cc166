// Package config holds the ambient configuration surface for the transfer
// core: one struct per subsystem, assembled under a root Config and loaded
// from YAML with an environment overlay.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Quota     QuotaConfig     `yaml:"quota"`
	Cloud     CloudConfig     `yaml:"cloud"`
	Transport TransportConfig `yaml:"transport"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
}

type ServerConfig struct {
	Port        int    `yaml:"port" default:"8443"`
	MetricsPort int    `yaml:"metrics_port" default:"9090"`
	LogLevel    string `yaml:"log_level" default:"info"`
}

// PipelineConfig sizes the queues and worker pools of the server pipeline
// (§4.F). Mirrors internal/pipeline.Config; kept separate so the YAML
// surface doesn't leak pipeline-package internals into config.
type PipelineConfig struct {
	QueueSize          int `yaml:"queue_size" default:"64"`
	IOWorkers          int `yaml:"io_workers" default:"2"`
	CompressionWorkers int `yaml:"compression_workers" default:"2"`
	NetworkWorkers     int `yaml:"network_workers" default:"2"`
	EncryptionWorkers  int `yaml:"encryption_workers" default:"1"`

	// EncryptionAlgorithm selects the pipeline's encrypt/decrypt stage
	// engine ("none", "xchacha20poly1305", "aes256gcm"); empty selects
	// "xchacha20poly1305". MasterKeyHex, if set, enables the stage by supplying the
	// HKDF master key transfer subkeys derive from (hex-encoded, 32 bytes).
	// Key storage and rotation beyond this single master key are out of
	// scope.
	EncryptionAlgorithm string `yaml:"encryption_algorithm"`
	MasterKeyHex        string `yaml:"master_key_hex"`

	// StorageRoot is where the write stage assembles uploaded files and the
	// read stage finds files to serve for download, both by Meta.Filename.
	StorageRoot string `yaml:"storage_root" default:"/var/lib/vaultaire/transfers"`
}

// QuotaConfig seeds an internal/quota.Manager for a storage root.
type QuotaConfig struct {
	Root        string    `yaml:"root"`
	TotalQuota  int64     `yaml:"total_quota"`
	MaxFileSize int64     `yaml:"max_file_size"`
	Thresholds  []float64 `yaml:"thresholds"`
}

// CloudConfig selects and configures one of the three cloud providers
// (§4.H). Only the section matching Provider needs to be populated.
type CloudConfig struct {
	Provider  string          `yaml:"provider" default:"s3"`
	S3        S3Config        `yaml:"s3"`
	AzureBlob AzureBlobConfig `yaml:"azureblob"`
	GCS       GCSConfig       `yaml:"gcs"`
}

type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Region       string `yaml:"region" default:"us-east-1"`
	Bucket       string `yaml:"bucket"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type AzureBlobConfig struct {
	Account       string `yaml:"account"`
	AccountKeyB64 string `yaml:"account_key"`
	Container     string `yaml:"container"`

	// TenantID/ClientID/ClientSecret select AAD client-secret
	// authentication instead of the account key; leave AccountKeyB64 set
	// if presigned URLs are also needed.
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type GCSConfig struct {
	Bucket         string `yaml:"bucket"`
	ServiceAccount string `yaml:"service_account"`
	PrivateKeyPEM  string `yaml:"private_key_pem"`
}

// TransportConfig drives internal/transport's QUIC connection, 0-RTT
// resumption, and migration managers (§4.J).
type TransportConfig struct {
	ALPN             []string      `yaml:"alpn"`
	Enable0RTT       bool          `yaml:"enable_0rtt" default:"true"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" default:"10s"`
	KeepAlivePeriod  time.Duration `yaml:"keep_alive_period" default:"15s"`
	TicketStorePath  string        `yaml:"ticket_store_path"`
	MaxTickets       int           `yaml:"max_tickets" default:"1000"`
	EnableMigration  bool          `yaml:"enable_migration" default:"true"`
}

// ProtocolConfig drives internal/protocol's session state machine (§4.G).
type ProtocolConfig struct {
	ChunkSize      int           `yaml:"chunk_size" default:"262144"`
	SessionTimeout time.Duration `yaml:"session_timeout" default:"5m"`
	ResumeWindow   time.Duration `yaml:"resume_window" default:"24h"`
}

// Load reads a YAML config file, fills in documented defaults for anything
// left zero, and applies the VAULTAIRE_* environment overlay on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	LoadFromEnv(cfg)
	return cfg, nil
}

// Default returns a Config populated entirely with documented defaults,
// suitable as a starting point before a YAML file is unmarshalled on top.
// The boolean defaults are set here rather than in applyDefaults, since a
// YAML false cannot be told apart from an unset field after unmarshalling.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Transport.Enable0RTT = true
	cfg.Transport.EnableMigration = true
	return cfg
}

// applyDefaults fills zero-valued fields with the `default:"..."` values
// documented on each struct above. Unmarshalling a YAML document that is
// silent on a field leaves it at its Go zero value, so this runs after
// yaml.Unmarshal rather than relying on struct literal defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8443
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}

	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 64
	}
	if cfg.Pipeline.IOWorkers == 0 {
		cfg.Pipeline.IOWorkers = 2
	}
	if cfg.Pipeline.CompressionWorkers == 0 {
		cfg.Pipeline.CompressionWorkers = 2
	}
	if cfg.Pipeline.NetworkWorkers == 0 {
		cfg.Pipeline.NetworkWorkers = 2
	}
	if cfg.Pipeline.EncryptionWorkers == 0 {
		cfg.Pipeline.EncryptionWorkers = 1
	}
	if cfg.Pipeline.StorageRoot == "" {
		cfg.Pipeline.StorageRoot = "/var/lib/vaultaire/transfers"
	}

	if len(cfg.Quota.Thresholds) == 0 {
		cfg.Quota.Thresholds = []float64{80, 90, 95}
	}

	if cfg.Cloud.Provider == "" {
		cfg.Cloud.Provider = "s3"
	}
	if cfg.Cloud.S3.Region == "" {
		cfg.Cloud.S3.Region = "us-east-1"
	}

	if len(cfg.Transport.ALPN) == 0 {
		cfg.Transport.ALPN = []string{"vaultaire"}
	}
	if cfg.Transport.HandshakeTimeout == 0 {
		cfg.Transport.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Transport.KeepAlivePeriod == 0 {
		cfg.Transport.KeepAlivePeriod = 15 * time.Second
	}
	if cfg.Transport.MaxTickets == 0 {
		cfg.Transport.MaxTickets = 1000
	}

	if cfg.Protocol.ChunkSize == 0 {
		cfg.Protocol.ChunkSize = 256 << 10
	}
	if cfg.Protocol.SessionTimeout == 0 {
		cfg.Protocol.SessionTimeout = 5 * time.Minute
	}
	if cfg.Protocol.ResumeWindow == 0 {
		cfg.Protocol.ResumeWindow = 24 * time.Hour
	}
}
