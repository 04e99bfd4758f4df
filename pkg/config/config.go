package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Blockchain  BlockchainConfig  `yaml:"blockchain"`
	Security    SecurityConfig    `yaml:"security"`
	Logging     LoggingConfig     `yaml:"logging"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Arbitrage   ArbitrageConfig   `yaml:"arbitrage"`
	Router      RouterConfig      `yaml:"router"`
	MEV         MEVConfig         `yaml:"mev"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	Environment    string        `yaml:"environment"`
	Timeout        time.Duration `yaml:"timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// RedisConfig represents the Redis configuration. Redis backs the
// coordinator's durable KV/lock/limiter/counter substrate.
type RedisConfig struct {
	Addresses              []string      `yaml:"addresses"`
	Host                   string        `yaml:"host"`
	Port                   int           `yaml:"port"`
	Password               string        `yaml:"password"`
	DB                     int           `yaml:"db"`
	PoolSize               int           `yaml:"pool_size"`
	MinIdleConns           int           `yaml:"min_idle_conns"`
	DialTimeout            time.Duration `yaml:"dial_timeout"`
	ReadTimeout            time.Duration `yaml:"read_timeout"`
	WriteTimeout           time.Duration `yaml:"write_timeout"`
	PoolTimeout            time.Duration `yaml:"pool_timeout"`
	IdleTimeout            time.Duration `yaml:"idle_timeout"`
	IdleCheckFrequency     time.Duration `yaml:"idle_check_frequency"`
	MaxRetries             int           `yaml:"max_retries"`
	MinRetryBackoff        time.Duration `yaml:"min_retry_backoff"`
	MaxRetryBackoff        time.Duration `yaml:"max_retry_backoff"`
	EnableCluster          bool          `yaml:"enable_cluster"`
	RouteByLatency         bool          `yaml:"route_by_latency"`
	RouteRandomly          bool          `yaml:"route_randomly"`
	EnableReadFromReplicas bool          `yaml:"enable_read_from_replicas"`
}

// BlockchainConfig represents the blockchain configuration. EVM chains only.
type BlockchainConfig struct {
	Ethereum BlockchainNetworkConfig `yaml:"ethereum"`
	BSC      BlockchainNetworkConfig `yaml:"bsc"`
	Polygon  BlockchainNetworkConfig `yaml:"polygon"`
	Arbitrum BlockchainNetworkConfig `yaml:"arbitrum"`
}

// BlockchainNetworkConfig represents the configuration for a blockchain network
type BlockchainNetworkConfig struct {
	Network            string `yaml:"network"`
	RPCURL             string `yaml:"rpc_url"`
	WSURL              string `yaml:"ws_url"`
	ChainID            int    `yaml:"chain_id"`
	GasLimit           uint64 `yaml:"gas_limit"`
	GasPrice           string `yaml:"gas_price"`
	ConfirmationBlocks int    `yaml:"confirmation_blocks"`
}

// SecurityConfig represents the security configuration
type SecurityConfig struct {
	Encryption EncryptionConfig `yaml:"encryption"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Webhook    WebhookConfig    `yaml:"webhook"`
}

// EncryptionConfig represents the encryption configuration for the
// executor's signing-key material.
type EncryptionConfig struct {
	KeyDerivation string `yaml:"key_derivation"`
	Iterations    int    `yaml:"iterations"`
	SaltLength    int    `yaml:"salt_length"`
	KeyLength     int    `yaml:"key_length"`
}

// RateLimitConfig represents the local token-bucket pacing applied in front
// of outbound RPC calls (relay calls are not paced), ahead of the
// coordinator's distributed limiter.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// WebhookConfig represents inbound webhook signature verification.
type WebhookConfig struct {
	SigningSecret string        `yaml:"signing_secret"`
	ToleranceSkew time.Duration `yaml:"tolerance_skew"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// MonitoringConfig represents the monitoring configuration
type MonitoringConfig struct {
	Prometheus  PrometheusConfig  `yaml:"prometheus"`
	HealthCheck HealthCheckConfig `yaml:"health_check"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// PrometheusConfig represents the Prometheus configuration
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// HealthCheckConfig represents the health check configuration
type HealthCheckConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// MetricsConfig represents the metrics configuration
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// KafkaConfig represents the event-stream configuration feeding discovery
// and publishing detected opportunities downstream.
type KafkaConfig struct {
	Brokers          []string      `yaml:"brokers"`
	PoolUpdateTopic  string        `yaml:"pool_update_topic"`
	OpportunityTopic string        `yaml:"opportunity_topic"`
	ConsumerGroup    string        `yaml:"consumer_group"`
	MinBytes         int           `yaml:"min_bytes"`
	MaxBytes         int           `yaml:"max_bytes"`
	CommitInterval   time.Duration `yaml:"commit_interval"`
}

// ArbitrageConfig carries discovery (C1) tuning: candidate generation scope
// and the profit floor below which a candidate is never surfaced.
type ArbitrageConfig struct {
	EnabledChains     []string `yaml:"enabled_chains"`
	EnabledDexes      []string `yaml:"enabled_dexes"`
	MinProfitFloorUSD string   `yaml:"min_profit_floor_usd"`
	MaxLegsTriangular int      `yaml:"max_legs_triangular"`
	CandidateBuffer   int      `yaml:"candidate_buffer"`
}

// RouterConfig carries router/simulator (C2) tuning.
type RouterConfig struct {
	MaxRoutesPerOpportunity int           `yaml:"max_routes_per_opportunity"`
	MaxSlippageBps          int           `yaml:"max_slippage_bps"`
	SimulationTimeout       time.Duration `yaml:"simulation_timeout"`
	BeamWidth               int           `yaml:"beam_width"`
	GasEstimateMarkupPct    float64       `yaml:"gas_estimate_markup_pct"`
}

// MEVConfig carries MEV controller (C3) tuning: threat thresholds and the
// gas-competitiveness gate factor applied ahead of relay selection.
type MEVConfig struct {
	GateFactor              float64       `yaml:"gate_factor"`
	SandwichDetectionWindow time.Duration `yaml:"sandwich_detection_window"`
	FrontrunThresholdBps    int           `yaml:"frontrun_threshold_bps"`
	PrivateRelayURLs        []string      `yaml:"private_relay_urls"`
	ForcePrivateAboveUSD    string        `yaml:"force_private_above_usd"`
}

// ExecutorConfig carries executor (C4) tuning: submission pacing and
// confirmation/reconciliation behavior.
type ExecutorConfig struct {
	MaxInFlightPerChain   int           `yaml:"max_in_flight_per_chain"`
	ConfirmationBlocks    int           `yaml:"confirmation_blocks"`
	ConfirmationTimeout   time.Duration `yaml:"confirmation_timeout"`
	ReplacementGasBumpPct float64       `yaml:"replacement_gas_bump_pct"`
	MaxReplacements       int           `yaml:"max_replacements"`
}

// CoordinatorConfig carries edge coordinator (C5) tuning: lock TTLs, rate
// window sizes, and the in-process LRU sizing fronting the Redis KV tier.
type CoordinatorConfig struct {
	LockTTL           time.Duration `yaml:"lock_ttl"`
	RateWindow        time.Duration `yaml:"rate_window"`
	LRUSize           int           `yaml:"lru_size"`
	WorkflowRetention time.Duration `yaml:"workflow_retention"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Load loads the configuration from a file (alias for LoadConfig)
func Load(configPath string) (*Config, error) {
	return LoadConfig(configPath)
}
