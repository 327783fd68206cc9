package common

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of a harness run.
type Config struct {
	LogLevel    string             `yaml:"logLevel" json:"logLevel"`
	Sut         *SutConfig         `yaml:"sut" json:"sut"`
	Network     *NetworkConfig     `yaml:"network" json:"network"`
	Operator    *OperatorConfig    `yaml:"operator" json:"operator"`
	GroundTruth *GroundTruthConfig `yaml:"groundTruth" json:"groundTruth"`
	ReadReplica *ReadReplicaConfig `yaml:"readReplica" json:"readReplica"`
	Retry       *RetryPolicyConfig `yaml:"retry" json:"retry"`
	Tracing     *TracingConfig     `yaml:"tracing" json:"tracing"`
	Metrics     *MetricsConfig     `yaml:"metrics" json:"metrics"`
}

// SutConfig points at the control-protocol endpoint of the implementation under test.
type SutConfig struct {
	Endpoint       string            `yaml:"endpoint" json:"endpoint"`
	RequestTimeout Duration          `yaml:"requestTimeout" json:"requestTimeout"`
	Headers        map[string]string `yaml:"headers" json:"headers"`
	EnableGzip     *bool             `yaml:"enableGzip" json:"enableGzip"`
	RateLimit      *RateLimitConfig  `yaml:"rateLimit" json:"rateLimit"`
}

// RateLimitConfig caps requests to MaxCount per Period. Callers wait up to WaitTime for a permit.
type RateLimitConfig struct {
	MaxCount int      `yaml:"maxCount" json:"maxCount"`
	Period   Duration `yaml:"period" json:"period"`
	WaitTime Duration `yaml:"waitTime" json:"waitTime"`
}

// NetworkConfig is forwarded to the SUT on setup so it knows which network to drive.
type NetworkConfig struct {
	NodeIp          string `yaml:"nodeIp" json:"nodeIp"`
	NodeAccountId   string `yaml:"nodeAccountId" json:"nodeAccountId"`
	MirrorNetworkIp string `yaml:"mirrorNetworkIp" json:"mirrorNetworkIp"`
}

type OperatorConfig struct {
	AccountId  string `yaml:"accountId" json:"accountId"`
	PrivateKey string `yaml:"privateKey" json:"-"`
}

func (o *OperatorConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("accountId", o.AccountId).Bool("hasPrivateKey", o.PrivateKey != "")
}

type GroundTruthConfig struct {
	Endpoint       string            `yaml:"endpoint" json:"endpoint"`
	RequestTimeout Duration          `yaml:"requestTimeout" json:"requestTimeout"`
	Headers        map[string]string `yaml:"headers" json:"headers"`
}

const (
	ReadReplicaDriverRest       = "rest"
	ReadReplicaDriverPostgreSQL = "postgresql"
)

type ReadReplicaConfig struct {
	Driver     string                       `yaml:"driver" json:"driver"`
	Rest       *RestReadReplicaConfig       `yaml:"rest" json:"rest"`
	PostgreSQL *PostgreSQLReadReplicaConfig `yaml:"postgresql" json:"postgresql"`
}

type RestReadReplicaConfig struct {
	Endpoint       string            `yaml:"endpoint" json:"endpoint"`
	RequestTimeout Duration          `yaml:"requestTimeout" json:"requestTimeout"`
	Headers        map[string]string `yaml:"headers" json:"headers"`
	RateLimit      *RateLimitConfig  `yaml:"rateLimit" json:"rateLimit"`
}

type PostgreSQLReadReplicaConfig struct {
	ConnectionUri string   `yaml:"connectionUri" json:"-"`
	MinConns      int32    `yaml:"minConns" json:"minConns"`
	MaxConns      int32    `yaml:"maxConns" json:"maxConns"`
	InitTimeout   Duration `yaml:"initTimeout" json:"initTimeout"`
	QueryTimeout  Duration `yaml:"queryTimeout" json:"queryTimeout"`
}

// RetryPolicyConfig bounds how long the harness waits for the read replica to catch up.
type RetryPolicyConfig struct {
	Attempts        int      `yaml:"attempts" json:"attempts"`
	Interval        Duration `yaml:"interval" json:"interval"`
	BackoffMaxDelay Duration `yaml:"backoffMaxDelay" json:"backoffMaxDelay"`
	BackoffFactor   float32  `yaml:"backoffFactor" json:"backoffFactor"`
	Jitter          Duration `yaml:"jitter" json:"jitter"`
}

type TracingProtocol string

const (
	TracingProtocolHttp TracingProtocol = "http"
	TracingProtocolGrpc TracingProtocol = "grpc"
)

type TracingConfig struct {
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Endpoint    string            `yaml:"endpoint" json:"endpoint"`
	Protocol    TracingProtocol   `yaml:"protocol" json:"protocol"`
	ServiceName string            `yaml:"serviceName" json:"serviceName"`
	SampleRate  float64           `yaml:"sampleRate" json:"sampleRate"`
	Insecure    bool              `yaml:"insecure" json:"insecure"`
	Headers     map[string]string `yaml:"headers" json:"headers"`
}

type MetricsConfig struct {
	PushGateway string `yaml:"pushGateway" json:"pushGateway"`
	Job         string `yaml:"job" json:"job"`
}

// DefaultOptions is used to pass env-provided options to the config defaults initializer
type DefaultOptions struct {
	LookupEnv func(key string) (string, bool)
}

func (o *DefaultOptions) lookup(key string) (string, bool) {
	if o == nil || o.LookupEnv == nil {
		return os.LookupEnv(key)
	}
	return o.LookupEnv(key)
}

// LoadConfig loads the configuration from the specified file, overlays the conventional
// environment variables, applies defaults and validates the result.
func LoadConfig(fs afero.Fs, filename string, opts *DefaultOptions) (*Config, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.Expand(string(data), func(key string) string {
		v, _ := opts.lookup(key)
		return v
	}))

	var cfg Config
	if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
		return nil, err
	}

	return finalizeConfig(&cfg, opts)
}

// ConfigFromEnv builds a configuration purely from environment variables.
func ConfigFromEnv(opts *DefaultOptions) (*Config, error) {
	return finalizeConfig(&Config{}, opts)
}

func finalizeConfig(cfg *Config, opts *DefaultOptions) (*Config, error) {
	cfg.ApplyEnv(opts)
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays the conventional environment variables. The operator identity always
// comes from the environment when present so secrets need not live in config files.
func (c *Config) ApplyEnv(opts *DefaultOptions) {
	set := func(key string, dst *string) {
		if v, ok := opts.lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if c.Sut == nil {
		c.Sut = &SutConfig{}
	}
	if c.Network == nil {
		c.Network = &NetworkConfig{}
	}
	if c.Operator == nil {
		c.Operator = &OperatorConfig{}
	}
	if c.GroundTruth == nil {
		c.GroundTruth = &GroundTruthConfig{}
	}
	if c.ReadReplica == nil {
		c.ReadReplica = &ReadReplicaConfig{}
	}

	set("LOG_LEVEL", &c.LogLevel)
	set("JSON_RPC_SERVER_URL", &c.Sut.Endpoint)
	set("OPERATOR_ACCOUNT_ID", &c.Operator.AccountId)
	set("OPERATOR_ACCOUNT_PRIVATE_KEY", &c.Operator.PrivateKey)
	set("NODE_IP", &c.Network.NodeIp)
	set("NODE_ACCOUNT_ID", &c.Network.NodeAccountId)
	set("MIRROR_NETWORK", &c.Network.MirrorNetworkIp)
	set("GROUND_TRUTH_URL", &c.GroundTruth.Endpoint)

	if v, ok := opts.lookup("MIRROR_NODE_REST_URL"); ok && v != "" {
		if c.ReadReplica.Rest == nil {
			c.ReadReplica.Rest = &RestReadReplicaConfig{}
		}
		c.ReadReplica.Rest.Endpoint = v
	}
	if v, ok := opts.lookup("READ_REPLICA_DB_URI"); ok && v != "" {
		if c.ReadReplica.PostgreSQL == nil {
			c.ReadReplica.PostgreSQL = &PostgreSQLReadReplicaConfig{}
		}
		c.ReadReplica.PostgreSQL.ConnectionUri = v
		if c.ReadReplica.Driver == "" {
			c.ReadReplica.Driver = ReadReplicaDriverPostgreSQL
		}
	}
}

func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("logLevel", c.LogLevel)
	if c.Sut != nil {
		e.Str("sut", c.Sut.Endpoint)
	}
	if c.GroundTruth != nil {
		e.Str("groundTruth", c.GroundTruth.Endpoint)
	}
	if c.ReadReplica != nil {
		e.Str("readReplicaDriver", c.ReadReplica.Driver)
	}
	if c.Operator != nil {
		e.Object("operator", c.Operator)
	}
}
