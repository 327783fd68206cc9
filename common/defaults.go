package common

import (
	"time"

	"github.com/erpc/tck/util"
)

const (
	DefaultSutEndpoint         = "http://localhost:8544"
	DefaultGroundTruthEndpoint = "http://localhost:8545"
	DefaultMirrorRestEndpoint  = "http://localhost:5551"
	DefaultNodeIp              = "127.0.0.1:50211"
	DefaultNodeAccountId       = "0.0.3"
	DefaultMirrorNetworkIp     = "127.0.0.1:5600"

	DefaultRetryAttempts = 20
	DefaultRetryInterval = 1 * time.Second
)

func (c *Config) SetDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Sut == nil {
		c.Sut = &SutConfig{}
	}
	if err := c.Sut.SetDefaults(); err != nil {
		return err
	}
	if c.Network == nil {
		c.Network = &NetworkConfig{}
	}
	if err := c.Network.SetDefaults(); err != nil {
		return err
	}
	if c.Operator == nil {
		c.Operator = &OperatorConfig{}
	}
	if c.GroundTruth == nil {
		c.GroundTruth = &GroundTruthConfig{}
	}
	if err := c.GroundTruth.SetDefaults(); err != nil {
		return err
	}
	if c.ReadReplica == nil {
		c.ReadReplica = &ReadReplicaConfig{}
	}
	if err := c.ReadReplica.SetDefaults(); err != nil {
		return err
	}
	if c.Retry == nil {
		c.Retry = &RetryPolicyConfig{}
	}
	if err := c.Retry.SetDefaults(); err != nil {
		return err
	}
	if c.Tracing != nil {
		if err := c.Tracing.SetDefaults(); err != nil {
			return err
		}
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "tck"
	}

	return nil
}

func (s *SutConfig) SetDefaults() error {
	if s.Endpoint == "" {
		s.Endpoint = DefaultSutEndpoint
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = Duration(60 * time.Second)
	}
	if s.EnableGzip == nil {
		s.EnableGzip = util.BoolPtr(false)
	}
	if s.RateLimit != nil {
		s.RateLimit.SetDefaults()
	}
	return nil
}

func (n *NetworkConfig) SetDefaults() error {
	if n.NodeIp == "" {
		n.NodeIp = DefaultNodeIp
	}
	if n.NodeAccountId == "" {
		n.NodeAccountId = DefaultNodeAccountId
	}
	if n.MirrorNetworkIp == "" {
		n.MirrorNetworkIp = DefaultMirrorNetworkIp
	}
	return nil
}

func (g *GroundTruthConfig) SetDefaults() error {
	if g.Endpoint == "" {
		g.Endpoint = DefaultGroundTruthEndpoint
	}
	if g.RequestTimeout == 0 {
		g.RequestTimeout = Duration(15 * time.Second)
	}
	return nil
}

func (r *ReadReplicaConfig) SetDefaults() error {
	if r.Driver == "" {
		r.Driver = ReadReplicaDriverRest
	}
	switch r.Driver {
	case ReadReplicaDriverRest:
		if r.Rest == nil {
			r.Rest = &RestReadReplicaConfig{}
		}
		if r.Rest.Endpoint == "" {
			r.Rest.Endpoint = DefaultMirrorRestEndpoint
		}
		if r.Rest.RequestTimeout == 0 {
			r.Rest.RequestTimeout = Duration(10 * time.Second)
		}
		if r.Rest.RateLimit != nil {
			r.Rest.RateLimit.SetDefaults()
		}
	case ReadReplicaDriverPostgreSQL:
		if r.PostgreSQL == nil {
			r.PostgreSQL = &PostgreSQLReadReplicaConfig{}
		}
		if r.PostgreSQL.MinConns == 0 {
			r.PostgreSQL.MinConns = 1
		}
		if r.PostgreSQL.MaxConns == 0 {
			r.PostgreSQL.MaxConns = 4
		}
		if r.PostgreSQL.InitTimeout == 0 {
			r.PostgreSQL.InitTimeout = Duration(5 * time.Second)
		}
		if r.PostgreSQL.QueryTimeout == 0 {
			r.PostgreSQL.QueryTimeout = Duration(5 * time.Second)
		}
	}
	return nil
}

func (r *RetryPolicyConfig) SetDefaults() error {
	if r.Attempts == 0 {
		r.Attempts = DefaultRetryAttempts
	}
	if r.Interval == 0 {
		r.Interval = Duration(DefaultRetryInterval)
	}
	return nil
}

func (c *TracingConfig) SetDefaults() error {
	if c.Protocol == "" {
		c.Protocol = TracingProtocolHttp
	}
	if c.Endpoint == "" {
		if c.Protocol == TracingProtocolGrpc {
			c.Endpoint = "localhost:4317"
		} else {
			c.Endpoint = "localhost:4318"
		}
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.ServiceName == "" {
		c.ServiceName = "tck"
	}
	return nil
}

func (r *RateLimitConfig) SetDefaults() {
	if r.Period == 0 {
		r.Period = Duration(time.Second)
	}
}
