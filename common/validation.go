package common

import (
	"fmt"
	"net/url"
)

func (c *Config) Validate() error {
	if c.Sut != nil {
		if err := validateHttpEndpoint("sut.endpoint", c.Sut.Endpoint); err != nil {
			return err
		}
		if err := c.Sut.RateLimit.Validate("sut.rateLimit"); err != nil {
			return err
		}
	}
	if c.GroundTruth != nil {
		if err := validateHttpEndpoint("groundTruth.endpoint", c.GroundTruth.Endpoint); err != nil {
			return err
		}
	}
	if c.Operator != nil && c.Operator.AccountId != "" {
		if _, err := ParseEntityId(c.Operator.AccountId); err != nil {
			return NewErrInvalidConfig("operator.accountId", err)
		}
	}
	if c.Network != nil && c.Network.NodeAccountId != "" {
		if _, err := ParseEntityId(c.Network.NodeAccountId); err != nil {
			return NewErrInvalidConfig("network.nodeAccountId", err)
		}
	}
	if c.ReadReplica != nil {
		if err := c.ReadReplica.Validate(); err != nil {
			return err
		}
	}
	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return err
		}
	}
	if c.Tracing != nil {
		if err := c.Tracing.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReadReplicaConfig) Validate() error {
	switch r.Driver {
	case ReadReplicaDriverRest:
		if r.Rest == nil {
			return NewErrInvalidConfig("readReplica.rest", fmt.Errorf("required when driver is %q", r.Driver))
		}
		if err := validateHttpEndpoint("readReplica.rest.endpoint", r.Rest.Endpoint); err != nil {
			return err
		}
		return r.Rest.RateLimit.Validate("readReplica.rest.rateLimit")
	case ReadReplicaDriverPostgreSQL:
		if r.PostgreSQL == nil || r.PostgreSQL.ConnectionUri == "" {
			return NewErrInvalidConfig("readReplica.postgresql.connectionUri", fmt.Errorf("required when driver is %q", r.Driver))
		}
		if r.PostgreSQL.MaxConns < r.PostgreSQL.MinConns {
			return NewErrInvalidConfig("readReplica.postgresql.maxConns", fmt.Errorf("must be >= minConns"))
		}
		return nil
	default:
		return NewErrInvalidConfig("readReplica.driver", fmt.Errorf("unsupported driver %q (use %q or %q)", r.Driver, ReadReplicaDriverRest, ReadReplicaDriverPostgreSQL))
	}
}

func (r *RetryPolicyConfig) Validate() error {
	if r.Attempts < 1 {
		return NewErrInvalidConfig("retry.attempts", fmt.Errorf("must be at least 1"))
	}
	if r.Interval < 0 {
		return NewErrInvalidConfig("retry.interval", fmt.Errorf("must not be negative"))
	}
	if r.BackoffMaxDelay > 0 && r.BackoffMaxDelay < r.Interval {
		return NewErrInvalidConfig("retry.backoffMaxDelay", fmt.Errorf("must be >= retry.interval"))
	}
	if r.BackoffFactor < 0 {
		return NewErrInvalidConfig("retry.backoffFactor", fmt.Errorf("must not be negative"))
	}
	return nil
}

func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Protocol != TracingProtocolHttp && c.Protocol != TracingProtocolGrpc {
		return NewErrInvalidConfig("tracing.protocol", fmt.Errorf("unsupported protocol %q", c.Protocol))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return NewErrInvalidConfig("tracing.sampleRate", fmt.Errorf("must be within [0, 1]"))
	}
	return nil
}

func validateHttpEndpoint(field, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return NewErrInvalidConfig(field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewErrInvalidConfig(field, fmt.Errorf("scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		return NewErrInvalidConfig(field, fmt.Errorf("missing host"))
	}
	return nil
}

// Validate accepts a nil receiver, which means no limit.
func (r *RateLimitConfig) Validate(field string) error {
	if r == nil {
		return nil
	}
	if r.MaxCount < 0 {
		return NewErrInvalidConfig(field+".maxCount", fmt.Errorf("must not be negative"))
	}
	if r.Period < 0 || r.WaitTime < 0 {
		return NewErrInvalidConfig(field, fmt.Errorf("durations must not be negative"))
	}
	return nil
}
