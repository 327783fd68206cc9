package common

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) *DefaultOptions {
	return &DefaultOptions{LookupEnv: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

func TestLoadConfig_FailToReadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := LoadConfig(fs, "nonexistent.yaml", envOf(nil))
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestLoadConfig_InvalidYaml(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := afero.TempFile(fs, "", "tck.yaml")
	if err != nil {
		t.Fatal(err)
	}
	cfg.WriteString("invalid yaml")

	_, err = LoadConfig(fs, cfg.Name(), envOf(nil))
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestLoadConfig_ValidYaml(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := afero.TempFile(fs, "", "tck.yaml")
	if err != nil {
		t.Fatal(err)
	}
	cfg.WriteString(`
logLevel: DEBUG
sut:
  endpoint: http://sut.local:8544
  requestTimeout: 2s
  rateLimit:
    maxCount: 10
retry:
  attempts: 5
  interval: 250
readReplica:
  driver: rest
  rest:
    endpoint: https://mirror.local
`)

	c, err := LoadConfig(fs, cfg.Name(), envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, 2*time.Second, c.Sut.RequestTimeout.Duration())
	assert.Equal(t, time.Second, c.Sut.RateLimit.Period.Duration())
	assert.Equal(t, 5, c.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, c.Retry.Interval.Duration())
	assert.Equal(t, "https://mirror.local", c.ReadReplica.Rest.Endpoint)
	assert.Equal(t, DefaultGroundTruthEndpoint, c.GroundTruth.Endpoint)
	assert.Equal(t, DefaultNodeAccountId, c.Network.NodeAccountId)
	assert.Equal(t, "tck", c.Metrics.Job)
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tck.yaml", []byte(`
sut:
  endpoint: ${SUT_URL}
operator:
  accountId: "0.0.5"
  privateKey: from-file
`), 0o600))

	c, err := LoadConfig(fs, "/tck.yaml", envOf(map[string]string{
		"SUT_URL":                      "http://expanded:9000",
		"OPERATOR_ACCOUNT_PRIVATE_KEY": "from-env",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://expanded:9000", c.Sut.Endpoint)
	assert.Equal(t, "0.0.5", c.Operator.AccountId)
	assert.Equal(t, "from-env", c.Operator.PrivateKey, "environment wins for the operator identity")
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := ConfigFromEnv(envOf(nil))
		require.NoError(t, err)
		assert.Equal(t, "INFO", c.LogLevel)
		assert.Equal(t, DefaultSutEndpoint, c.Sut.Endpoint)
		assert.Equal(t, ReadReplicaDriverRest, c.ReadReplica.Driver)
		assert.Equal(t, DefaultMirrorRestEndpoint, c.ReadReplica.Rest.Endpoint)
		assert.Equal(t, DefaultRetryAttempts, c.Retry.Attempts)
		assert.Equal(t, DefaultRetryInterval, c.Retry.Interval.Duration())
		assert.Nil(t, c.Tracing)
	})

	t.Run("ConventionalVariables", func(t *testing.T) {
		c, err := ConfigFromEnv(envOf(map[string]string{
			"JSON_RPC_SERVER_URL":          "http://sut:1",
			"OPERATOR_ACCOUNT_ID":          "0.0.1002",
			"OPERATOR_ACCOUNT_PRIVATE_KEY": "abc",
			"NODE_IP":                      "10.0.0.1:50211",
			"NODE_ACCOUNT_ID":              "0.0.4",
			"MIRROR_NETWORK":               "10.0.0.2:5600",
			"MIRROR_NODE_REST_URL":         "http://mirror:5551",
			"GROUND_TRUTH_URL":             "http://gt:8545",
		}))
		require.NoError(t, err)
		assert.Equal(t, "http://sut:1", c.Sut.Endpoint)
		assert.Equal(t, "0.0.1002", c.Operator.AccountId)
		assert.Equal(t, "10.0.0.1:50211", c.Network.NodeIp)
		assert.Equal(t, "0.0.4", c.Network.NodeAccountId)
		assert.Equal(t, "10.0.0.2:5600", c.Network.MirrorNetworkIp)
		assert.Equal(t, "http://mirror:5551", c.ReadReplica.Rest.Endpoint)
		assert.Equal(t, "http://gt:8545", c.GroundTruth.Endpoint)
	})

	t.Run("DatabaseUriSelectsPostgres", func(t *testing.T) {
		c, err := ConfigFromEnv(envOf(map[string]string{
			"READ_REPLICA_DB_URI": "postgres://mirror@db:5432/mirror_node",
		}))
		require.NoError(t, err)
		assert.Equal(t, ReadReplicaDriverPostgreSQL, c.ReadReplica.Driver)
		assert.Equal(t, int32(1), c.ReadReplica.PostgreSQL.MinConns)
		assert.Equal(t, int32(4), c.ReadReplica.PostgreSQL.MaxConns)
		assert.Equal(t, 5*time.Second, c.ReadReplica.PostgreSQL.QueryTimeout.Duration())
	})

	t.Run("MalformedOperatorId", func(t *testing.T) {
		_, err := ConfigFromEnv(envOf(map[string]string{"OPERATOR_ACCOUNT_ID": "2"}))
		require.Error(t, err)
		assert.True(t, HasErrorCode(err, ErrCodeInvalidConfig))
	})
}

func TestTracingDefaults(t *testing.T) {
	c := &TracingConfig{Enabled: true, Protocol: TracingProtocolGrpc}
	require.NoError(t, c.SetDefaults())
	assert.Equal(t, "localhost:4317", c.Endpoint)
	assert.Equal(t, 1.0, c.SampleRate)
	assert.Equal(t, "tck", c.ServiceName)

	h := &TracingConfig{Enabled: true}
	require.NoError(t, h.SetDefaults())
	assert.Equal(t, TracingProtocolHttp, h.Protocol)
	assert.Equal(t, "localhost:4318", h.Endpoint)
}
