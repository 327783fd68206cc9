package oracle

import (
	"context"
	"fmt"

	"github.com/erpc/tck/clients"
	"github.com/erpc/tck/common"
	"github.com/rs/zerolog"
)

// NewGroundTruthFromConfig builds the ground-truth oracle and its JSON-RPC transport.
func NewGroundTruthFromConfig(logger *zerolog.Logger, cfg *common.GroundTruthConfig) (*GroundTruth, error) {
	rpc, err := clients.NewGenericHttpJsonRpcClient(logger, GroundTruthName, cfg.Endpoint, &clients.HttpClientConfig{
		Timeout: cfg.RequestTimeout.Duration(),
		Headers: cfg.Headers,
	})
	if err != nil {
		return nil, err
	}
	return NewGroundTruth(logger, rpc), nil
}

// NewReadReplica picks the read-replica oracle named by cfg.Driver. The returned close
// function releases any pooled connections and is never nil.
func NewReadReplica(ctx context.Context, logger *zerolog.Logger, cfg *common.ReadReplicaConfig) (Oracle, func(), error) {
	switch cfg.Driver {
	case common.ReadReplicaDriverRest, "":
		if cfg.Rest == nil {
			return nil, nil, common.NewErrInvalidConfig("readReplica.rest", fmt.Errorf("rest driver selected without an endpoint"))
		}
		rest, err := clients.NewGenericHttpRestClient(logger, MirrorRestName, cfg.Rest.Endpoint, &clients.HttpClientConfig{
			Timeout:   cfg.Rest.RequestTimeout.Duration(),
			Headers:   cfg.Rest.Headers,
			RateLimit: cfg.Rest.RateLimit,
		})
		if err != nil {
			return nil, nil, err
		}
		return NewMirrorRest(logger, rest), func() {}, nil
	case common.ReadReplicaDriverPostgreSQL:
		pg, err := NewPostgresReadReplica(ctx, logger, cfg.PostgreSQL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return nil, nil, common.NewErrInvalidConfig("readReplica.driver", fmt.Errorf("unsupported driver %q", cfg.Driver))
}
