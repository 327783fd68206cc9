package harness

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/erpc/tck/clients"
	"github.com/erpc/tck/common"
	"github.com/erpc/tck/control"
	"github.com/erpc/tck/keys"
	"github.com/erpc/tck/oracle"
	"github.com/erpc/tck/resiliency"
	"github.com/erpc/tck/session"
	"github.com/rs/zerolog"
)

const closeTimeout = 10 * time.Second

// Harness wires the control client, session manager and both oracles for one run.
// The read replica is reachable only through Verifier.
type Harness struct {
	Config      *common.Config
	Logger      *zerolog.Logger
	Control     *control.Client
	Sessions    *session.Manager
	GroundTruth *oracle.GroundTruth
	Verifier    *Verifier
	RetryPolicy resiliency.Policy

	operator     keys.Identity
	operatorErr  error
	closeReplica func()
	closeOnce    sync.Once
}

func New(ctx context.Context, logger *zerolog.Logger, cfg *common.Config) (*Harness, error) {
	lg := logger.With().Str("component", "harness").Logger()

	sut, err := clients.NewGenericHttpJsonRpcClient(&lg, "sut", cfg.Sut.Endpoint, &clients.HttpClientConfig{
		Timeout:    cfg.Sut.RequestTimeout.Duration(),
		Headers:    cfg.Sut.Headers,
		EnableGzip: cfg.Sut.EnableGzip != nil && *cfg.Sut.EnableGzip,
		RateLimit:  cfg.Sut.RateLimit,
	})
	if err != nil {
		return nil, err
	}

	gt, err := oracle.NewGroundTruthFromConfig(&lg, cfg.GroundTruth)
	if err != nil {
		return nil, err
	}
	replica, closeReplica, err := oracle.NewReadReplica(ctx, &lg, cfg.ReadReplica)
	if err != nil {
		return nil, err
	}

	policy := resiliency.PolicyFromConfig(cfg.Retry)
	if err := policy.Validate(); err != nil {
		closeReplica()
		return nil, err
	}

	h := &Harness{
		Config:       cfg,
		Logger:       &lg,
		Control:      control.NewClient(&lg, sut),
		Sessions:     session.NewManager(&lg, sut, cfg.Network),
		GroundTruth:  gt,
		Verifier:     NewVerifier(&lg, gt, replica, policy),
		RetryPolicy:  policy,
		closeReplica: closeReplica,
	}
	h.operator, h.operatorErr = keys.NewIdentity(cfg.Operator.AccountId, cfg.Operator.PrivateKey)
	if h.operatorErr != nil {
		lg.Warn().Err(h.operatorErr).Str("operator", cfg.Operator.AccountId).Msg("default operator is unusable; sessions must be opened with an explicit identity")
	}
	lg.Info().Object("config", cfg).Str("readReplica", replica.Name()).Msg("harness ready")
	return h, nil
}

// DefaultOperator is the configured operator identity.
func (h *Harness) DefaultOperator() (keys.Identity, error) {
	if h.operatorErr != nil {
		return keys.Identity{}, common.NewErrTransportFailure(common.JsonRpcErrorLocalValidation, "default operator is not configured", h.operatorErr, nil)
	}
	return h.operator, nil
}

// Open starts a session for the default operator.
func (h *Harness) Open(ctx context.Context) (*session.Session, error) {
	op, err := h.DefaultOperator()
	if err != nil {
		return nil, err
	}
	return h.Sessions.Open(ctx, op)
}

// Setup opens a session for a test and closes it when the test ends.
func (h *Harness) Setup(t testing.TB) *session.Session {
	t.Helper()
	sess, err := h.Open(context.Background())
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		h.Sessions.Close(ctx, sess)
	})
	return sess
}

func (h *Harness) Send(ctx context.Context, sess *session.Session, method string, params map[string]interface{}, opts ...control.CallOption) (*control.Result, error) {
	return h.Control.Send(ctx, sess, method, params, opts...)
}

// MintIdentity creates a fresh account controlled by a newly generated ED25519 key, funded
// by the session operator.
func (h *Harness) MintIdentity(ctx context.Context, sess *session.Session, initialBalance int64) (keys.Identity, error) {
	pk, err := keys.GeneratePrivateKey(keys.KeyTypeEd25519)
	if err != nil {
		return keys.Identity{}, err
	}
	res, err := h.Send(ctx, sess, "createAccount", map[string]interface{}{
		"key":            pk.PublicKey().StringDer(),
		"initialBalance": strconv.FormatInt(initialBalance, 10),
	})
	if err != nil {
		return keys.Identity{}, err
	}
	id, ok := res.CreatedEntityId()
	if !ok {
		return keys.Identity{}, common.NewErrTransportFailure(
			common.JsonRpcErrorMalformedResponse,
			fmt.Sprintf("createAccount returned no account id (status %q)", res.Status()),
			nil,
			nil,
		)
	}
	h.Logger.Debug().Str("accountId", id.String()).Int64("initialBalance", initialBalance).Msg("minted identity")
	return keys.Identity{AccountId: id, PrivateKey: pk}, nil
}

// Close releases the active session and the replica connections. It is safe to call twice.
func (h *Harness) Close() {
	h.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if sess := h.Sessions.Active(); sess != nil {
			h.Sessions.Close(ctx, sess)
		}
		h.closeReplica()
	})
}
