package harness

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/keys"
	"github.com/erpc/tck/oracle"
	"github.com/erpc/tck/resiliency"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Expectation is the state an entity is known to be in. It can only be obtained from the
// ground truth or from a successful operation result, which is what keeps the read replica
// from ever being the first oracle consulted.
type Expectation struct {
	ref    common.EntityRef
	fields map[string]interface{}
	source string
	gone   bool
}

func (e *Expectation) Ref() common.EntityRef { return e.ref }

// Source names where the expectation came from.
func (e *Expectation) Source() string { return e.source }

// Gone is true for expectations that the entity no longer exists.
func (e *Expectation) Gone() bool { return e.gone }

func (e *Expectation) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// Verifier runs the dual-oracle protocol: establish against the ground truth, then poll the
// read replica until it agrees.
type Verifier struct {
	logger      *zerolog.Logger
	groundTruth oracle.Oracle
	replica     oracle.Oracle
	policy      resiliency.Policy
}

func NewVerifier(logger *zerolog.Logger, groundTruth oracle.Oracle, replica oracle.Oracle, policy resiliency.Policy) *Verifier {
	lg := logger.With().Str("component", "verifier").Logger()
	return &Verifier{
		logger:      &lg,
		groundTruth: groundTruth,
		replica:     replica,
		policy:      policy,
	}
}

// Establish reads ref from the ground truth. Not-found is returned as is.
func (v *Verifier) Establish(ctx context.Context, ref common.EntityRef) (*Expectation, error) {
	snap, err := v.groundTruth.Query(ctx, ref)
	if err != nil {
		return nil, err
	}
	v.logger.Debug().Str("entity", ref.String()).Msg("expectation established from ground truth")
	return &Expectation{ref: ref, fields: snap.Fields(), source: v.groundTruth.Name()}, nil
}

// EstablishGone confirms with the ground truth that ref no longer exists (or is marked deleted).
func (v *Verifier) EstablishGone(ctx context.Context, ref common.EntityRef) (*Expectation, error) {
	snap, err := v.groundTruth.Query(ctx, ref)
	if err != nil {
		if common.IsNotFound(err) {
			return &Expectation{ref: ref, source: v.groundTruth.Name(), gone: true}, nil
		}
		return nil, err
	}
	if isDeleted(snap) {
		return &Expectation{ref: ref, source: v.groundTruth.Name(), gone: true}, nil
	}
	return nil, NewErrStillPresent(ref, v.groundTruth.Name())
}

// ExpectationFromResult builds an expectation from values the caller knows were applied by
// a successful operation, e.g. the params of an update.
func ExpectationFromResult(ref common.EntityRef, fields map[string]interface{}) *Expectation {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = normalizeExpectedValue(k, v)
	}
	return &Expectation{ref: ref, fields: out, source: "result"}
}

// ComparableFields lists the expected fields the replica can report.
func (v *Verifier) ComparableFields(exp *Expectation) []string {
	var out []string
	for _, f := range v.replica.Exposes(exp.ref.Kind) {
		if _, ok := exp.fields[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// AwaitReplica polls the read replica until it agrees with exp on every comparable field.
// On exhaustion the error of the last poll is returned unchanged.
func (v *Verifier) AwaitReplica(ctx context.Context, exp *Expectation, opts ...resiliency.Option) (common.Snapshot, error) {
	if exp == nil || exp.gone {
		return nil, common.NewErrTransportFailure(common.JsonRpcErrorLocalValidation, "AwaitReplica needs an expectation of a present entity", nil, nil)
	}
	fields := v.ComparableFields(exp)

	var (
		mu   sync.Mutex
		last common.Snapshot
	)
	err := resiliency.Retry(ctx, func(ctx context.Context) error {
		snap, err := v.replica.Query(ctx, exp.ref)
		if err != nil {
			return err
		}
		if mm := diffFields(exp.fields, snap.Fields(), fields); len(mm) > 0 {
			return NewErrOracleDisagreement(exp.ref, v.replica.Name(), mm)
		}
		mu.Lock()
		last = snap
		mu.Unlock()
		return nil
	}, v.retryOptions(exp.ref, opts)...)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return last, nil
}

// AwaitReplicaGone polls until the replica reports ref as missing or deleted.
func (v *Verifier) AwaitReplicaGone(ctx context.Context, exp *Expectation, opts ...resiliency.Option) error {
	if exp == nil || !exp.gone {
		return common.NewErrTransportFailure(common.JsonRpcErrorLocalValidation, "AwaitReplicaGone needs an expectation of a gone entity", nil, nil)
	}
	return resiliency.Retry(ctx, func(ctx context.Context) error {
		snap, err := v.replica.Query(ctx, exp.ref)
		if err != nil {
			if common.IsNotFound(err) {
				return nil
			}
			return err
		}
		if isDeleted(snap) {
			return nil
		}
		return NewErrStillPresent(exp.ref, v.replica.Name())
	}, v.retryOptions(exp.ref, opts)...)
}

// Reconcile is Establish followed by AwaitReplica.
func (v *Verifier) Reconcile(ctx context.Context, ref common.EntityRef, opts ...resiliency.Option) (common.Snapshot, error) {
	exp, err := v.Establish(ctx, ref)
	if err != nil {
		return nil, err
	}
	return v.AwaitReplica(ctx, exp, opts...)
}

// ReconcileAll reconciles refs concurrently and reports every failure.
func (v *Verifier) ReconcileAll(ctx context.Context, refs ...common.EntityRef) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if _, err := v.Reconcile(gctx, ref); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s: %w", ref, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return result.ErrorOrNil()
}

func (v *Verifier) retryOptions(ref common.EntityRef, extra []resiliency.Option) []resiliency.Option {
	opts := []resiliency.Option{
		resiliency.WithPolicy(v.policy),
		resiliency.WithLogger(v.logger),
		resiliency.WithName(ref.String()),
	}
	return append(opts, extra...)
}

func isDeleted(snap common.Snapshot) bool {
	d, ok := snap.Fields()[common.FieldDeleted].(bool)
	return ok && d
}

func normalizeKeyString(s string) string {
	n, err := keys.NormalizePublicKey(s)
	if err != nil {
		return normalizeHexString(s)
	}
	return n
}

func normalizeHexString(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}
