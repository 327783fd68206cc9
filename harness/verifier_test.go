package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/oracle"
	"github.com/erpc/tck/resiliency"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle answers Query from a scripted function and counts calls.
type stubOracle struct {
	name        string
	consistency oracle.Consistency
	exposes     []string

	mu    sync.Mutex
	calls int
	fn    func(call int, ref common.EntityRef) (common.Snapshot, error)
}

func (s *stubOracle) Name() string { return s.name }

func (s *stubOracle) Consistency() oracle.Consistency { return s.consistency }

func (s *stubOracle) Exposes(kind common.EntityKind) []string { return s.exposes }

func (s *stubOracle) Query(_ context.Context, ref common.EntityRef) (common.Snapshot, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	return s.fn(n, ref)
}

func (s *stubOracle) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubOracle) Account(ctx context.Context, id common.EntityId) (*common.AccountState, error) {
	snap, err := s.Query(ctx, common.AccountRef(id))
	if err != nil {
		return nil, err
	}
	return snap.(*common.AccountState), nil
}

func (s *stubOracle) Contract(context.Context, common.EntityId) (*common.ContractState, error) {
	return nil, errors.New("not scripted")
}

func (s *stubOracle) Token(context.Context, common.EntityId) (*common.TokenState, error) {
	return nil, errors.New("not scripted")
}

func (s *stubOracle) Topic(context.Context, common.EntityId) (*common.TopicState, error) {
	return nil, errors.New("not scripted")
}

func (s *stubOracle) Schedule(context.Context, common.EntityId) (*common.ScheduleState, error) {
	return nil, errors.New("not scripted")
}

func (s *stubOracle) Node(context.Context, int64) (*common.NodeState, error) {
	return nil, errors.New("not scripted")
}

var accountFields = []string{common.FieldAccountId, common.FieldBalance, common.FieldMemo, common.FieldDeleted}

func fixedAccount(a *common.AccountState) func(int, common.EntityRef) (common.Snapshot, error) {
	return func(int, common.EntityRef) (common.Snapshot, error) {
		c := *a
		return &c, nil
	}
}

func notFound(name string) func(int, common.EntityRef) (common.Snapshot, error) {
	return func(_ int, ref common.EntityRef) (common.Snapshot, error) {
		return nil, common.NewErrEntityNotFound(name, ref, nil)
	}
}

func newStubVerifier(gt, replica *stubOracle, attempts int) *Verifier {
	return NewVerifier(&log.Logger, gt, replica, resiliency.Policy{Attempts: attempts, Interval: time.Millisecond})
}

func TestVerifier_AwaitReplica(t *testing.T) {
	id := common.MustParseEntityId("0.0.1001")
	ref := common.AccountRef(id)
	want := &common.AccountState{AccountId: id, Balance: 100, Memo: "hello"}

	t.Run("ConvergesAfterLag", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: fixedAccount(want)}
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: func(call int, ref common.EntityRef) (common.Snapshot, error) {
			switch {
			case call == 1:
				return nil, common.NewErrEntityNotFound("replica", ref, nil)
			case call == 2:
				return &common.AccountState{AccountId: id, Balance: 0}, nil
			default:
				c := *want
				return &c, nil
			}
		}}
		v := newStubVerifier(gt, replica, 5)

		snap, err := v.Reconcile(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, int64(100), snap.Fields()[common.FieldBalance])
		assert.Equal(t, 1, gt.Calls())
		assert.Equal(t, 3, replica.Calls())
	})

	t.Run("GroundTruthIsConsultedFirst", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: notFound("gt")}
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: fixedAccount(want)}
		v := newStubVerifier(gt, replica, 5)

		_, err := v.Reconcile(context.Background(), ref)
		require.Error(t, err)
		assert.True(t, common.IsNotFound(err))
		assert.Equal(t, 0, replica.Calls(), "replica must not be read without an expectation")
	})

	t.Run("ExhaustionReturnsLastDisagreement", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: fixedAccount(want)}
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: func(call int, _ common.EntityRef) (common.Snapshot, error) {
			return &common.AccountState{AccountId: id, Balance: int64(call), Memo: "hello"}, nil
		}}
		v := newStubVerifier(gt, replica, 3)

		_, err := v.Reconcile(context.Background(), ref)
		require.Error(t, err)
		assert.Equal(t, 3, replica.Calls())

		var dis *ErrOracleDisagreement
		require.True(t, errors.As(err, &dis))
		require.Len(t, dis.Mismatches, 1)
		assert.Equal(t, int64(3), dis.Mismatches[0].Actual)
		assert.Equal(t, ref, dis.Ref)
	})

	t.Run("OnlyFieldsTheReplicaExposesAreCompared", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: fixedAccount(want)}
		replica := &stubOracle{
			name:    "replica",
			exposes: []string{common.FieldAccountId, common.FieldMemo},
			fn:      fixedAccount(&common.AccountState{AccountId: id, Balance: 1, Memo: "hello"}),
		}
		v := newStubVerifier(gt, replica, 1)

		_, err := v.Reconcile(context.Background(), ref)
		require.NoError(t, err)
	})

	t.Run("RejectsGoneExpectation", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: notFound("gt")}
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: notFound("replica")}
		v := newStubVerifier(gt, replica, 1)

		exp, err := v.EstablishGone(context.Background(), ref)
		require.NoError(t, err)
		_, err = v.AwaitReplica(context.Background(), exp)
		assert.True(t, common.IsTransportCode(err, common.JsonRpcErrorLocalValidation))
		_, err = v.AwaitReplica(context.Background(), nil)
		assert.True(t, common.IsTransportCode(err, common.JsonRpcErrorLocalValidation))
	})

	t.Run("ResultExpectationIsNormalized", func(t *testing.T) {
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: fixedAccount(want)}
		v := newStubVerifier(&stubOracle{name: "gt", fn: notFound("gt")}, replica, 1)

		exp := ExpectationFromResult(ref, map[string]interface{}{
			common.FieldBalance: "100",
			common.FieldMemo:    "hello",
		})
		assert.Equal(t, "result", exp.Source())
		assert.Equal(t, []string{common.FieldBalance, common.FieldMemo}, v.ComparableFields(exp))

		_, err := v.AwaitReplica(context.Background(), exp)
		require.NoError(t, err)
	})

	t.Run("CancelledContextStopsPolling", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: fixedAccount(want)}
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: notFound("replica")}
		v := NewVerifier(&log.Logger, gt, replica, resiliency.Policy{Attempts: 1000, Interval: 50 * time.Millisecond})

		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
		defer cancel()
		_, err := v.Reconcile(ctx, ref)
		require.Error(t, err)
		assert.Less(t, replica.Calls(), 1000)
	})
}

func TestVerifier_Gone(t *testing.T) {
	id := common.MustParseEntityId("0.0.1002")
	ref := common.AccountRef(id)

	t.Run("DeletedOnGroundTruthCountsAsGone", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: fixedAccount(&common.AccountState{AccountId: id, Deleted: true})}
		v := newStubVerifier(gt, &stubOracle{name: "replica"}, 1)

		exp, err := v.EstablishGone(context.Background(), ref)
		require.NoError(t, err)
		assert.True(t, exp.Gone())
		assert.Equal(t, "gt", exp.Source())
	})

	t.Run("LiveOnGroundTruthIsStillPresent", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: fixedAccount(&common.AccountState{AccountId: id})}
		v := newStubVerifier(gt, &stubOracle{name: "replica"}, 1)

		_, err := v.EstablishGone(context.Background(), ref)
		require.Error(t, err)
		assert.True(t, common.HasErrorCode(err, ErrCodeStillPresent))
	})

	t.Run("ReplicaEventuallyForgets", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: notFound("gt")}
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: func(call int, ref common.EntityRef) (common.Snapshot, error) {
			if call < 3 {
				return &common.AccountState{AccountId: id}, nil
			}
			return nil, common.NewErrEntityNotFound("replica", ref, nil)
		}}
		v := newStubVerifier(gt, replica, 5)

		exp, err := v.EstablishGone(context.Background(), ref)
		require.NoError(t, err)
		require.NoError(t, v.AwaitReplicaGone(context.Background(), exp))
		assert.Equal(t, 3, replica.Calls())
	})

	t.Run("ReplicaNeverForgets", func(t *testing.T) {
		gt := &stubOracle{name: "gt", exposes: accountFields, fn: notFound("gt")}
		replica := &stubOracle{name: "replica", exposes: accountFields, fn: fixedAccount(&common.AccountState{AccountId: id})}
		v := newStubVerifier(gt, replica, 2)

		exp, err := v.EstablishGone(context.Background(), ref)
		require.NoError(t, err)
		err = v.AwaitReplicaGone(context.Background(), exp)
		assert.True(t, common.HasErrorCode(err, ErrCodeStillPresent))
		assert.Equal(t, 2, replica.Calls())
	})

	t.Run("RejectsPresentExpectation", func(t *testing.T) {
		v := newStubVerifier(&stubOracle{name: "gt"}, &stubOracle{name: "replica"}, 1)
		err := v.AwaitReplicaGone(context.Background(), ExpectationFromResult(ref, nil))
		assert.True(t, common.IsTransportCode(err, common.JsonRpcErrorLocalValidation))
	})
}

func TestVerifier_ReconcileAll(t *testing.T) {
	good := common.MustParseEntityId("0.0.2001")
	bad := common.MustParseEntityId("0.0.2002")
	missing := common.MustParseEntityId("0.0.2003")

	gt := &stubOracle{name: "gt", exposes: accountFields, fn: func(_ int, ref common.EntityRef) (common.Snapshot, error) {
		if ref.Id == missing {
			return nil, common.NewErrEntityNotFound("gt", ref, nil)
		}
		return &common.AccountState{AccountId: ref.Id, Balance: 5}, nil
	}}
	replica := &stubOracle{name: "replica", exposes: accountFields, fn: func(_ int, ref common.EntityRef) (common.Snapshot, error) {
		if ref.Id == bad {
			return &common.AccountState{AccountId: ref.Id, Balance: 6}, nil
		}
		return &common.AccountState{AccountId: ref.Id, Balance: 5}, nil
	}}
	v := newStubVerifier(gt, replica, 2)

	require.NoError(t, v.ReconcileAll(context.Background(), common.AccountRef(good)))

	err := v.ReconcileAll(context.Background(), common.AccountRef(good), common.AccountRef(bad), common.AccountRef(missing))
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)

	var sawMissing, sawDisagreement bool
	for _, e := range merr.Errors {
		var dis *ErrOracleDisagreement
		switch {
		case common.IsNotFound(e):
			sawMissing = true
		case errors.As(e, &dis):
			sawDisagreement = true
			assert.Equal(t, common.AccountRef(bad), dis.Ref)
		}
	}
	assert.True(t, sawMissing)
	assert.True(t, sawDisagreement)
	assert.Contains(t, err.Error(), fmt.Sprint(common.AccountRef(bad)))
}
