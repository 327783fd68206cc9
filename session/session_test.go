package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/keys"
	"github.com/erpc/tck/telemetry"
	"github.com/erpc/tck/util"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	util.ConfigureTestLogger()
}

type recordedCall struct {
	method string
	params map[string]interface{}
}

type fakeRpc struct {
	mu    sync.Mutex
	calls []recordedCall
	errs  map[string]error
}

func (f *fakeRpc) Call(ctx context.Context, method string, params interface{}) (*common.JsonRpcResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, _ := params.(map[string]interface{})
	f.calls = append(f.calls, recordedCall{method: method, params: p})
	if err := f.errs[method]; err != nil {
		return nil, err
	}
	return &common.JsonRpcResponse{Result: []byte(`{"status":"SUCCESS"}`)}, nil
}

func (f *fakeRpc) callsTo(method string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newIdentity(t *testing.T, account string) keys.Identity {
	t.Helper()
	pk, err := keys.GeneratePrivateKey(keys.KeyTypeEd25519)
	require.NoError(t, err)
	return keys.Identity{AccountId: common.MustParseEntityId(account), PrivateKey: pk}
}

func TestManager_Open(t *testing.T) {
	logger := log.Logger
	ctx := context.Background()

	t.Run("SendsSetupWithOperatorAndNetwork", func(t *testing.T) {
		rpc := &fakeRpc{}
		m := NewManager(&logger, rpc, &common.NetworkConfig{NodeIp: "127.0.0.1:50211", NodeAccountId: "0.0.3", MirrorNetworkIp: "127.0.0.1:5600"})
		op := newIdentity(t, "0.0.2")

		sess, err := m.Open(ctx, op)
		require.NoError(t, err)
		assert.True(t, sess.IsOpen())
		assert.NotEmpty(t, sess.Id())
		assert.Same(t, sess, m.Active())
		assert.Equal(t, op.AccountId, sess.Operator().AccountId)

		setups := rpc.callsTo(MethodSetup)
		require.Len(t, setups, 1)
		assert.Equal(t, sess.Id(), setups[0].params["sessionId"])
		assert.Equal(t, "0.0.2", setups[0].params["operatorAccountId"])
		assert.Equal(t, op.PrivateKey.StringDer(), setups[0].params["operatorPrivateKey"])
		assert.Equal(t, "0.0.3", setups[0].params["nodeAccountId"])
		assert.Equal(t, "127.0.0.1:5600", setups[0].params["mirrorNetworkIp"])
	})

	t.Run("InvalidIdentityIsRejectedLocally", func(t *testing.T) {
		rpc := &fakeRpc{}
		m := NewManager(&logger, rpc, nil)

		_, err := m.Open(ctx, keys.Identity{})
		require.Error(t, err)
		assert.True(t, common.IsTransportCode(err, common.JsonRpcErrorLocalValidation))
		assert.Empty(t, rpc.callsTo(MethodSetup))
	})

	t.Run("SetupFailureKeepsPreviousSession", func(t *testing.T) {
		rpc := &fakeRpc{}
		m := NewManager(&logger, rpc, nil)
		first, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)

		rpc.errs = map[string]error{MethodSetup: common.NewErrDomainRejection("INVALID_ACCOUNT_ID", "no such account", nil)}
		_, err = m.Open(ctx, newIdentity(t, "0.0.999"))
		require.Error(t, err)
		assert.True(t, common.IsDomainStatus(err, "INVALID_ACCOUNT_ID"))
		assert.True(t, first.IsOpen())
		assert.Same(t, first, m.Active())
	})

	t.Run("NewSessionSupersedesPrevious", func(t *testing.T) {
		rpc := &fakeRpc{}
		m := NewManager(&logger, rpc, nil)
		first, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)
		second, err := m.Open(ctx, newIdentity(t, "0.0.1001"))
		require.NoError(t, err)

		assert.False(t, first.IsOpen())
		assert.True(t, second.IsOpen())
		assert.NotEqual(t, first.Id(), second.Id())
		assert.Same(t, second, m.Active())

		err = first.EnsureOpen()
		require.Error(t, err)
		assert.True(t, common.IsTransportCode(err, common.JsonRpcErrorLocalValidation))
		assert.True(t, common.HasErrorCode(err, common.ErrCodeSessionClosed))
	})
}

func TestManager_Close(t *testing.T) {
	logger := log.Logger
	ctx := context.Background()

	t.Run("SendsResetOnce", func(t *testing.T) {
		rpc := &fakeRpc{}
		m := NewManager(&logger, rpc, nil)
		sess, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)

		m.Close(ctx, sess)
		m.Close(ctx, sess)

		resets := rpc.callsTo(MethodReset)
		require.Len(t, resets, 1)
		assert.Equal(t, sess.Id(), resets[0].params["sessionId"])
		assert.False(t, sess.IsOpen())
		assert.Nil(t, m.Active())
	})

	t.Run("FailureIsSwallowed", func(t *testing.T) {
		rpc := &fakeRpc{errs: map[string]error{MethodReset: errors.New("connection refused")}}
		m := NewManager(&logger, rpc, nil)
		sess, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)

		assert.NotPanics(t, func() { m.Close(ctx, sess) })
		assert.False(t, sess.IsOpen())
	})

	t.Run("NilSessionIsNoop", func(t *testing.T) {
		rpc := &fakeRpc{}
		m := NewManager(&logger, rpc, nil)
		m.Close(ctx, nil)
		assert.Empty(t, rpc.callsTo(MethodReset))
	})

	t.Run("SupersedingResetsPreviousOnce", func(t *testing.T) {
		rpc := &fakeRpc{}
		m := NewManager(&logger, rpc, nil)
		first, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)
		second, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)

		resets := rpc.callsTo(MethodReset)
		require.Len(t, resets, 1)
		assert.Equal(t, first.Id(), resets[0].params["sessionId"])

		m.Close(ctx, first)
		assert.Same(t, second, m.Active())
		assert.True(t, second.IsOpen())
		require.Len(t, rpc.callsTo(MethodReset), 1)

		m.Close(ctx, second)
		resets = rpc.callsTo(MethodReset)
		require.Len(t, resets, 2)
		assert.Equal(t, second.Id(), resets[1].params["sessionId"])
	})

	t.Run("SupersedeResetFailureIsSwallowed", func(t *testing.T) {
		rpc := &fakeRpc{errs: map[string]error{MethodReset: errors.New("connection refused")}}
		m := NewManager(&logger, rpc, nil)
		first, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)
		second, err := m.Open(ctx, newIdentity(t, "0.0.2"))
		require.NoError(t, err)

		assert.False(t, first.IsOpen())
		assert.True(t, second.IsOpen())
	})
}

func TestManager_ActiveGauge(t *testing.T) {
	logger := log.Logger
	ctx := context.Background()
	gauge := func(op keys.Identity) float64 {
		return testutil.ToFloat64(telemetry.MetricSessionActive.WithLabelValues(op.String()))
	}

	t.Run("SameOperatorStaysActiveAfterClosingReplacedSession", func(t *testing.T) {
		m := NewManager(&logger, &fakeRpc{}, nil)
		op := newIdentity(t, "0.0.7001")

		first, err := m.Open(ctx, op)
		require.NoError(t, err)
		second, err := m.Open(ctx, op)
		require.NoError(t, err)

		m.Close(ctx, first)
		assert.True(t, second.IsOpen())
		assert.Equal(t, 1.0, gauge(op))

		m.Close(ctx, second)
		assert.Equal(t, 0.0, gauge(op))
	})

	t.Run("ReplacedOperatorIsCleared", func(t *testing.T) {
		m := NewManager(&logger, &fakeRpc{}, nil)
		x := newIdentity(t, "0.0.7002")
		y := newIdentity(t, "0.0.7003")

		_, err := m.Open(ctx, x)
		require.NoError(t, err)
		assert.Equal(t, 1.0, gauge(x))

		second, err := m.Open(ctx, y)
		require.NoError(t, err)
		assert.Equal(t, 0.0, gauge(x))
		assert.Equal(t, 1.0, gauge(y))

		m.Close(ctx, second)
		assert.Equal(t, 0.0, gauge(y))
	})

	t.Run("SetOperatorMovesGauge", func(t *testing.T) {
		m := NewManager(&logger, &fakeRpc{}, nil)
		x := newIdentity(t, "0.0.7004")
		y := newIdentity(t, "0.0.7005")

		sess, err := m.Open(ctx, x)
		require.NoError(t, err)
		require.NoError(t, m.SetOperator(ctx, sess, y))
		assert.Equal(t, 0.0, gauge(x))
		assert.Equal(t, 1.0, gauge(y))
	})
}

func TestManager_SetOperator(t *testing.T) {
	logger := log.Logger
	ctx := context.Background()

	rpc := &fakeRpc{}
	m := NewManager(&logger, rpc, nil)
	sess, err := m.Open(ctx, newIdentity(t, "0.0.2"))
	require.NoError(t, err)

	next := newIdentity(t, "0.0.1500")
	require.NoError(t, m.SetOperator(ctx, sess, next))
	assert.Equal(t, next.AccountId, sess.Operator().AccountId)

	setups := rpc.callsTo(MethodSetup)
	require.Len(t, setups, 2)
	assert.Equal(t, sess.Id(), setups[1].params["sessionId"])
	assert.Equal(t, "0.0.1500", setups[1].params["operatorAccountId"])

	m.Close(ctx, sess)
	err = m.SetOperator(ctx, sess, next)
	assert.True(t, common.IsTransportCode(err, common.JsonRpcErrorLocalValidation))
}
