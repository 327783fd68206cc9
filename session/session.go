package session

import (
	"context"
	"sync"
	"time"

	"github.com/erpc/tck/clients"
	"github.com/erpc/tck/common"
	"github.com/erpc/tck/keys"
	"github.com/erpc/tck/telemetry"
	"github.com/erpc/tck/util"
	"github.com/rs/zerolog"
)

const (
	MethodSetup = "setup"
	MethodReset = "reset"
)

// Session binds one operator identity to an opaque id the SUT uses to scope its resources.
type Session struct {
	id       string
	openedAt time.Time

	mu         sync.RWMutex
	operator   keys.Identity
	closed     bool
	superseded bool
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) OpenedAt() time.Time {
	return s.openedAt
}

func (s *Session) Operator() keys.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operator
}

// IsOpen is false once the session was closed or a newer session replaced it.
func (s *Session) IsOpen() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && !s.superseded
}

// EnsureOpen returns a LocalValidation transport failure for a nil, closed or superseded session.
func (s *Session) EnsureOpen() error {
	if s.IsOpen() {
		return nil
	}
	id := ""
	if s != nil {
		id = s.id
	}
	return common.NewErrTransportFailure(
		common.JsonRpcErrorLocalValidation,
		"session is not open",
		common.NewErrSessionClosed(id),
		map[string]interface{}{"sessionId": id},
	)
}

func (s *Session) MarshalZerologObject(e *zerolog.Event) {
	e.Str("sessionId", s.id).Str("operator", s.Operator().String())
}

// Manager opens and closes sessions against the SUT. Sessions never nest: a successful Open
// supersedes whatever session was active before it and resets it on the SUT.
type Manager struct {
	logger  *zerolog.Logger
	rpc     clients.HttpJsonRpcClient
	network *common.NetworkConfig

	mu     sync.Mutex
	active *Session
}

func NewManager(logger *zerolog.Logger, rpc clients.HttpJsonRpcClient, network *common.NetworkConfig) *Manager {
	lg := logger.With().Str("component", "sessions").Logger()
	if network == nil {
		network = &common.NetworkConfig{}
	}
	return &Manager{
		logger:  &lg,
		rpc:     rpc,
		network: network,
	}
}

// Active returns the session opened last, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) Open(ctx context.Context, operator keys.Identity) (*Session, error) {
	if err := operator.Validate(); err != nil {
		return nil, common.NewErrTransportFailure(common.JsonRpcErrorLocalValidation, "invalid operator identity", err, nil)
	}

	sess := &Session{
		id:       util.NewSessionId(),
		operator: operator,
	}
	if err := m.setup(ctx, sess.id, operator); err != nil {
		return nil, err
	}
	sess.openedAt = time.Now()

	m.mu.Lock()
	prev := m.active
	m.active = sess
	m.mu.Unlock()

	if prev != nil {
		prev.mu.Lock()
		wasOpen := !prev.closed
		prev.superseded = true
		prev.closed = true
		prevOperator := prev.operator
		prev.mu.Unlock()
		if wasOpen {
			if prevOperator.String() != operator.String() {
				telemetry.GaugeHandle(telemetry.MetricSessionActive, prevOperator.String()).Set(0)
			}
			telemetry.CounterHandle(telemetry.MetricSessionTotal, "superseded").Inc()
			m.logger.Debug().Str("sessionId", prev.id).Str("newSessionId", sess.id).Msg("previous session superseded")
			m.reset(ctx, prev.id)
		}
	}

	telemetry.CounterHandle(telemetry.MetricSessionTotal, "opened").Inc()
	telemetry.GaugeHandle(telemetry.MetricSessionActive, operator.String()).Set(1)
	m.logger.Debug().Object("session", sess).Msg("session opened")
	return sess, nil
}

// SetOperator reassigns the operator of an open session. The SUT re-runs setup under the same id.
func (m *Manager) SetOperator(ctx context.Context, sess *Session, operator keys.Identity) error {
	if err := sess.EnsureOpen(); err != nil {
		return err
	}
	if err := operator.Validate(); err != nil {
		return common.NewErrTransportFailure(common.JsonRpcErrorLocalValidation, "invalid operator identity", err, nil)
	}
	if err := m.setup(ctx, sess.id, operator); err != nil {
		return err
	}

	sess.mu.Lock()
	prev := sess.operator
	sess.operator = operator
	sess.mu.Unlock()

	telemetry.GaugeHandle(telemetry.MetricSessionActive, prev.String()).Set(0)
	telemetry.GaugeHandle(telemetry.MetricSessionActive, operator.String()).Set(1)
	m.logger.Debug().Object("session", sess).Str("previousOperator", prev.String()).Msg("session operator reassigned")
	return nil
}

// Close asks the SUT to release everything scoped to sess. It is best-effort: failures are
// logged and never returned. Closing twice sends reset once. A superseded session was already
// released by the Open that replaced it.
func (m *Manager) Close(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	operator := sess.operator
	sess.mu.Unlock()

	m.mu.Lock()
	wasActive := m.active == sess
	if wasActive {
		m.active = nil
	}
	m.mu.Unlock()
	if wasActive {
		telemetry.GaugeHandle(telemetry.MetricSessionActive, operator.String()).Set(0)
	}

	m.reset(ctx, sess.id)
}

func (m *Manager) reset(ctx context.Context, sessionId string) {
	_, err := m.rpc.Call(ctx, MethodReset, map[string]interface{}{"sessionId": sessionId})
	if err != nil {
		telemetry.CounterHandle(telemetry.MetricSessionTotal, "close_failed").Inc()
		m.logger.Warn().Err(err).Str("sessionId", sessionId).Msg("failed to reset session on SUT, ignoring")
		return
	}
	telemetry.CounterHandle(telemetry.MetricSessionTotal, "closed").Inc()
	m.logger.Debug().Str("sessionId", sessionId).Msg("session closed")
}

func (m *Manager) setup(ctx context.Context, sessionId string, operator keys.Identity) error {
	params := map[string]interface{}{
		"sessionId":          sessionId,
		"operatorAccountId":  operator.AccountId.String(),
		"operatorPrivateKey": operator.PrivateKey.StringDer(),
	}
	if m.network.NodeIp != "" {
		params["nodeIp"] = m.network.NodeIp
	}
	if m.network.NodeAccountId != "" {
		params["nodeAccountId"] = m.network.NodeAccountId
	}
	if m.network.MirrorNetworkIp != "" {
		params["mirrorNetworkIp"] = m.network.MirrorNetworkIp
	}

	_, err := m.rpc.Call(ctx, MethodSetup, params)
	if err != nil {
		m.logger.Debug().Err(err).Str("sessionId", sessionId).Str("operator", operator.String()).Msg("setup rejected by SUT")
	}
	return err
}
