package control

import (
	"context"
	"time"

	"github.com/erpc/tck/clients"
	"github.com/erpc/tck/common"
	"github.com/erpc/tck/session"
	"github.com/erpc/tck/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const commonTransactionParamsKey = "commonTransactionParams"

// Client is the control-plane client: one request to the SUT per call, no retries.
type Client struct {
	logger *zerolog.Logger
	rpc    clients.HttpJsonRpcClient
}

func NewClient(logger *zerolog.Logger, rpc clients.HttpJsonRpcClient) *Client {
	lg := logger.With().Str("component", "control").Logger()
	return &Client{logger: &lg, rpc: rpc}
}

// Send issues method on behalf of sess. Without overrides the session operator signs and pays,
// as bound by setup. A nil, closed or superseded session fails locally and nothing is sent.
func (c *Client) Send(ctx context.Context, sess *session.Session, method string, params map[string]interface{}, opts ...CallOption) (*Result, error) {
	if err := sess.EnsureOpen(); err != nil {
		telemetry.CounterHandle(telemetry.MetricControlRequestTotal, method, telemetry.OutcomeTransport).Inc()
		return nil, err
	}

	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := buildParams(params, sess, &o)
	if err != nil {
		telemetry.CounterHandle(telemetry.MetricControlRequestTotal, method, telemetry.OutcomeTransport).Inc()
		return nil, err
	}

	return c.do(ctx, method, payload, sess.Id())
}

// Call issues a session-less control method such as setup or reset.
func (c *Client) Call(ctx context.Context, method string, params map[string]interface{}) (*Result, error) {
	sessionId, _ := params["sessionId"].(string)
	return c.do(ctx, method, copyMap(params), sessionId)
}

func (c *Client) do(ctx context.Context, method string, params map[string]interface{}, sessionId string) (*Result, error) {
	ctx, span := common.StartSpan(ctx, "Control.Send",
		trace.WithAttributes(
			attribute.String("request.method", method),
			attribute.String("session.id", sessionId),
		),
	)
	startedAt := time.Now()

	jr, err := c.rpc.Call(ctx, method, params)
	duration := time.Since(startedAt)
	telemetry.ObserverHandle(telemetry.MetricControlRequestDuration, method).Observe(duration.Seconds())

	var res *Result
	if err == nil {
		res, err = newResult(method, jr.Result)
	}
	common.EndSpan(span, err)

	outcome := outcomeOf(err)
	telemetry.CounterHandle(telemetry.MetricControlRequestTotal, method, outcome).Inc()

	lg := c.logger.Debug().Str("method", method).Str("sessionId", sessionId).Dur("duration", duration).Str("outcome", outcome)
	if err != nil {
		lg.Err(err).Msg("control request failed")
		return nil, err
	}
	lg.Str("status", res.Status()).Msg("control request succeeded")
	return res, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return telemetry.OutcomeSuccess
	}
	ce, ok := common.ClassifyError(err)
	if !ok {
		return telemetry.OutcomeError
	}
	if ce.Channel() == common.ErrorChannelDomain {
		return telemetry.OutcomeDomain
	}
	return telemetry.OutcomeTransport
}

// buildParams copies params, adds the session id and folds call options into
// commonTransactionParams. The caller's map is never mutated.
func buildParams(params map[string]interface{}, sess *session.Session, o *callOptions) (map[string]interface{}, error) {
	out := copyMap(params)
	out["sessionId"] = sess.Id()

	if o.feePayer == nil && o.maxFee == nil && o.memo == nil && len(o.signers) == 0 {
		return out, nil
	}

	ctp := map[string]interface{}{}
	if existing, ok := out[commonTransactionParamsKey]; ok && existing != nil {
		m, ok := existing.(map[string]interface{})
		if !ok {
			return nil, common.NewErrTransportFailure(
				common.JsonRpcErrorLocalValidation,
				"commonTransactionParams must be an object",
				nil,
				map[string]interface{}{"sessionId": sess.Id()},
			)
		}
		ctp = copyMap(m)
	}

	if len(o.signers) > 0 {
		var signers []interface{}
		switch s := ctp["signers"].(type) {
		case []interface{}:
			signers = append(signers, s...)
		case []string:
			for _, v := range s {
				signers = append(signers, v)
			}
		}
		for _, v := range o.signers {
			signers = append(signers, v)
		}
		ctp["signers"] = signers
	}
	if o.feePayer != nil {
		ctp["transactionId"] = common.NewTransactionId(*o.feePayer, validStart()).String()
	}
	if o.maxFee != nil {
		ctp["maxTransactionFee"] = *o.maxFee
	}
	if o.memo != nil {
		ctp["memo"] = *o.memo
	}

	out[commonTransactionParamsKey] = ctp
	return out, nil
}

// validStart backdates slightly so the id is valid on a node whose clock runs behind.
func validStart() time.Time {
	return time.Now().Add(-5 * time.Second)
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
