package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/resiliency"
	"github.com/erpc/tck/util"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/ratelimiter"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HttpJsonRpcClient performs exactly one JSON-RPC round trip per Call. It never retries.
type HttpJsonRpcClient interface {
	Call(ctx context.Context, method string, params interface{}) (*common.JsonRpcResponse, error)
}

type HttpClientConfig struct {
	Timeout    time.Duration
	Headers    map[string]string
	EnableGzip bool
	RateLimit  *common.RateLimitConfig
}

type GenericHttpJsonRpcClient struct {
	Url     *url.URL
	name    string
	headers map[string]string

	logger          *zerolog.Logger
	httpClient      *http.Client
	executor        failsafe.Executor[*httpExchange]
	isLogLevelTrace bool
	enableGzip      bool

	nextId atomic.Int64
}

func NewGenericHttpJsonRpcClient(
	logger *zerolog.Logger,
	name string,
	endpoint string,
	cfg *HttpClientConfig,
) (*GenericHttpJsonRpcClient, error) {
	parsedUrl, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid %s endpoint %q: %w", name, endpoint, err)
	}
	if cfg == nil {
		cfg = &HttpClientConfig{}
	}

	lg := logger.With().Str("component", "jsonRpcClient").Str("target", name).Logger()
	executor, err := newExecutor(&lg, name, cfg)
	if err != nil {
		return nil, err
	}
	client := &GenericHttpJsonRpcClient{
		Url:             parsedUrl,
		name:            name,
		headers:         cfg.Headers,
		logger:          &lg,
		enableGzip:      cfg.EnableGzip,
		isLogLevelTrace: lg.GetLevel() == zerolog.TraceLevel,
		httpClient:      newHttpClient(),
		executor:        executor,
	}

	return client, nil
}

func newHttpClient() *http.Client {
	if util.IsTest() {
		return &http.Client{}
	}
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// httpExchange is a completed round trip. The body is read inside the timeout scope.
type httpExchange struct {
	resp *http.Response
	body []byte
}

// newExecutor composes the optional pacing limiter (outer) with the per-call timeout (inner),
// so time spent waiting for a permit does not count against the request.
func newExecutor(logger *zerolog.Logger, target string, cfg *HttpClientConfig) (failsafe.Executor[*httpExchange], error) {
	var policies []failsafe.Policy[*httpExchange]
	limiter, err := resiliency.NewRateLimiter[*httpExchange](logger, target, cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	if limiter != nil {
		policies = append(policies, limiter)
	}
	if cfg.Timeout > 0 {
		policies = append(policies, timeout.Builder[*httpExchange](cfg.Timeout).Build())
	}
	return failsafe.NewExecutor[*httpExchange](policies...), nil
}

func doExchange(client *http.Client, httpReq *http.Request) (*httpExchange, error) {
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := readResponseBody(resp)
	if err != nil {
		return &httpExchange{resp: resp}, &bodyReadError{err}
	}
	return &httpExchange{resp: resp, body: body}, nil
}

type bodyReadError struct{ error }

func (e *bodyReadError) Unwrap() error { return e.error }

func (c *GenericHttpJsonRpcClient) Call(ctx context.Context, method string, params interface{}) (*common.JsonRpcResponse, error) {
	ctx, span := common.StartSpan(ctx, "HttpJsonRpcClient.Call",
		trace.WithAttributes(
			attribute.String("target", c.name),
			attribute.String("request.method", method),
		),
	)
	defer span.End()

	id := c.nextId.Add(1)
	requestBody, err := common.SonicCfg.Marshal(common.NewJsonRpcRequest(id, method, params))
	if err != nil {
		err = common.NewErrTransportFailure(
			common.JsonRpcErrorLocalValidation,
			"could not serialize request params",
			err,
			map[string]interface{}{"method": method},
		)
		common.SetTraceSpanError(span, err)
		return nil, err
	}

	reqStartTime := time.Now()
	if c.isLogLevelTrace {
		c.logger.Trace().Str("method", method).RawJSON("request", requestBody).Msg("sending json rpc POST request")
	}

	ex, err := c.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[*httpExchange]) (*httpExchange, error) {
		httpReq, err := c.prepareRequest(exec.Context(), requestBody)
		if err != nil {
			return nil, err
		}
		return doExchange(c.httpClient, httpReq)
	})
	if err != nil {
		var bre *bodyReadError
		if errors.As(err, &bre) && ex != nil {
			err = common.NewErrTransportFailure(
				common.JsonRpcErrorMalformedResponse,
				"could not read response body",
				bre.error,
				map[string]interface{}{"method": method, "statusCode": ex.resp.StatusCode},
			)
		} else {
			err = c.translateTransportError(ctx, method, reqStartTime, err)
		}
		common.SetTraceSpanError(span, err)
		return nil, err
	}
	resp, body := ex.resp, ex.body

	c.logger.Debug().
		Str("method", method).
		Int("statusCode", resp.StatusCode).
		Dur("duration", time.Since(reqStartTime)).
		Msg("received json rpc response")
	if c.isLogLevelTrace {
		c.logger.Trace().Str("method", method).Str("body", util.Truncate(string(body), 20*1024)).Msg("json rpc response body")
	}

	jr, err := c.normalizeJsonRpcResponse(resp, method, body)
	if err != nil {
		common.SetTraceSpanError(span, err)
	}
	return jr, err
}

func (c *GenericHttpJsonRpcClient) translateTransportError(ctx context.Context, method string, startedAt time.Time, err error) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = ctx.Err()
	}
	c.logger.Debug().Err(err).AnErr("contextError", cause).Str("method", method).Msg("transport failure while sending request")
	if cause != nil {
		err = cause
	}
	details := map[string]interface{}{
		"method":   method,
		"endpoint": util.RedactEndpoint(c.Url.String()),
	}
	if errors.Is(err, ratelimiter.ErrExceeded) {
		return common.NewErrTransportFailure(common.JsonRpcErrorRequestTimeout, "rate limit wait time exceeded", err, details)
	}
	if errors.Is(err, timeout.ErrExceeded) || errors.Is(err, context.DeadlineExceeded) {
		details["elapsed"] = time.Since(startedAt).String()
		return common.NewErrTransportFailure(common.JsonRpcErrorRequestTimeout, "request timed out", err, details)
	}
	return common.NewErrTransportFailure(common.JsonRpcErrorEndpointUnreachable, "endpoint unreachable", err, details)
}

func (c *GenericHttpJsonRpcClient) prepareRequest(ctx context.Context, body []byte) (*http.Request, error) {
	var bodyReader io.Reader = bytes.NewReader(body)

	if c.enableGzip {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		bodyReader = &buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.Url.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept-Encoding", "gzip")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", fmt.Sprintf("tck (%s/%s)", common.TckVersion, common.TckCommitSha))
	if c.enableGzip {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	common.InjectTraceContext(ctx, httpReq.Header)

	return httpReq, nil
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("error creating gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}
	return io.ReadAll(reader)
}

func (c *GenericHttpJsonRpcClient) normalizeJsonRpcResponse(r *http.Response, method string, body []byte) (*common.JsonRpcResponse, error) {
	var jr common.JsonRpcResponse
	if err := common.SonicCfg.Unmarshal(body, &jr); err != nil || (jr.Error == nil && len(jr.Result) == 0) {
		if err == nil {
			err = fmt.Errorf("response has neither result nor error")
		}
		details := map[string]interface{}{
			"method":     method,
			"statusCode": r.StatusCode,
			"headers":    util.ExtractUsefulHeaders(r),
			"body":       util.Truncate(string(body), 512),
		}
		return nil, common.NewErrTransportFailure(
			common.JsonRpcErrorMalformedResponse,
			"could not parse json rpc response",
			err,
			details,
		)
	}

	if jr.Error != nil {
		return &jr, common.ClassifyJsonRpcError(method, jr.Error)
	}

	return &jr, nil
}
