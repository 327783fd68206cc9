package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/util"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/ratelimiter"
	"github.com/failsafe-go/failsafe-go/timeout"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HttpRestClient issues read-only GET requests against a REST API and decodes JSON bodies.
type HttpRestClient interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}) error
}

type GenericHttpRestClient struct {
	BaseUrl *url.URL
	name    string
	headers map[string]string

	logger          *zerolog.Logger
	httpClient      *http.Client
	executor        failsafe.Executor[*httpExchange]
	isLogLevelTrace bool
}

func NewGenericHttpRestClient(
	logger *zerolog.Logger,
	name string,
	baseUrl string,
	cfg *HttpClientConfig,
) (*GenericHttpRestClient, error) {
	parsedUrl, err := url.Parse(strings.TrimRight(baseUrl, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid %s endpoint %q: %w", name, baseUrl, err)
	}
	if cfg == nil {
		cfg = &HttpClientConfig{}
	}

	lg := logger.With().Str("component", "restClient").Str("target", name).Logger()
	executor, err := newExecutor(&lg, name, cfg)
	if err != nil {
		return nil, err
	}
	return &GenericHttpRestClient{
		BaseUrl:         parsedUrl,
		name:            name,
		headers:         cfg.Headers,
		logger:          &lg,
		httpClient:      newHttpClient(),
		executor:        executor,
		isLogLevelTrace: lg.GetLevel() == zerolog.TraceLevel,
	}, nil
}

// Get fetches path (relative to the base url) and decodes the body into out.
// A 404 yields *common.ErrHttpStatus with StatusCode() == 404; callers map it to not-found.
func (c *GenericHttpRestClient) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	ctx, span := common.StartSpan(ctx, "HttpRestClient.Get",
		trace.WithAttributes(
			attribute.String("target", c.name),
			attribute.String("http.path", path),
		),
	)
	defer span.End()

	u := *c.BaseUrl
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	target := u.String()

	startedAt := time.Now()
	ex, err := c.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[*httpExchange]) (*httpExchange, error) {
		httpReq, err := http.NewRequestWithContext(exec.Context(), "GET", target, nil)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("Accept-Encoding", "gzip")
		httpReq.Header.Set("User-Agent", fmt.Sprintf("tck (%s/%s)", common.TckVersion, common.TckCommitSha))
		for k, v := range c.headers {
			httpReq.Header.Set(k, v)
		}
		common.InjectTraceContext(exec.Context(), httpReq.Header)
		return doExchange(c.httpClient, httpReq)
	})
	if err != nil {
		err = c.translateError(ctx, target, startedAt, err)
		common.SetTraceSpanError(span, err)
		return err
	}

	c.logger.Debug().Str("path", path).Int("statusCode", ex.resp.StatusCode).Dur("duration", time.Since(startedAt)).Msg("received rest response")
	if c.isLogLevelTrace {
		c.logger.Trace().Str("path", path).Str("body", util.Truncate(string(ex.body), 20*1024)).Msg("rest response body")
	}

	if ex.resp.StatusCode < 200 || ex.resp.StatusCode >= 300 {
		err = common.NewErrHttpStatus(util.RedactEndpoint(target), ex.resp.StatusCode, util.Truncate(string(ex.body), 512))
		common.SetTraceSpanError(span, err)
		return err
	}

	if out == nil {
		return nil
	}
	if err := common.SonicCfg.Unmarshal(ex.body, out); err != nil {
		err = common.NewErrTransportFailure(
			common.JsonRpcErrorMalformedResponse,
			"could not decode rest response",
			err,
			map[string]interface{}{
				"path":    path,
				"headers": util.ExtractUsefulHeaders(ex.resp),
			},
		)
		common.SetTraceSpanError(span, err)
		return err
	}
	return nil
}

func (c *GenericHttpRestClient) translateError(ctx context.Context, target string, startedAt time.Time, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		err = cause
	}
	details := map[string]interface{}{"endpoint": util.RedactEndpoint(target)}
	var bre *bodyReadError
	switch {
	case errors.As(err, &bre):
		return common.NewErrTransportFailure(common.JsonRpcErrorMalformedResponse, "could not read response body", bre.error, details)
	case errors.Is(err, ratelimiter.ErrExceeded):
		return common.NewErrTransportFailure(common.JsonRpcErrorRequestTimeout, "rate limit wait time exceeded", err, details)
	case errors.Is(err, timeout.ErrExceeded), errors.Is(err, context.DeadlineExceeded):
		details["elapsed"] = time.Since(startedAt).String()
		return common.NewErrTransportFailure(common.JsonRpcErrorRequestTimeout, "request timed out", err, details)
	}
	return common.NewErrTransportFailure(common.JsonRpcErrorEndpointUnreachable, "endpoint unreachable", err, details)
}

// IsHttpNotFound reports whether err is an HTTP 404 from a REST endpoint.
func IsHttpNotFound(err error) bool {
	var hs *common.ErrHttpStatus
	return errors.As(err, &hs) && hs.StatusCode() == http.StatusNotFound
}
