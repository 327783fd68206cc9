package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorChannelsAreDisjoint(t *testing.T) {
	domain := NewErrDomainRejection("INVALID_SIGNATURE", "signature missing", nil)
	transport := NewErrTransportFailure(JsonRpcErrorInternal, "bad key", nil, nil)

	t.Run("Domain", func(t *testing.T) {
		ce, ok := ClassifyError(domain)
		require.True(t, ok)
		assert.Equal(t, ErrorChannelDomain, ce.Channel())
		assert.True(t, IsDomainStatus(domain, "BUSY", "INVALID_SIGNATURE"))
		assert.False(t, IsTransportCode(domain, JsonRpcErrorInternal, JsonRpcErrorNumber(JsonRpcErrorLedger)))
	})

	t.Run("Transport", func(t *testing.T) {
		ce, ok := ClassifyError(transport)
		require.True(t, ok)
		assert.Equal(t, ErrorChannelTransport, ce.Channel())
		assert.True(t, IsTransportCode(transport, JsonRpcErrorInternal))
		assert.False(t, IsDomainStatus(transport, "INVALID_SIGNATURE", ""))
	})

	t.Run("WrappedErrorsAreFound", func(t *testing.T) {
		wrapped := fmt.Errorf("createAccount: %w", domain)
		assert.True(t, IsDomainStatus(wrapped, "INVALID_SIGNATURE"))
		_, ok := ClassifyError(errors.New("plain"))
		assert.False(t, ok)
	})
}

func TestBaseErrorChain(t *testing.T) {
	inner := NewErrDomainRejection("ACCOUNT_DELETED", "deleted", nil)
	nf := NewErrEntityNotFound("ground-truth", AccountRef(MustParseEntityId("0.0.9")), inner)

	assert.True(t, IsNotFound(nf))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", nf)))
	assert.False(t, IsNotFound(inner))
	assert.True(t, HasErrorCode(nf, ErrCodeDomainRejection))

	se, ok := nf.(StandardError)
	require.True(t, ok)
	assert.Equal(t, "ErrEntityNotFound <- ErrDomainRejection", se.CodeChain())
	assert.Equal(t, "deleted", se.DeepestMessage())
	assert.Contains(t, nf.Error(), "account 0.0.9 not found on ground-truth oracle")
	assert.Equal(t, "ErrEntityNotFound <- ErrDomainRejection: deleted", ErrorSummary(nf))
}

func TestErrorDetails(t *testing.T) {
	tf := NewErrTransportFailure(JsonRpcErrorRequestTimeout, "timed out", errors.New("deadline"), map[string]interface{}{"method": "setup"})
	var target *ErrTransportFailure
	require.ErrorAs(t, tf, &target)
	assert.Equal(t, int(JsonRpcErrorRequestTimeout), target.Details["transportCode"])
	assert.Equal(t, "setup", target.Details["method"])
	assert.Contains(t, tf.Error(), "-> deadline")

	hs := NewErrHttpStatus("http://mirror/api", 503, "unavailable")
	var status *ErrHttpStatus
	require.ErrorAs(t, hs, &status)
	assert.Equal(t, 503, status.StatusCode())

	assert.Equal(t, "", ErrorSummary(nil))
	assert.Equal(t, "boom", ErrorSummary(errors.New(" boom ")))
}
