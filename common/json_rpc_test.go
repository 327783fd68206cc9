package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyJsonRpcError(t *testing.T) {
	t.Run("NilIsNil", func(t *testing.T) {
		assert.NoError(t, ClassifyJsonRpcError("setup", nil))
	})

	t.Run("StatusMeansDomain", func(t *testing.T) {
		err := ClassifyJsonRpcError("createAccount", &JsonRpcError{
			Code:    JsonRpcErrorLedger,
			Message: "Hiero error",
			Data:    &JsonRpcErrorData{Status: "INVALID_SIGNATURE", Message: "missing signature"},
		})
		require.Error(t, err)
		assert.True(t, IsDomainStatus(err, "INVALID_SIGNATURE"))

		var dr *ErrDomainRejection
		require.ErrorAs(t, err, &dr)
		assert.Equal(t, "missing signature", dr.Message)
		assert.Equal(t, JsonRpcErrorLedger, dr.Details["rawCode"])
	})

	t.Run("StatusWinsOverKnownCode", func(t *testing.T) {
		err := ClassifyJsonRpcError("createAccount", &JsonRpcError{
			Code: int(JsonRpcErrorInternal),
			Data: &JsonRpcErrorData{Status: "BUSY"},
		})
		assert.True(t, IsDomainStatus(err, "BUSY"))
	})

	t.Run("KnownCodeIsTransport", func(t *testing.T) {
		err := ClassifyJsonRpcError("createAccount", &JsonRpcError{Code: -32602, Message: "Invalid params"})
		assert.True(t, IsTransportCode(err, JsonRpcErrorInvalidParams))
		assert.False(t, IsDomainStatus(err, ""))
	})

	t.Run("UnknownCodeBecomesInternal", func(t *testing.T) {
		err := ClassifyJsonRpcError("createAccount", &JsonRpcError{Code: -31999})
		assert.True(t, IsTransportCode(err, JsonRpcErrorInternal))
		var tf *ErrTransportFailure
		require.ErrorAs(t, err, &tf)
		assert.Equal(t, -31999, tf.Details["rawCode"])
		assert.Equal(t, "internal error", tf.Message)
	})

	t.Run("LedgerCodeWithoutStatusIsTransport", func(t *testing.T) {
		err := ClassifyJsonRpcError("createAccount", &JsonRpcError{Code: JsonRpcErrorLedger, Message: "no status"})
		assert.True(t, IsTransportCode(err, JsonRpcErrorInternal))
	})
}

func TestJsonRpcResponseParseResult(t *testing.T) {
	var resp JsonRpcResponse
	require.NoError(t, SonicCfg.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"result":{"accountId":"0.0.1001","balance":9007199254740993}}`), &resp))

	var out struct {
		AccountId string `json:"accountId"`
		Balance   int64  `json:"balance"`
	}
	require.NoError(t, resp.ParseResult(&out))
	assert.Equal(t, "0.0.1001", out.AccountId)
	assert.Equal(t, int64(9007199254740993), out.Balance)

	empty := &JsonRpcResponse{ID: 2}
	assert.Error(t, empty.ParseResult(&out))
}

func TestJsonRpcErrorNumber(t *testing.T) {
	assert.True(t, JsonRpcErrorLocalValidation.IsKnown())
	assert.False(t, JsonRpcErrorNumber(JsonRpcErrorLedger).IsKnown())
	assert.Equal(t, "unknown(-1)", JsonRpcErrorNumber(-1).String())
}
