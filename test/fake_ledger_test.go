package test

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	util.ConfigureTestLogger()
}

func startLedger(t *testing.T, lag int) (*FakeLedger, string) {
	t.Helper()
	fl, err := NewFakeLedger()
	require.NoError(t, err)
	fl.ReplicaLag = lag
	url := fl.Start()
	t.Cleanup(func() { _ = fl.Stop() })
	return fl, url
}

func rpc(t *testing.T, url, method string, params map[string]interface{}) *common.JsonRpcResponse {
	t.Helper()
	body, err := common.SonicCfg.Marshal(common.NewJsonRpcRequest(1, method, params))
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out common.JsonRpcResponse
	require.NoError(t, common.SonicCfg.Unmarshal(raw, &out))
	return &out
}

func setupSession(t *testing.T, fl *FakeLedger, url, sessionId string) {
	t.Helper()
	op := fl.Operator()
	res := rpc(t, url, "setup", map[string]interface{}{
		"sessionId":          sessionId,
		"operatorAccountId":  op.AccountId.String(),
		"operatorPrivateKey": op.PrivateKey.StringDer(),
	})
	require.Nil(t, res.Error)
}

func TestFakeLedger_Setup(t *testing.T) {
	fl, url := startLedger(t, 0)

	t.Run("BindsOperator", func(t *testing.T) {
		setupSession(t, fl, url, "s1")
		op, ok := fl.SessionOperator("s1")
		require.True(t, ok)
		assert.Equal(t, "0.0.2", op)
	})

	t.Run("WrongKeyIsDomainRejection", func(t *testing.T) {
		other, err := NewFakeLedger()
		require.NoError(t, err)
		res := rpc(t, url, "setup", map[string]interface{}{
			"sessionId":          "s2",
			"operatorAccountId":  "0.0.2",
			"operatorPrivateKey": other.Operator().PrivateKey.StringDer(),
		})
		require.NotNil(t, res.Error)
		err = common.ClassifyJsonRpcError("setup", res.Error)
		assert.True(t, common.IsDomainStatus(err, "INVALID_SIGNATURE"))
	})

	t.Run("ResetReleasesSession", func(t *testing.T) {
		res := rpc(t, url, "reset", map[string]interface{}{"sessionId": "s1"})
		require.Nil(t, res.Error)
		_, ok := fl.SessionOperator("s1")
		assert.False(t, ok)
		res = rpc(t, url, "reset", map[string]interface{}{"sessionId": "s1"})
		assert.Nil(t, res.Error)
	})
}

func TestFakeLedger_ReplicaLag(t *testing.T) {
	fl, url := startLedger(t, 2)
	setupSession(t, fl, url, "s")

	key := fl.Operator().PrivateKey.PublicKey()
	res := rpc(t, url, "createAccount", map[string]interface{}{"sessionId": "s", "key": key.StringDer()})
	require.Nil(t, res.Error)
	var created struct {
		AccountId string `json:"accountId"`
		Status    string `json:"status"`
	}
	require.NoError(t, res.ParseResult(&created))
	assert.Equal(t, "SUCCESS", created.Status)
	assert.Equal(t, "0.0.1001", created.AccountId)

	get := func() int {
		resp, err := http.Get(url + "/api/v1/accounts/" + created.AccountId)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNotFound, get())
	assert.Equal(t, http.StatusNotFound, get())
	assert.Equal(t, http.StatusOK, get())

	gt := rpc(t, url+"/gt", "getAccountInfo", map[string]interface{}{"accountId": created.AccountId})
	require.Nil(t, gt.Error)
}

func TestFakeLedger_InjectError(t *testing.T) {
	fl, url := startLedger(t, 0)
	setupSession(t, fl, url, "s")

	fl.InjectError("createAccount", int(common.JsonRpcErrorInternal), "boom", "")
	res := rpc(t, url, "createAccount", map[string]interface{}{"sessionId": "s", "key": "x"})
	require.NotNil(t, res.Error)
	assert.Equal(t, "boom", res.Error.Message)

	fl.InjectError("gt.getAccountInfo", common.JsonRpcErrorLedger, "busy", "BUSY")
	res = rpc(t, url+"/gt", "getAccountInfo", map[string]interface{}{"accountId": "0.0.2"})
	require.NotNil(t, res.Error)
	assert.True(t, common.IsDomainStatus(common.ClassifyJsonRpcError("getAccountInfo", res.Error), "BUSY"))

	res = rpc(t, url+"/gt", "getAccountInfo", map[string]interface{}{"accountId": "0.0.2"})
	assert.Nil(t, res.Error, "injected errors fire once")

	calls := fl.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "createAccount", calls[len(calls)-1].Method)
}

func TestFakeLedger_UnknownSession(t *testing.T) {
	_, url := startLedger(t, 0)
	res := rpc(t, url, "createAccount", map[string]interface{}{"sessionId": "nope", "key": "x"})
	require.NotNil(t, res.Error)
	assert.Equal(t, int(common.JsonRpcErrorInternal), res.Error.Code)
	assert.Nil(t, res.Error.Data)
}
