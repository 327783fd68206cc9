package common

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

type JsonRpcErrorNumber int

// Transport/internal codes. This set is closed: anything the SUT returns outside of it is
// reported as JsonRpcErrorInternal with the raw code kept in the error details.
const (
	JsonRpcErrorParse          JsonRpcErrorNumber = -32700
	JsonRpcErrorInvalidRequest JsonRpcErrorNumber = -32600
	JsonRpcErrorMethodNotFound JsonRpcErrorNumber = -32601
	JsonRpcErrorInvalidParams  JsonRpcErrorNumber = -32602
	JsonRpcErrorInternal       JsonRpcErrorNumber = -32603

	// Raised locally by the harness, never sent by the SUT.
	JsonRpcErrorEndpointUnreachable JsonRpcErrorNumber = -32090
	JsonRpcErrorMalformedResponse   JsonRpcErrorNumber = -32091
	JsonRpcErrorRequestTimeout      JsonRpcErrorNumber = -32092
	JsonRpcErrorLocalValidation     JsonRpcErrorNumber = -32093
)

// JsonRpcErrorLedger is the code the SUT uses when the network itself rejected the operation.
// Its meaning lives in data.status; it is never reported as a transport code.
const JsonRpcErrorLedger = -32001

var knownTransportCodes = map[JsonRpcErrorNumber]string{
	JsonRpcErrorParse:               "parse error",
	JsonRpcErrorInvalidRequest:      "invalid request",
	JsonRpcErrorMethodNotFound:      "method not found",
	JsonRpcErrorInvalidParams:       "invalid params",
	JsonRpcErrorInternal:            "internal error",
	JsonRpcErrorEndpointUnreachable: "endpoint unreachable",
	JsonRpcErrorMalformedResponse:   "malformed response",
	JsonRpcErrorRequestTimeout:      "request timeout",
	JsonRpcErrorLocalValidation:     "local validation failed",
}

func (n JsonRpcErrorNumber) IsKnown() bool {
	_, ok := knownTransportCodes[n]
	return ok
}

func (n JsonRpcErrorNumber) String() string {
	if s, ok := knownTransportCodes[n]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", int(n))
}

type JsonRpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type JsonRpcErrorData struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

type JsonRpcError struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    *JsonRpcErrorData `json:"data,omitempty"`
}

type JsonRpcResponse struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JsonRpcError   `json:"error,omitempty"`
}

func NewJsonRpcRequest(id interface{}, method string, params interface{}) *JsonRpcRequest {
	return &JsonRpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

func (r *JsonRpcRequest) MarshalZerologObject(e *zerolog.Event) {
	e.Str("method", r.Method).Interface("id", r.ID)
}

func (r *JsonRpcResponse) MarshalZerologObject(e *zerolog.Event) {
	e.Interface("id", r.ID).Int("resultSize", len(r.Result))
	if r.Error != nil {
		e.Int("errorCode", r.Error.Code).Str("errorMessage", r.Error.Message)
	}
}

// ParseResult decodes the result member into v.
func (r *JsonRpcResponse) ParseResult(v interface{}) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("json-rpc response has no result")
	}
	return SonicCfg.Unmarshal(r.Result, v)
}

// ClassifyJsonRpcError splits a protocol error into one of the two disjoint channels.
// A non-empty data.status always means the network answered; everything else is transport.
func ClassifyJsonRpcError(method string, jerr *JsonRpcError) error {
	if jerr == nil {
		return nil
	}
	details := map[string]interface{}{
		"method":  method,
		"rawCode": jerr.Code,
	}
	if jerr.Data != nil && jerr.Data.Status != "" {
		desc := jerr.Data.Message
		if desc == "" {
			desc = jerr.Message
		}
		return NewErrDomainRejection(jerr.Data.Status, desc, details)
	}

	code := JsonRpcErrorNumber(jerr.Code)
	if !code.IsKnown() {
		code = JsonRpcErrorInternal
	}
	msg := jerr.Message
	if msg == "" {
		msg = code.String()
	}
	return NewErrTransportFailure(code, msg, nil, details)
}
