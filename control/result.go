package control

import (
	"encoding/json"
	"fmt"

	"github.com/erpc/tck/common"
)

// createdIdFields lists, in priority order, the result members that carry a newly created entity.
var createdIdFields = []string{"accountId", "tokenId", "topicId", "contractId", "scheduleId", "fileId", "nodeId"}

// Result is the success payload of one control-plane call.
type Result struct {
	Method string

	raw    json.RawMessage
	fields map[string]interface{}
}

func newResult(method string, raw json.RawMessage) (*Result, error) {
	r := &Result{Method: method, raw: raw}
	if len(raw) == 0 || string(raw) == "null" {
		r.fields = map[string]interface{}{}
		return r, nil
	}
	if err := common.SonicCfg.Unmarshal(raw, &r.fields); err != nil {
		return nil, common.NewErrTransportFailure(
			common.JsonRpcErrorMalformedResponse,
			"result is not a json object",
			err,
			map[string]interface{}{"method": method},
		)
	}
	if r.fields == nil {
		r.fields = map[string]interface{}{}
	}
	return r, nil
}

// Status is the status marker of the result, e.g. SUCCESS. Empty when the method reports none.
func (r *Result) Status() string {
	return r.String("status")
}

// CreatedEntityId returns the id of the entity the operation created, if the result names one.
func (r *Result) CreatedEntityId() (common.EntityId, bool) {
	for _, f := range createdIdFields {
		s := r.String(f)
		if s == "" {
			continue
		}
		id, err := common.ParseEntityId(s)
		if err != nil {
			continue
		}
		return id, true
	}
	return common.EntityId{}, false
}

// String returns the member key as a string. Numbers are formatted, other types yield "".
func (r *Result) String(key string) string {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%v", t)
	case json.Number:
		return t.String()
	case bool:
		return fmt.Sprintf("%t", t)
	}
	return ""
}

// Fields returns a copy of the top-level result members.
func (r *Result) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

func (r *Result) Decode(v interface{}) error {
	return common.SonicCfg.Unmarshal(r.raw, v)
}

func (r *Result) Raw() json.RawMessage {
	return r.raw
}
