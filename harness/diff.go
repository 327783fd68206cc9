package harness

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/erpc/tck/common"
)

// Diff compares the listed fields of expected and actual. Fields missing from expected are
// skipped; a field missing from actual is reported with a nil Actual.
func Diff(expected, actual common.Snapshot, fields []string) []Mismatch {
	if expected == nil || actual == nil {
		return nil
	}
	return diffFields(expected.Fields(), actual.Fields(), fields)
}

func diffFields(expected, actual map[string]interface{}, fields []string) []Mismatch {
	var out []Mismatch
	for _, f := range fields {
		ev, ok := expected[f]
		if !ok {
			continue
		}
		av := actual[f]
		if !valuesEqual(ev, av) {
			out = append(out, Mismatch{Field: f, Expected: ev, Actual: av})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func valuesEqual(a, b interface{}) bool {
	if ai, ok := asInt64(a); ok {
		bi, ok := asInt64(b)
		return ok && ai == bi
	}
	if as, ok := a.([]string); ok {
		bs, ok := b.([]string)
		if !ok {
			return false
		}
		return reflect.DeepEqual(sortedCopy(as), sortedCopy(bs))
	}
	return reflect.DeepEqual(a, b)
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}

// normalizeExpectedValue coerces caller-supplied expectation values into the types oracles
// report, e.g. "1000" for a numeric field becomes int64(1000).
func normalizeExpectedValue(field string, v interface{}) interface{} {
	switch field {
	case common.FieldBalance, common.FieldMaxAutomaticTokenAssociations, common.FieldAutoRenewPeriod,
		common.FieldDecimals, common.FieldTotalSupply, common.FieldMaxSupply, common.FieldNodeId:
		if s, ok := v.(string); ok {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
		}
		if i, ok := asInt64(v); ok {
			return i
		}
	case common.FieldStakedNodeId:
		if v == nil {
			return nil
		}
		if s, ok := v.(string); ok {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				v = i
			}
		}
		if i, ok := asInt64(v); ok {
			if i < 0 {
				return nil
			}
			return i
		}
	case common.FieldKey, common.FieldAdminKey, common.FieldSubmitKey:
		if s, ok := v.(string); ok {
			return normalizeKeyString(s)
		}
	case common.FieldEvmAddress:
		if s, ok := v.(string); ok {
			return normalizeHexString(s)
		}
	}
	return v
}
