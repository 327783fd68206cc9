package oracle

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/erpc/tck/keys"
)

// FlexInt64 decodes integers that may arrive either as JSON numbers or as decimal strings.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	if strings.ContainsAny(s, ".eE") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", s, err)
		}
		*f = FlexInt64(int64(v))
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexInt64(v)
	return nil
}

func (f FlexInt64) Int64() int64 { return int64(f) }

// MirrorKey is the {_type, key} envelope the read replica uses for every key field.
type MirrorKey struct {
	Type string `json:"_type"`
	Key  string `json:"key"`
}

func (k *MirrorKey) normalized() string {
	if k == nil {
		return ""
	}
	return normalizeKey(k.Key)
}

// normalizeKey reduces any key encoding to raw lowercase hex. Keys that cannot be parsed
// (key lists, threshold keys) are kept as lowercase hex so they still compare verbatim.
func normalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	n, err := keys.NormalizePublicKey(s)
	if err != nil {
		return strings.ToLower(strings.TrimPrefix(s, "0x"))
	}
	return n
}

func normalizeEvmAddress(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// normalizeEntityString turns the various "no entity" spellings into "".
func normalizeEntityString(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if v == "0.0.0" {
		return ""
	}
	return v
}

func formatEndpoint(ip string, domain string, port int64) string {
	host := ip
	if host == "" {
		host = domain
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func sortedEndpoints(eps []string) []string {
	out := make([]string, 0, len(eps))
	out = append(out, eps...)
	sort.Strings(out)
	return out
}
