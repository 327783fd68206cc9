package util

import (
	"strings"

	"net/http"
)

// ExtractUsefulHeaders picks the response headers worth attaching to error details.
func ExtractUsefulHeaders(r *http.Response) map[string]interface{} {
	var result = make(map[string]interface{})
	if r == nil {
		return result
	}
	for k := range r.Header {
		kl := strings.ToLower(k)
		if strings.HasPrefix(kl, "x-") ||
			strings.Contains(kl, "trace") ||
			strings.Contains(kl, "request-id") ||
			kl == "content-type" ||
			kl == "content-encoding" ||
			kl == "server" ||
			kl == "retry-after" {
			result[kl] = r.Header.Get(k)
		}
	}

	return result
}
