package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// RedactEndpoint keeps scheme and host of an endpoint and replaces the rest (credentials,
// api keys in path or query) with a short hash so logs can still tell endpoints apart.
func RedactEndpoint(endpoint string) string {
	hasher := sha256.New()
	hasher.Write([]byte(endpoint))
	hash := hex.EncodeToString(hasher.Sum(nil))[:12]

	parsedURL, err := url.Parse(endpoint)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return hash
	}
	if parsedURL.User == nil && parsedURL.RawQuery == "" {
		return parsedURL.Scheme + "://" + parsedURL.Host + parsedURL.Path
	}

	return parsedURL.Scheme + "://" + parsedURL.Host + "#hash=" + hash
}
