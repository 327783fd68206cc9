package resiliency

import (
	"context"
	"testing"
)

// Eventually is Retry for test bodies: it fails t with the final assertion error on exhaustion.
func Eventually(t testing.TB, assertion func(ctx context.Context) error, opts ...Option) {
	t.Helper()
	if err := Retry(context.Background(), assertion, opts...); err != nil {
		t.Fatalf("condition not met: %v", err)
	}
}
