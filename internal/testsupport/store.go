package testsupport

import (
	"context"
	"testing"

	"timedtext/internal/captionstore"
)

// MustOpenStore opens an in-memory caption store for tests and registers
// cleanup.
func MustOpenStore(t testing.TB) *captionstore.Store {
	t.Helper()

	store, err := captionstore.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("captionstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
