package testsupport

import (
	"context"
	"testing"

	"slowmovie/internal/config"
	"slowmovie/internal/state"
)

// MustOpenStore opens the configured state backend for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) state.Store {
	t.Helper()

	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustPosition reads the stored position of video or fails the test.
func MustPosition(t testing.TB, store state.Store, video string) float64 {
	t.Helper()

	position, err := store.Position(context.Background(), video)
	if err != nil {
		t.Fatalf("store.Position(%q): %v", video, err)
	}
	return position
}

// MustSetPosition stores the position of video or fails the test.
func MustSetPosition(t testing.TB, store state.Store, video string, position float64) {
	t.Helper()

	if err := store.SetPosition(context.Background(), video, position); err != nil {
		t.Fatalf("store.SetPosition(%q): %v", video, err)
	}
}
