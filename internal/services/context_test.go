package services_test

import (
	"context"
	"testing"

	"slowmovie/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithVideo(ctx, "metropolis.mp4")
	ctx = services.WithTick(ctx, 42)
	ctx = services.WithState(ctx, "extracting")
	ctx = services.WithRunID(ctx, "run-123")

	if video, ok := services.VideoFromContext(ctx); !ok || video != "metropolis.mp4" {
		t.Fatalf("unexpected video: %v %v", video, ok)
	}
	if tick, ok := services.TickFromContext(ctx); !ok || tick != 42 {
		t.Fatalf("unexpected tick: %v %v", tick, ok)
	}
	if state, ok := services.StateFromContext(ctx); !ok || state != "extracting" {
		t.Fatalf("unexpected state: %v %v", state, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithVideo(ctx, "")
	ctx = services.WithState(ctx, "")
	if _, ok := services.VideoFromContext(ctx); ok {
		t.Fatal("expected no video value")
	}
	if _, ok := services.StateFromContext(ctx); ok {
		t.Fatal("expected no state value")
	}
	if _, ok := services.TickFromContext(ctx); ok {
		t.Fatal("expected no tick value")
	}
}
