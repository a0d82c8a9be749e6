package state

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"slowmovie/internal/config"
	"slowmovie/internal/services"
)

// Store is the exclusive owner of persisted playback records.
type Store interface {
	// Position returns the saved frame position for video, or 0 when no
	// record exists.
	Position(ctx context.Context, video string) (float64, error)
	// SetPosition durably records the frame position for video.
	SetPosition(ctx context.Context, video string, position float64) error
	// EnsurePosition creates a zero position record for video when none
	// exists and reports whether it did. Existing records are never touched.
	EnsurePosition(ctx context.Context, video string) (bool, error)
	// NowPlaying returns the persisted current video when it names an entry
	// of playlist. ok is false when the record is missing or stale.
	NowPlaying(ctx context.Context, playlist []string) (video string, ok bool, err error)
	// SetNowPlaying durably records the current video.
	SetNowPlaying(ctx context.Context, video string) error
	// Commit records the end-of-tick state: the position of the video that was
	// just advanced and the video that will be current on the next tick.
	Commit(ctx context.Context, video string, position float64, nowPlaying string) error
	// Snapshot returns every persisted record for reporting.
	Snapshot(ctx context.Context) (Snapshot, error)
	// Forget removes the position record for video.
	Forget(ctx context.Context, video string) error
	Close() error
}

// Record is one persisted per-video position.
type Record struct {
	Video     string
	Position  float64
	UpdatedAt time.Time
}

// Snapshot captures the full persisted state.
type Snapshot struct {
	NowPlaying string
	Positions  []Record
}

// PositionOf returns the position recorded for video in the snapshot.
func (s Snapshot) PositionOf(video string) (Record, bool) {
	for _, rec := range s.Positions {
		if rec.Video == video {
			return rec, true
		}
	}
	return Record{}, false
}

// Open constructs the backend selected by cfg.State.Backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "state", "open", "config is required", nil)
	}
	switch cfg.State.Backend {
	case config.BackendFiles:
		store, err := OpenFiles(cfg.Paths.StateDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSQLite, "":
		store, err := OpenSQLite(cfg.StateDBPath())
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "state", "open",
			fmt.Sprintf("unsupported backend %q", cfg.State.Backend), nil)
	}
}

func validateVideo(video string) error {
	if strings.TrimSpace(video) == "" {
		return services.Wrap(services.ErrStorage, "state", "validate", "video name is empty", nil)
	}
	if strings.ContainsAny(video, "/\\\x00") || video == "." || video == ".." {
		return services.Wrap(services.ErrStorage, "state", "validate",
			fmt.Sprintf("video name %q must be a bare filename", video), nil)
	}
	return nil
}

func validatePosition(position float64) error {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return services.Wrap(services.ErrStorage, "state", "validate",
			fmt.Sprintf("position %v must be a non-negative number", position), nil)
	}
	return nil
}

func storageError(operation, video string, err error) error {
	msg := ""
	if video != "" {
		msg = fmt.Sprintf("video %q", video)
	}
	return services.Wrap(services.ErrStorage, "state", operation, msg, err)
}

func contains(playlist []string, video string) bool {
	for _, entry := range playlist {
		if entry == video {
			return true
		}
	}
	return false
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
