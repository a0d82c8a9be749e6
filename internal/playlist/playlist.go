package playlist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"slowmovie/internal/config"
	"slowmovie/internal/logging"
	"slowmovie/internal/services"
)

// SupportedExtensions lists the container extensions picked up by a
// directory scan, lower case with the leading dot.
var SupportedExtensions = []string{".avi", ".m4v", ".mkv", ".mov", ".mp4", ".webm"}

// PositionEnsurer creates missing position records.
type PositionEnsurer interface {
	EnsurePosition(ctx context.Context, video string) (bool, error)
}

// Playlist is the ordered set of videos for one tick.
type Playlist struct {
	Dir    string
	Videos []string
	// Dropped holds explicit entries that were skipped because their file
	// does not exist.
	Dropped []string
	// Scanned is true when Videos came from a directory scan.
	Scanned bool
}

// Path returns the absolute location of video.
func (p Playlist) Path(video string) string {
	return filepath.Join(p.Dir, video)
}

// Contains reports whether video is part of the playlist.
func (p Playlist) Contains(video string) bool {
	return p.Index(video) >= 0
}

// Index returns the position of video in the playlist, or -1.
func (p Playlist) Index(video string) int {
	for i, v := range p.Videos {
		if v == video {
			return i
		}
	}
	return -1
}

// Next returns the entry after video, wrapping to the first entry. A video
// that is not in the playlist is followed by the first entry.
func (p Playlist) Next(video string) string {
	if len(p.Videos) == 0 {
		return ""
	}
	idx := p.Index(video)
	if idx < 0 {
		return p.Videos[0]
	}
	return p.Videos[(idx+1)%len(p.Videos)]
}

// IsSupported reports whether name has a recognised container extension and
// is not a dotfile.
func IsSupported(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Resolve builds the playlist for cfg. Missing explicit entries are logged
// as warnings and skipped. An empty result is services.ErrEmptyPlaylist.
// When store is non-nil, a zero position record is created for every
// resolved video that lacks one.
func Resolve(ctx context.Context, cfg *config.Config, store PositionEnsurer, logger *slog.Logger) (Playlist, error) {
	if cfg == nil {
		return Playlist{}, services.Wrap(services.ErrConfiguration, "playlist", "resolve", "config is required", nil)
	}
	logger = logging.NewComponentLogger(logger, "playlist")
	dir := cfg.Paths.VideoDir
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Playlist{}, services.Wrap(services.ErrConfiguration, "playlist", "resolve",
				fmt.Sprintf("video directory %q does not exist", dir), nil)
		}
		return Playlist{}, services.Wrap(services.ErrConfiguration, "playlist", "resolve", dir, err)
	}
	if !info.IsDir() {
		return Playlist{}, services.Wrap(services.ErrConfiguration, "playlist", "resolve",
			fmt.Sprintf("video directory %q is not a directory", dir), nil)
	}

	list := Playlist{Dir: dir}
	if len(cfg.Playback.Playlist) > 0 {
		var reasons map[string]string
		list.Videos, list.Dropped, reasons = filterExisting(dir, cfg.Playback.Playlist)
		for _, dropped := range list.Dropped {
			logging.WarnWithContext(logger, "playlist entry skipped", "playlist_entry_skipped",
				logging.Video(dropped),
				logging.String("reason", reasons[dropped]),
				logging.String("video_dir", dir),
				logging.String(logging.FieldErrorHint, "list bare file names from video_dir in playback.playlist"),
				logging.String(logging.FieldImpact, "entry is not played until it names an existing file"),
			)
		}
	} else {
		list.Scanned = true
		list.Videos, err = Scan(dir)
		if err != nil {
			return Playlist{}, err
		}
	}

	if len(list.Videos) == 0 {
		return list, services.Wrap(services.ErrEmptyPlaylist, "playlist", "resolve",
			fmt.Sprintf("no playable videos in %q", dir), nil)
	}

	if store != nil {
		for _, video := range list.Videos {
			created, err := store.EnsurePosition(ctx, video)
			if err != nil {
				return list, err
			}
			if created {
				logger.Info("new video added", logging.Video(video))
			}
		}
	}
	return list, nil
}

// Scan lists supported videos in dir in lexicographic order.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "playlist", "scan", dir, err)
	}
	videos := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !IsSupported(entry.Name()) {
			continue
		}
		if entry.IsDir() {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(dir, entry.Name())); err != nil || info.IsDir() {
				continue
			}
		}
		videos = append(videos, entry.Name())
	}
	sort.Strings(videos)
	return videos, nil
}

// filterExisting keeps entries that name a regular file directly inside dir.
// Entries with path components never reach the store, which keys records by
// bare filename.
func filterExisting(dir string, entries []string) (kept, dropped []string, reasons map[string]string) {
	reasons = make(map[string]string)
	for _, entry := range entries {
		if reason := skipReason(dir, entry); reason != "" {
			dropped = append(dropped, entry)
			reasons[entry] = reason
			continue
		}
		kept = append(kept, entry)
	}
	return kept, dropped, reasons
}

func skipReason(dir, entry string) string {
	if filepath.Base(entry) != entry || entry == "." || entry == ".." {
		return "not a bare file name"
	}
	info, err := os.Stat(filepath.Join(dir, entry))
	switch {
	case err != nil:
		return "file not found"
	case info.IsDir():
		return "is a directory"
	}
	return ""
}
