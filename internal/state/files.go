package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"slowmovie/internal/fileutil"
)

const (
	positionsDirName = "positions"
	nowPlayingFile   = "now_playing"
	progressSuffix   = ".progress"
)

// FileStore keeps one small text file per record under a state directory.
// Every write goes through an atomic replace so a crash leaves either the old
// or the new value on disk.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// OpenFiles prepares the directory layout used by the files backend.
func OpenFiles(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, storageError("open", "", errors.New("state directory is empty"))
	}
	if err := os.MkdirAll(filepath.Join(dir, positionsDirName), 0o755); err != nil {
		return nil, storageError("open", "", fmt.Errorf("ensure state directory: %w", err))
	}
	return &FileStore{root: dir}, nil
}

// Root returns the state directory backing the store.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) positionPath(video string) string {
	return filepath.Join(s.root, positionsDirName, video+progressSuffix)
}

func (s *FileStore) nowPlayingPath() string {
	return filepath.Join(s.root, nowPlayingFile)
}

// parsePosition accepts integer and decimal forms so files written by older
// players ("1234.0") stay readable.
func parsePosition(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, nil
	}
	position, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse position %q: %w", value, err)
	}
	if err := validatePosition(position); err != nil {
		return 0, err
	}
	return position, nil
}

func formatPosition(position float64) string {
	return strconv.FormatFloat(position, 'f', -1, 64) + "\n"
}

func (s *FileStore) readPosition(video string) (float64, bool, error) {
	data, err := os.ReadFile(s.positionPath(video))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageError("read position", video, err)
	}
	position, err := parsePosition(string(data))
	if err != nil {
		return 0, false, storageError("read position", video, err)
	}
	return position, true, nil
}

func (s *FileStore) writePosition(video string, position float64) error {
	if err := fileutil.WriteFileAtomic(s.positionPath(video), []byte(formatPosition(position)), 0o644); err != nil {
		return storageError("write position", video, err)
	}
	return nil
}

func (s *FileStore) writeNowPlaying(video string) error {
	if err := fileutil.WriteFileAtomic(s.nowPlayingPath(), []byte(video+"\n"), 0o644); err != nil {
		return storageError("write now playing", video, err)
	}
	return nil
}

func (s *FileStore) Position(ctx context.Context, video string) (float64, error) {
	if err := validateVideo(video); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	position, _, err := s.readPosition(video)
	return position, err
}

func (s *FileStore) SetPosition(ctx context.Context, video string, position float64) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	if err := validatePosition(position); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePosition(video, position)
}

func (s *FileStore) EnsurePosition(ctx context.Context, video string) (bool, error) {
	if err := validateVideo(video); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.positionPath(video))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, storageError("ensure position", video, err)
	}
	if err := s.writePosition(video, 0); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) NowPlaying(ctx context.Context, playlist []string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, err := s.rawNowPlaying()
	if err != nil {
		return "", false, err
	}
	if video == "" || !contains(playlist, video) {
		return "", false, nil
	}
	return video, true, nil
}

func (s *FileStore) rawNowPlaying() (string, error) {
	data, err := os.ReadFile(s.nowPlayingPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", storageError("read now playing", "", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) SetNowPlaying(ctx context.Context, video string) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeNowPlaying(video)
}

// Commit writes the position before the current-video pointer. Each file is
// replaced atomically; a crash between the two leaves the previous pointer,
// which resumes the same video at its new position.
func (s *FileStore) Commit(ctx context.Context, video string, position float64, nowPlaying string) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	if err := validateVideo(nowPlaying); err != nil {
		return err
	}
	if err := validatePosition(position); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writePosition(video, position); err != nil {
		return err
	}
	return s.writeNowPlaying(nowPlaying)
}

func (s *FileStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nowPlaying, err := s.rawNowPlaying()
	if err != nil {
		return Snapshot{}, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, positionsDirName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, storageError("list positions", "", err)
	}
	snap := Snapshot{NowPlaying: nowPlaying}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, progressSuffix) {
			continue
		}
		video := strings.TrimSuffix(name, progressSuffix)
		position, ok, err := s.readPosition(video)
		if err != nil {
			return Snapshot{}, err
		}
		if !ok {
			continue
		}
		rec := Record{Video: video, Position: position}
		if info, err := entry.Info(); err == nil {
			rec.UpdatedAt = info.ModTime().UTC().Truncate(time.Millisecond)
		}
		snap.Positions = append(snap.Positions, rec)
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].Video < snap.Positions[j].Video
	})
	return snap, nil
}

func (s *FileStore) Forget(ctx context.Context, video string) error {
	if err := validateVideo(video); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.positionPath(video)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageError("forget position", video, err)
	}
	return nil
}
