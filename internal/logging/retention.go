package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names files eligible for pruning: regular files in Dir whose
// name matches Pattern. Paths in Exclude are never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes target files last modified more than retentionDays
// ago and returns how many were removed. Zero or negative retentionDays
// disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	return PruneBefore(logger, time.Now().AddDate(0, 0, -retentionDays), targets...)
}

// PruneBefore removes target files last modified before cutoff.
func PruneBefore(logger *slog.Logger, cutoff time.Time, targets ...RetentionTarget) int {
	removed := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "retention remove failed", "retention_remove_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check ownership of "+filepath.Dir(path)),
					String(FieldImpact, "old file stays on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("pruned old file", String("path", path), String(FieldEventType, "file_pruned"))
			}
		}
	}
	return removed
}

func (t RetentionTarget) expired(cutoff time.Time) []string {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	pattern := strings.TrimSpace(t.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}

	keep := make(map[string]bool, len(t.Exclude))
	for _, path := range t.Exclude {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			keep[abs] = true
		}
	}

	var expired []string
	for _, match := range matches {
		abs, err := filepath.Abs(match)
		if err != nil || keep[abs] {
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		expired = append(expired, abs)
	}
	return expired
}
