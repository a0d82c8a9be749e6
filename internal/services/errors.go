package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrEmptyPlaylist   = errors.New("empty playlist")
	ErrVideoNotFound   = errors.New("video not found")
	ErrExtraction      = errors.New("extraction error")
	ErrImageProcessing = errors.New("image processing error")
	ErrDisplay         = errors.New("display error")
	ErrStorage         = errors.New("storage error")
	ErrExternalTool    = errors.New("external tool error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err concerns the system as a whole and should stop
// the process. Errors local to a single video are retried on the next tick.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrEmptyPlaylist):
		return true
	default:
		return false
	}
}

// IsStorage reports whether err originated from persisted playback state.
// Storage failures are fatal for the tick and escalate when they persist.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// Kind returns a short classification label for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrEmptyPlaylist):
		return "empty_playlist"
	case errors.Is(err, ErrVideoNotFound):
		return "video_not_found"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrImageProcessing):
		return "image_processing"
	case errors.Is(err, ErrDisplay):
		return "display"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
