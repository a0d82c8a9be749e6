package config

import (
	"time"
)

// PlaybackSettings is the fully resolved set of playback parameters for one
// video: the video's override section layered over [playback].
type PlaybackSettings struct {
	FrameDelay      time.Duration
	Increment       float64
	Brightness      float64
	Contrast        float64
	StartFrame      int64
	FrameRatePolicy string
	Overridden      bool
}

// PlaybackFor resolves playback parameters for the named video. Keys missing
// from the video's override fall back to the [playback] value for that key.
func (c *Config) PlaybackFor(video string) PlaybackSettings {
	settings := PlaybackSettings{
		FrameDelay:      secondsToDuration(c.Playback.FrameDelay),
		Increment:       c.Playback.Increment,
		Brightness:      c.Playback.Brightness,
		Contrast:        c.Playback.Contrast,
		StartFrame:      c.Playback.StartFrame,
		FrameRatePolicy: c.Playback.FrameRatePolicy,
	}

	override, ok := c.Videos[video]
	if !ok {
		return settings
	}
	settings.Overridden = true
	if override.FrameDelay != nil {
		settings.FrameDelay = secondsToDuration(*override.FrameDelay)
	}
	if override.Increment != nil {
		settings.Increment = *override.Increment
	}
	if override.Brightness != nil {
		settings.Brightness = *override.Brightness
	}
	if override.Contrast != nil {
		settings.Contrast = *override.Contrast
	}
	if override.StartFrame != nil {
		settings.StartFrame = *override.StartFrame
	}
	if override.FrameRatePolicy != nil && *override.FrameRatePolicy != "" {
		settings.FrameRatePolicy = *override.FrameRatePolicy
	}
	return settings
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
