package config

const (
	defaultVideoDir               = "~/slowmovie/videos"
	defaultStateDir               = "~/.local/share/slowmovie/state"
	defaultLogDir                 = "~/.local/share/slowmovie/logs"
	defaultLogRetentionDays       = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultDisplayWidth           = 800
	defaultDisplayHeight          = 480
	defaultDisplaySink            = SinkPNG
	defaultFrameDelaySeconds      = 120.0
	defaultIncrement              = 4.0
	defaultBrightness             = 1.0
	defaultContrast               = 1.0
	defaultStartFrame             = 0
	defaultFrameRatePolicy        = FrameRateStream
	defaultMaxConsecutiveFailures = 5
	defaultStateBackend           = BackendSQLite
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
)

// Display sinks.
const (
	SinkPNG     = "png"
	SinkCommand = "command"
)

// State store backends.
const (
	BackendSQLite = "sqlite"
	BackendFiles  = "files"
)

// Frame rate policies used to convert a frame index into a timecode.
const (
	// FrameRateStream reads the native rate from stream metadata and falls
	// back to the fixed rate when the probe does not report one.
	FrameRateStream = "stream"
	// FrameRateFixed always assumes 24000/1001 frames per second.
	FrameRateFixed = "fixed"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideoDir: defaultVideoDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Display: Display{
			Width:  defaultDisplayWidth,
			Height: defaultDisplayHeight,
			Sink:   defaultDisplaySink,
		},
		Playback: Playback{
			FrameDelay:             defaultFrameDelaySeconds,
			Increment:              defaultIncrement,
			Brightness:             defaultBrightness,
			Contrast:               defaultContrast,
			StartFrame:             defaultStartFrame,
			FrameRatePolicy:        defaultFrameRatePolicy,
			MaxConsecutiveFailures: defaultMaxConsecutiveFailures,
		},
		State: State{
			Backend: defaultStateBackend,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
