package ffmpeg

// Tools names the binaries commands are built for.
// Empty fields fall back to the binaries on PATH.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// BurnParams describes one subtitle burn-in render.
type BurnParams struct {
	// Files
	Input     string // source video
	Subtitles string // .srt, .ass or .vtt rendered into the picture
	Output    string

	// Subtitle styling
	ForceStyle string // ASS override, e.g. "FontName=Arial,FontSize=24"
	Charenc    string // subtitle file encoding when not UTF-8

	// Video encoder
	Encoder string // libx264 when empty
	CRF     int    // 0 = encoder default
	Preset  string // ultrafast .. veryslow

	// Audio
	AudioCodec string // copy when empty

	// Behavior
	Overwrite bool         // -y instead of -n
	Options   []OptionType // extra behavior flags
}
