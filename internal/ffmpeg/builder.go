package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultFFmpeg     = "ffmpeg"
	defaultFFprobe    = "ffprobe"
	defaultEncoder    = "libx264"
	defaultAudioCodec = "copy"
)

// Base returns the ffmpeg invocation with standard flags.
// Progress goes to stdout as key=value lines, logs go to stderr with a
// [level] prefix that ParseLogLevel understands.
func (t Tools) Base() string {
	return Quote(orDefault(t.FFmpeg, defaultFFmpeg)) +
		" -hide_banner -nostdin -nostats -loglevel level+info -progress pipe:1"
}

// ProbeBase returns the ffprobe invocation with standard flags.
func (t Tools) ProbeBase() string {
	return Quote(orDefault(t.FFprobe, defaultFFprobe)) + " -hide_banner -v error"
}

// BuildBurnCommand builds the command that renders p.Subtitles into p.Input.
func (t Tools) BuildBurnCommand(p *BurnParams) (string, error) {
	switch {
	case p == nil:
		return "", errors.New("missing render parameters")
	case p.Input == "":
		return "", errors.New("input file is required")
	case p.Subtitles == "":
		return "", errors.New("subtitle file is required")
	case p.Output == "":
		return "", errors.New("output file is required")
	case p.CRF < 0 || p.CRF > 51:
		return "", fmt.Errorf("crf %d out of range 0-51", p.CRF)
	}
	if err := ValidateOptions(p.Options); err != nil {
		return "", err
	}

	var cmd strings.Builder
	cmd.WriteString(t.Base())

	if p.Overwrite {
		cmd.WriteString(" -y")
	} else {
		cmd.WriteString(" -n")
	}

	applyOptions(p.Options, true, &cmd)
	cmd.WriteString(" -i " + Quote(p.Input))

	cmd.WriteString(" -vf " + Quote(SubtitlesFilter(p.Subtitles, p.ForceStyle, p.Charenc)))

	cmd.WriteString(" -c:v " + orDefault(p.Encoder, defaultEncoder))
	if p.CRF > 0 {
		cmd.WriteString(" -crf " + strconv.Itoa(p.CRF))
	}
	if p.Preset != "" {
		cmd.WriteString(" -preset " + p.Preset)
	}
	if !hasOption(p.Options, OptionNoAudio) {
		cmd.WriteString(" -c:a " + orDefault(p.AudioCodec, defaultAudioCodec))
	}

	applyOptions(p.Options, false, &cmd)
	cmd.WriteString(" " + Quote(p.Output))

	return cmd.String(), nil
}

// BuildProbeCommand builds an ffprobe command that prints the container
// duration of input in seconds.
func (t Tools) BuildProbeCommand(input string) (string, error) {
	if input == "" {
		return "", errors.New("input file is required")
	}
	return t.ProbeBase() +
		" -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 " +
		Quote(input), nil
}

// ParseDuration parses the output of a probe command.
func ParseDuration(output string) (time.Duration, error) {
	s := strings.TrimSpace(output)
	if s == "" || s == "N/A" {
		return 0, errors.New("duration not available")
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// SubtitlesFilter returns the subtitles= filter for path.
// The path is escaped for the filter option level and then for the
// filtergraph level.
func SubtitlesFilter(path, forceStyle, charenc string) string {
	filter := "subtitles=" + escapeGraph(escapeOption(path))
	if charenc != "" {
		filter += ":charenc=" + escapeGraph(escapeOption(charenc))
	}
	if forceStyle != "" {
		filter += ":force_style=" + escapeGraph(escapeOption(forceStyle))
	}
	return filter
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
	quoteEscaper  = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

func escapeOption(s string) string { return optionEscaper.Replace(s) }

func escapeGraph(s string) string { return graphEscaper.Replace(s) }

// Quote wraps s in double quotes when the process word splitter would
// otherwise break or alter it.
func Quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\") {
		return s
	}
	return `"` + quoteEscaper.Replace(s) + `"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func hasOption(options []OptionType, key OptionType) bool {
	for _, o := range options {
		if o == key {
			return true
		}
	}
	return false
}
