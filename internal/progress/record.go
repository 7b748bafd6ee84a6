package progress

import (
	"strconv"
	"strings"
	"time"
)

// Status values reported on the terminating progress= line.
const (
	StatusContinue = "continue"
	StatusEnd      = "end"
)

// Record is one decoded ffmpeg progress frame.
type Record struct {
	Frame           uint64        `json:"frame"`
	FPS             float64       `json:"fps"`
	Bitrate         string        `json:"bitrate"`
	TotalSize       uint64        `json:"total_size"`
	Elapsed         time.Duration `json:"elapsed"`
	DuplicateFrames int64         `json:"dup_frames"`
	DroppedFrames   int64         `json:"drop_frames"`
	Speed           string        `json:"speed"`
	Status          string        `json:"status"`
}

// Done reports whether the encoder announced the end of the stream.
func (r *Record) Done() bool {
	return r.Status == StatusEnd
}

// SpeedFactor returns the numeric part of Speed ("1.5x" -> 1.5).
// ffmpeg reports "N/A" until the first frame has been muxed.
func (r *Record) SpeedFactor() (float64, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.Speed), "x"))
	if s == "" || s == notAvailable {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BitrateKbps returns Bitrate in kbit/s ("2345.6kbits/s" -> 2345.6).
func (r *Record) BitrateKbps() (float64, bool) {
	s := strings.TrimSpace(r.Bitrate)
	s = strings.TrimSuffix(s, "kbits/s")
	s = strings.TrimSuffix(s, "k")
	if s == "" || s == notAvailable {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
