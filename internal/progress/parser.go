// Package progress decodes the key=value stream ffmpeg writes with -progress.
package progress

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	keyFrame      = "frame"
	keyFPS        = "fps"
	keyStream     = "stream_"
	keyBitrate    = "bitrate"
	keyTotalSize  = "total_size"
	keyOutTimeUS  = "out_time_us"
	keyOutTimeMS  = "out_time_ms"
	keyOutTime    = "out_time"
	keyDupFrames  = "dup_frames"
	keyDropFrames = "drop_frames"
	keySpeed      = "speed"
	keyProgress   = "progress"

	notAvailable = "N/A"
)

// Parser turns arbitrarily split chunks of progress output into records.
// State survives across Receive calls so a frame may be split anywhere.
// A Parser is not safe for concurrent use.
type Parser struct {
	tail  []byte   // unterminated line carried into the next chunk
	lines []string // terminated lines of the record in progress
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Receive consumes chunk and returns the most recent record completed by it,
// or nil when none decoded. The whole chunk is always consumed. Every record
// in the chunk that fails to decode contributes to the joined error, so a
// non-nil record and a non-nil error may be returned together.
func (p *Parser) Receive(chunk []byte) (*Record, error) {
	var (
		latest *Record
		errs   []error
	)

	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			p.tail = append(p.tail, chunk...)
			break
		}

		var line string
		if len(p.tail) > 0 {
			p.tail = append(p.tail, chunk[:i]...)
			line = string(p.tail)
			p.tail = p.tail[:0]
		} else {
			line = string(chunk[:i])
		}
		chunk = chunk[i+1:]

		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		p.lines = append(p.lines, line)
		if !strings.HasPrefix(line, keyProgress+"=") {
			continue
		}

		rec, err := decode(p.lines)
		p.lines = p.lines[:0]
		if err != nil {
			errs = append(errs, err)
			continue
		}
		latest = rec
	}

	return latest, errors.Join(errs...)
}

// Reset drops any buffered partial input.
func (p *Parser) Reset() {
	p.tail = p.tail[:0]
	p.lines = p.lines[:0]
}

// Pending returns the number of bytes held for the next chunk: the
// unterminated tail plus buffered field lines.
func (p *Parser) Pending() int {
	n := len(p.tail)
	for _, l := range p.lines {
		n += len(l) + 1
	}
	return n
}

type fields struct {
	lines []string
	pos   int
}

func (f *fields) next(key string) (string, error) {
	if f.pos >= len(f.lines) {
		return "", &MissingFieldError{Field: key}
	}
	line := f.lines[f.pos]
	k, v, ok := strings.Cut(line, "=")
	if !ok || strings.TrimSpace(k) != key {
		return "", &MissingFieldError{Field: key, Line: line}
	}
	f.pos++
	return strings.TrimSpace(v), nil
}

// streams consumes one or more stream_* quantizer lines.
func (f *fields) streams() error {
	if f.pos >= len(f.lines) || !strings.HasPrefix(f.lines[f.pos], keyStream) {
		missing := &MissingFieldError{Field: keyStream + "*"}
		if f.pos < len(f.lines) {
			missing.Line = f.lines[f.pos]
		}
		return missing
	}
	for f.pos < len(f.lines) && strings.HasPrefix(f.lines[f.pos], keyStream) {
		f.pos++
	}
	return nil
}

func (f *fields) unsigned(key string) (uint64, error) {
	v, err := f.next(key)
	if err != nil {
		return 0, err
	}
	if v == notAvailable {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, &FieldError{Field: key, Value: v, Err: err}
	}
	return n, nil
}

func (f *fields) signed(key string) (int64, error) {
	v, err := f.next(key)
	if err != nil {
		return 0, err
	}
	if v == notAvailable {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &FieldError{Field: key, Value: v, Err: err}
	}
	return n, nil
}

func (f *fields) decimal(key string) (float64, error) {
	v, err := f.next(key)
	if err != nil {
		return 0, err
	}
	if v == notAvailable {
		return 0, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &FieldError{Field: key, Value: v, Err: err}
	}
	return n, nil
}

// decode parses one buffered record in strict field order.
func decode(lines []string) (*Record, error) {
	f := &fields{lines: lines}
	rec := &Record{}
	var err error

	if rec.Frame, err = f.unsigned(keyFrame); err != nil {
		return nil, err
	}
	if rec.FPS, err = f.decimal(keyFPS); err != nil {
		return nil, err
	}
	if err = f.streams(); err != nil {
		return nil, err
	}
	if rec.Bitrate, err = f.next(keyBitrate); err != nil {
		return nil, err
	}
	if rec.TotalSize, err = f.unsigned(keyTotalSize); err != nil {
		return nil, err
	}

	us, err := f.signed(keyOutTimeUS)
	if err != nil {
		return nil, err
	}
	// ffmpeg prints a large negative value before the first packet.
	if us > 0 {
		rec.Elapsed = time.Duration(us) * time.Microsecond
	}

	if _, err = f.next(keyOutTimeMS); err != nil {
		return nil, err
	}
	if _, err = f.next(keyOutTime); err != nil {
		return nil, err
	}
	if rec.DuplicateFrames, err = f.signed(keyDupFrames); err != nil {
		return nil, err
	}
	if rec.DroppedFrames, err = f.signed(keyDropFrames); err != nil {
		return nil, err
	}
	if rec.Speed, err = f.next(keySpeed); err != nil {
		return nil, err
	}
	if rec.Status, err = f.next(keyProgress); err != nil {
		return nil, err
	}
	return rec, nil
}
