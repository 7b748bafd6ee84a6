package process

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/smazurov/captioner/internal/logging"
)

// chunkSize is the fixed read buffer of a pump.
const chunkSize = 4096

// pump drains one pipe until end-of-stream.
type pump struct {
	name     string
	r        *os.File
	capture  bool
	callback Callback
	logger   logging.Logger
	result   chan string // receives the captured text exactly once
	busy     atomic.Bool // set while the callback runs
}

func newPump(name string, r *os.File, capture bool, callback Callback, logger logging.Logger) *pump {
	return &pump{
		name:     name,
		r:        r,
		capture:  capture,
		callback: callback,
		logger:   logger,
		result:   make(chan string, 1),
	}
}

// run reads until EOF or any read error. Errors end the stream quietly,
// a killed child severs its pipes mid-read.
func (p *pump) run() {
	var out strings.Builder
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Output pump panicked", "stream", p.name, "panic", r)
		}
		p.result <- out.String()
	}()

	buf := make([]byte, chunkSize)
	for {
		n, err := p.r.Read(buf)
		if n > 0 {
			if p.capture {
				out.Write(buf[:n])
			}
			if p.callback != nil {
				p.deliver(buf[:n])
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Debug("Output stream closed", "stream", p.name, "error", err)
			}
			return
		}
	}
}

// deliver invokes the callback. A panicking callback must not stop the
// drain or the child would block on a full pipe.
func (p *pump) deliver(chunk []byte) {
	p.busy.Store(true)
	defer func() {
		p.busy.Store(false)
		if r := recover(); r != nil {
			p.logger.Error("Output callback panicked", "stream", p.name, "panic", r)
		}
	}()
	p.callback(chunk)
}
