// Package process runs external tools as child processes.
//
// An Executor owns one child at a time:
//   - The command line is split into words with simple quoting rules
//   - Stdout and stderr are drained concurrently so the child never
//     blocks on a full pipe
//   - Stdout chunks can be streamed to a callback while being captured
//   - WaitUntilFinished bounds the wait: half the timeout passively, then
//     a graceful stop request (SIGTERM, or WM_CLOSE on Windows), then a
//     force kill
//   - Close kills a running child outright and releases all descriptors
//
// Example usage:
//
//	exec := process.New(logger)
//	defer exec.Close()
//
//	exec.SetCommand(`ffmpeg -hide_banner -progress pipe:1 -i "my clip.mp4" out.mp4`)
//	exec.CaptureOutput(true)
//	exec.SetCallback(func(chunk []byte) {
//	    rec, err := parser.Receive(chunk)
//	    ...
//	})
//	if err := exec.Start(); err != nil {
//	    return err
//	}
//	out, err := exec.WaitUntilFinished(30 * time.Second)
package process
