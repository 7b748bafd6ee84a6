package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/smazurov/captioner/internal/progress"
	"github.com/spf13/cobra"
)

type progressFlags struct {
	chunkSize int
	asJSON    bool
}

// CreateProgressCmd creates the progress command.
func CreateProgressCmd() *cobra.Command {
	var flags progressFlags

	cmd := &cobra.Command{
		Use:   "progress [file]",
		Short: "Decode a captured ffmpeg -progress stream",
		Long: `Reads the key=value output of "ffmpeg -progress" from a file or stdin in fixed-size
chunks. For every chunk that completes a record, the latest one is printed, so
--chunk-size controls how many intermediate records are shown. Malformed blocks
are reported on stderr.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(c *cobra.Command, args []string) {
			in := c.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					fmt.Fprintln(c.ErrOrStderr(), "error:", err)
					os.Exit(int(exitUsage))
				}
				defer f.Close()
				in = f
			}
			os.Exit(int(runProgress(in, c.OutOrStdout(), c.ErrOrStderr(), flags)))
		},
	}

	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 4096, "Bytes handed to the decoder per read")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print records as JSON lines")
	return cmd
}

func runProgress(in io.Reader, stdout, stderr io.Writer, flags progressFlags) exitCode {
	size := flags.chunkSize
	if size <= 0 {
		size = 4096
	}

	parser := progress.NewParser()
	enc := json.NewEncoder(stdout)
	buf := make([]byte, size)
	failures := 0

	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			rec, err := parser.Receive(buf[:n])
			if err != nil {
				failures++
				fmt.Fprintln(stderr, "decode:", err)
			}
			if rec != nil {
				if flags.asJSON {
					_ = enc.Encode(rec)
				} else {
					fmt.Fprintln(stdout, formatRecord(rec))
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			fmt.Fprintln(stderr, "read:", readErr)
			return exitFailure
		}
	}

	if pending := parser.Pending(); pending > 0 {
		fmt.Fprintf(stderr, "incomplete record at end of input (%d bytes)\n", pending)
	}
	if failures > 0 {
		return exitFailure
	}
	return exitOK
}

func formatRecord(rec *progress.Record) string {
	return fmt.Sprintf("frame=%d fps=%.2f bitrate=%s size=%d time=%s dup=%d drop=%d speed=%s status=%s",
		rec.Frame, rec.FPS, rec.Bitrate, rec.TotalSize, rec.Elapsed,
		rec.DuplicateFrames, rec.DroppedFrames, rec.Speed, rec.Status)
}
