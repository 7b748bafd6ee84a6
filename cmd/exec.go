package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/smazurov/captioner/internal/logging"
	"github.com/smazurov/captioner/internal/process"
	"github.com/spf13/cobra"
)

type execFlags struct {
	timeoutMS int
	noCapture bool
	stream    bool
}

// CreateExecCmd creates the exec command.
func CreateExecCmd(settings SettingsFunc) *cobra.Command {
	var flags execFlags

	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command line>",
		Short: "Run a command through the process executor",
		Long: `Runs a command line, split on whitespace with quote grouping, and prints what it wrote.
After --timeout the child is asked to stop, then killed. The exit status of the child is returned.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(c *cobra.Command, args []string) {
			timeout := time.Duration(flags.timeoutMS) * time.Millisecond
			if !c.Flags().Changed("timeout") {
				timeout = settings().DefaultTimeout
			}
			code := runExec(c.OutOrStdout(), c.ErrOrStderr(), strings.Join(args, " "), timeout, flags)
			os.Exit(int(code))
		},
	}

	cmd.Flags().IntVar(&flags.timeoutMS, "timeout", 0, "Graceful timeout in milliseconds, 0 waits forever")
	cmd.Flags().BoolVar(&flags.noCapture, "no-capture", false, "Discard the child's output")
	cmd.Flags().BoolVar(&flags.stream, "stream", false, "Print stdout chunks as they arrive")
	return cmd
}

func runExec(stdout, stderr io.Writer, command string, timeout time.Duration, flags execFlags) exitCode {
	logger := logging.GetLogger("process")

	exec := process.New(logger)
	defer exec.Close()

	if err := exec.SetCommand(command); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	exec.CaptureOutput(!flags.noCapture)
	if flags.stream {
		exec.SetCallback(func(chunk []byte) {
			stdout.Write(chunk)
		})
	}

	if err := exec.Start(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		switch {
		case errors.Is(err, process.ErrInvalidCommand):
			return exitUsage
		case errors.Is(err, process.ErrSpawn):
			return exitCode(127)
		}
		return exitFailure
	}

	out, err := exec.WaitUntilFinished(timeout)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}

	if !flags.stream {
		io.WriteString(stdout, out.Stdout)
	}
	io.WriteString(stderr, out.Stderr)

	code := exec.ExitCode()
	if code < 0 {
		fmt.Fprintln(stderr, "process was terminated")
		return exitFailure
	}
	return exitCode(code)
}
