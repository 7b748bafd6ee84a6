package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/captioner/internal/events"
	"github.com/smazurov/captioner/internal/ffmpeg"
	"github.com/smazurov/captioner/internal/logging"
	"github.com/smazurov/captioner/internal/render"
	"github.com/spf13/cobra"
)

type renderFlags struct {
	params    ffmpeg.BurnParams
	options   []string
	timeoutMS int
	quiet     bool
}

// CreateRenderCmd creates the render command.
func CreateRenderCmd(settings SettingsFunc) *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render --input <video> --subs <file> --output <video>",
		Short: "Burn subtitles into a video with ffmpeg",
		Long: `Builds an ffmpeg subtitle burn-in command, runs it, and prints decoded progress.
Interrupting the command stops ffmpeg gracefully.`,
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			s := settings()
			timeout := s.DefaultTimeout
			if c.Flags().Changed("timeout") {
				timeout = time.Duration(flags.timeoutMS) * time.Millisecond
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code := runRender(ctx, c.OutOrStdout(), s.Tools, timeout, flags)
			stop()
			os.Exit(int(code))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.params.Input, "input", "i", "", "Source video")
	f.StringVarP(&flags.params.Subtitles, "subs", "s", "", "Subtitle file (.srt, .ass, .vtt)")
	f.StringVarP(&flags.params.Output, "output", "o", "", "Output video")
	f.StringVar(&flags.params.ForceStyle, "force-style", "", "ASS style override, e.g. FontSize=24")
	f.StringVar(&flags.params.Charenc, "charenc", "", "Subtitle character encoding")
	f.StringVar(&flags.params.Encoder, "encoder", "", "Video encoder (default libx264)")
	f.IntVar(&flags.params.CRF, "crf", 0, "Constant rate factor, 0 for the encoder default")
	f.StringVar(&flags.params.Preset, "preset", "", "Encoder preset")
	f.BoolVarP(&flags.params.Overwrite, "overwrite", "y", false, "Replace an existing output file")
	f.StringSliceVar(&flags.options, "option", nil, "Render option key, repeatable (see GET /api/options)")
	f.IntVar(&flags.timeoutMS, "timeout", 0, "Graceful timeout in milliseconds, 0 waits forever")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "Only print the final result")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("subs")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runRender(ctx context.Context, stdout io.Writer, tools ffmpeg.Tools, timeout time.Duration, flags renderFlags) exitCode {
	bus := events.New()
	runner := render.NewRunner(&render.Options{
		Logger:   logging.GetLogger("render"),
		EventBus: bus,
		Tools:    tools,
		Timeout:  timeout,
	})
	defer runner.CloseAll()

	if !flags.quiet {
		unsub := bus.Subscribe(func(e events.JobProgressEvent) {
			fmt.Fprintf(stdout, "\rframe=%d fps=%.1f speed=%s %5.1f%%", e.Frame, e.FPS, e.Speed, e.Percent)
		})
		defer unsub()
	}

	params := flags.params
	for _, key := range flags.options {
		params.Options = append(params.Options, ffmpeg.OptionType(key))
	}

	info, err := runner.Render(&params, render.RunOptions{})
	if err != nil {
		fmt.Fprintln(stdout, "error:", err)
		return exitUsage
	}

	done := make(chan render.Info, 1)
	go func() {
		final, _ := runner.Wait(info.ID)
		done <- final
	}()

	var final render.Info
	select {
	case final = <-done:
	case <-ctx.Done():
		_ = runner.Cancel(info.ID)
		final = <-done
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s: %s", final.ID, final.State)
	if final.Progress != nil {
		fmt.Fprintf(stdout, " frames=%d time=%s", final.Progress.Frame, final.Progress.Elapsed)
	}
	if final.Error != "" {
		fmt.Fprintf(stdout, " error=%q", final.Error)
	}
	fmt.Fprintln(stdout)

	switch final.State {
	case render.StateCompleted:
		return exitOK
	case render.StateCancelled:
		return exitCanceled
	default:
		return exitFailure
	}
}
