package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go-screen-recorder/internal/core/domain"
)

// recordOptions holds the flags of the record command.
type recordOptions struct {
	screen     bool
	webcam     bool
	microphone bool
	resolution string
	frameRate  int
	bitrate    int
	title      string
	countdown  int
	duration   time.Duration
}

const stopTimeout = 30 * time.Second

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	defaults := deps.Config.Recording
	opts := recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record in the foreground",
		Long: `Record screen, webcam and microphone in the foreground.

Recording starts after a short countdown. Press Ctrl+C to stop; the recording
is finalized and saved to the library.`,
		Example: `  recorder record                          # screen + microphone at the configured defaults
  recorder record --webcam --resolution 720p
  recorder record --screen=false --webcam -d 30s --title standup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := domain.RecordingConfig{
				CaptureScreen:     opts.screen,
				CaptureWebcam:     opts.webcam,
				CaptureMicrophone: opts.microphone,
				Resolution:        opts.resolution,
				FrameRate:         opts.frameRate,
				VideoBitrate:      opts.bitrate,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runRecord(cmd.Context(), deps, cfg, opts, NewFormatter(os.Stdout))
		},
	}

	cmd.Flags().BoolVar(&opts.screen, "screen", defaults.CaptureScreen, "Capture the screen")
	cmd.Flags().BoolVar(&opts.webcam, "webcam", defaults.CaptureWebcam, "Capture the webcam")
	cmd.Flags().BoolVar(&opts.microphone, "mic", defaults.CaptureMicrophone, "Capture the microphone")
	cmd.Flags().StringVarP(&opts.resolution, "resolution", "r", defaults.Resolution, "Screen resolution (2160p, 1440p, 1080p, 720p, 480p, 360p)")
	cmd.Flags().IntVar(&opts.frameRate, "fps", defaults.FrameRate, "Frame rate")
	cmd.Flags().IntVar(&opts.bitrate, "bitrate", defaults.VideoBitrate, "Video bitrate in bits per second")
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Recording title (default: timestamp)")
	cmd.Flags().IntVar(&opts.countdown, "countdown", 3, "Seconds to wait before recording")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop automatically after this long (0 = until Ctrl+C)")

	return cmd
}

func runRecord(ctx context.Context, deps *Dependencies, cfg domain.RecordingConfig, opts recordOptions, f *Formatter) error {
	for n := opts.countdown; n > 0; n-- {
		f.Countdown(n)
		select {
		case <-ctx.Done():
			f.Info("Cancelled")
			return nil
		case <-time.After(time.Second):
		}
	}

	res, err := deps.Recorder.StartRecording(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	f.RecordingStarted(res)

	var limit <-chan time.Time
	if opts.duration > 0 {
		timer := time.NewTimer(opts.duration)
		defer timer.Stop()
		limit = timer.C
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-limit:
			break loop
		case <-ticker.C:
			f.Progress(deps.Recorder.CurrentActiveDuration(), deps.Recorder.CurrentAccumulatedSize())
		}
	}

	// The command context is already cancelled after Ctrl+C.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	result, err := deps.Recorder.StopRecording(stopCtx)
	if err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	f.RecordingStopped(result)

	rec, err := deps.Library.SaveResult(stopCtx, opts.title, result)
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	f.Saved(rec)
	return nil
}
