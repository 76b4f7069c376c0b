package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-screen-recorder/internal/adapters/secondary/ffmpeg"
	"go-screen-recorder/internal/config"
	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

const (
	annotationStore = "store"
	storeOptional   = "optional"
)

type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.SugaredLogger
	Recorder ports.RecordingService
	Library  ports.LibraryService
	Editor   ports.EditorService
	Probe    *ffmpeg.Probe
	Openers  map[domain.SourceKind]ports.SourceOpener
	// StoreErr is set when the recording store could not be reached at
	// startup. Only commands annotated with storeOptional run without it.
	StoreErr error
	// PingStore checks that the recording store is reachable.
	PingStore func(ctx context.Context) error
	// Serve runs the HTTP API until ctx is cancelled.
	Serve func(ctx context.Context) error
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recorder",
		Short:         "Record the screen, webcam and microphone",
		Long:          "A recorder that captures screen, webcam and microphone into a single video, keeps a library of recordings and edits them with ffmpeg.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if deps.StoreErr != nil && cmd.Annotations[annotationStore] != storeOptional {
				return fmt.Errorf("recording store unavailable: %w", deps.StoreErr)
			}
			return nil
		},
	}

	rootCmd.Version = deps.Config.Version

	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewDeleteCmd(deps))
	rootCmd.AddCommand(NewTrimCmd(deps))
	rootCmd.AddCommand(NewSplitCmd(deps))
	rootCmd.AddCommand(NewJoinCmd(deps))
	rootCmd.AddCommand(NewConvertCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
