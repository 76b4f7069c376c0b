package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

const doctorTimeout = 10 * time.Second

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Check prerequisites",
		Annotations: map[string]string{annotationStore: storeOptional},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			f := NewFormatter(os.Stdout)
			ok := true

			if version, err := deps.Probe.Version(ctx); err != nil {
				f.Check("ffmpeg", false, err.Error())
				ok = false
			} else {
				f.Check("ffmpeg", true, version)
			}

			for _, kind := range []domain.SourceKind{domain.SourceScreen, domain.SourceWebcam, domain.SourceMicrophone} {
				opener, found := deps.Openers[kind]
				if !found {
					f.Check(string(kind), false, "no capture backend configured")
					continue
				}
				prober, canProbe := opener.(ports.SourceProber)
				if !canProbe {
					f.Check(string(kind), true, "availability is checked when recording starts")
					continue
				}
				if err := prober.Probe(ctx); err != nil {
					f.Check(string(kind), false, err.Error())
					continue
				}
				f.Check(string(kind), true, "available")
			}

			if err := pingStore(ctx, deps); err != nil {
				f.Check("mongodb", false, err.Error())
				ok = false
			} else {
				f.Check("mongodb", true, deps.Config.Mongo.URI)
			}

			if ok {
				f.Success("\nReady to record")
			} else {
				f.Warning("\nSome prerequisites are missing")
			}
			return nil
		},
	}
}

func pingStore(ctx context.Context, deps *Dependencies) error {
	if deps.StoreErr != nil {
		return deps.StoreErr
	}
	return deps.PingStore(ctx)
}
