package cli

import (
	"os"

	"github.com/spf13/cobra"

	"go-screen-recorder/internal/core/domain"
)

func progressTo(f *Formatter, op string) domain.ProgressFunc {
	last := -1
	return func(pct int) {
		if pct == last {
			return
		}
		last = pct
		f.Percent(op, pct)
	}
}

func NewTrimCmd(deps *Dependencies) *cobra.Command {
	var start, end float64

	cmd := &cobra.Command{
		Use:   "trim <id>",
		Short: "Save the part of a recording between --start and --end as a new recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			rec, err := deps.Editor.Trim(cmd.Context(), args[0], start, end, progressTo(f, "Trimming"))
			if err != nil {
				return err
			}
			f.Saved(rec)
			return nil
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "Start offset in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "End offset in seconds")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func NewSplitCmd(deps *Dependencies) *cobra.Command {
	var points []float64

	cmd := &cobra.Command{
		Use:     "split <id>",
		Short:   "Split a recording at the given offsets",
		Example: "  recorder split 65f1c0ffee --at 30 --at 90",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			recs, err := deps.Editor.Split(cmd.Context(), args[0], points, progressTo(f, "Splitting"))
			if err != nil {
				return err
			}
			for i := range recs {
				f.Saved(&recs[i])
			}
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&points, "at", nil, "Split offset in seconds (repeatable)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func NewJoinCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "join <id> <id> [id...]",
		Short: "Concatenate recordings in the given order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			rec, err := deps.Editor.Join(cmd.Context(), args, progressTo(f, "Joining"))
			if err != nil {
				return err
			}
			f.Saved(rec)
			return nil
		},
	}
}

func NewConvertCmd(deps *Dependencies) *cobra.Command {
	var format, quality string

	cmd := &cobra.Command{
		Use:   "convert <id>",
		Short: "Re-encode a recording to another container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			rec, err := deps.Editor.Convert(cmd.Context(), args[0], format, domain.ConvertQuality(quality), progressTo(f, "Converting"))
			if err != nil {
				return err
			}
			f.Saved(rec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "mp4", "Target format (mp4, mkv, webm)")
	cmd.Flags().StringVarP(&quality, "quality", "q", string(domain.QualityMedium), "Quality preset (high, medium, low)")
	return cmd
}
