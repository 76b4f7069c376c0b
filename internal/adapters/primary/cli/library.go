package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved recordings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			recs, err := deps.Library.List(ctx)
			if err != nil {
				return err
			}
			total, err := deps.Library.Usage(ctx)
			if err != nil {
				return err
			}
			NewFormatter(os.Stdout).RecordingList(recs, total)
			return nil
		},
	}
}

func NewDeleteCmd(deps *Dependencies) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := NewFormatter(os.Stdout)
			if all {
				if err := deps.Library.Clear(cmd.Context()); err != nil {
					return err
				}
				f.Success("Library cleared")
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("pass at least one recording id or --all")
			}
			for _, id := range args {
				if err := deps.Library.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				f.Success("Deleted " + id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every recording")
	return cmd
}
