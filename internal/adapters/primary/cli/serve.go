package cli

import (
	"github.com/spf13/cobra"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps.Logger.Infow("starting http server", "addr", deps.Config.Addr())
			return deps.Serve(cmd.Context())
		},
	}
}
