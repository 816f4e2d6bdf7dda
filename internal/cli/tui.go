package cli

import (
	"context"

	"github.com/htmllex/analyzer/internal/client"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTUICommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "tui FILE...",
		Short: "Interactive mode",
		Long: `Open an interactive view with the selected files. Press enter to submit
them and scroll through the results with the arrow keys.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, v)
			if err != nil {
				return err
			}

			// The alternate screen owns the terminal. Logs are written only when verbose.
			log := logger.Discard()
			if s.Verbose {
				log = newLogger(cmd, s)
			}
			ctrl := newController(s, log)
			ctrl.Select(client.PathFiles(args))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return tui.Run(ctx, ctrl, !s.NoColor)
		},
	}
}
