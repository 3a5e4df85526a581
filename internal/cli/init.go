package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize pantry storage",
		Long:  "Create the configuration and data directories, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			// Opening the session creates the database and schema.
			s, err := a.open()
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			if err := s.Close(); err != nil {
				return fmt.Errorf("finalize storage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pantry initialized (config: %s, data: %s)\n", a.configDir, cfg.DataDir)
			return nil
		},
	}
}
