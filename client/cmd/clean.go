package cmd

import (
	"github.com/spf13/cobra"

	"github.com/genup/genup/client/internal/updatemanager"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "removes downloads left by previous checks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		manager := updatemanager.NewManager(cfg.ManagerConfig())
		if err := manager.CleanUp(); err != nil {
			return err
		}

		cmd.Printf("cleaned %s\n", manager.TempDir())
		return nil
	},
}
