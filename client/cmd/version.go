package cmd

import (
	"github.com/spf13/cobra"

	"github.com/genup/genup/version"
)

var (
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "prints genup version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.GenupVersion())
		},
	}
)
