package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genup/genup/client/internal/updatemanager/manifest"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "prints the entries of a manifest document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if manifestPath == "" {
			return fmt.Errorf("--manifest is required")
		}

		if productName != "" {
			entry, err := manifest.Read(manifestPath, productName)
			if err != nil {
				return err
			}
			cmd.Printf("%s %s %s\n", entry.ProductName, entry.LatestVersion, entry.DownloadURL)
			return nil
		}

		doc, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}
		for _, entry := range doc.Entries() {
			cmd.Printf("%s %s %s\n", entry.ProductName, entry.LatestVersion, entry.DownloadURL)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&manifestPath, "manifest", "", "manifest document")
	showCmd.Flags().StringVar(&productName, "product", "", "only print this product")
}
