package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genup/genup/client/internal/updatemanager"
	"github.com/genup/genup/client/internal/updatemanager/publisher"
)

var (
	downloadURL    string
	manifestPath   string
	productName    string
	productVersion string
	s3Bucket       string
	s3Key          string

	publishCmd = &cobra.Command{
		Use:   "publish",
		Short: "records a release in a manifest document",
		Long: "Writes the product name and version embedded in --exe, together with the download URL, " +
			"into the manifest. The manifest defaults to <home>/<product>.xml; .json and .yaml paths select other formats. " +
			"With --s3-bucket the written manifest is uploaded to S3 as well.",
		RunE: publishFunc,
	}
)

func init() {
	publishCmd.Flags().StringVar(&downloadURL, "download-url", "", "URL of the installer of this release")
	publishCmd.Flags().StringVar(&manifestPath, "manifest", "", "manifest document to update")
	publishCmd.Flags().StringVar(&productName, "product", "", "product name (default: embedded in --exe)")
	publishCmd.Flags().StringVar(&productVersion, "version", "", "release version (default: embedded in --exe)")
	publishCmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "upload the manifest to this S3 bucket")
	publishCmd.Flags().StringVar(&s3Key, "s3-key", "", "object key of the uploaded manifest (default: the manifest file name)")
	publishCmd.Flags().StringVar(&s3Region, s3RegionFlag, "", "AWS region of the bucket")
	publishCmd.Flags().StringVar(&s3Endpoint, s3EndpointFlag, "", "custom S3 endpoint, e.g. a MinIO server")
}

func publishFunc(cmd *cobra.Command, _ []string) error {
	if downloadURL == "" {
		return fmt.Errorf("--download-url is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manager := updatemanager.NewManager(cfg.ManagerConfig())
	if s3Bucket != "" {
		client, err := publisher.NewS3Client(cmd.Context(), publisher.S3Options{
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return err
		}
		manager.WithUploader(publisher.NewUploader(client))
	}

	path, err := manager.Publish(cmd.Context(), updatemanager.PublishRequest{
		ExePath:      cfg.ExecutablePath,
		ProductName:  productName,
		Version:      productVersion,
		DownloadURL:  downloadURL,
		ManifestPath: manifestPath,
		Bucket:       s3Bucket,
		Key:          s3Key,
	}, printObserver(cmd))
	if err != nil {
		return err
	}

	cmd.Printf("manifest written to %s\n", path)
	return nil
}
