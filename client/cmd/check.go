package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/genup/genup/client/internal/updatemanager"
)

var (
	checkInterval time.Duration

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "checks the manifest and installs a new version when one is published",
		Long: "Reads the version embedded in the installed executable, fetches the manifest and, when the " +
			"published version differs, downloads the installer and starts it. " +
			"With --interval the check is repeated until an update has been downloaded.",
		RunE: checkFunc,
	}
)

func init() {
	checkCmd.Flags().StringVarP(&manifestURL, manifestURLFlag, "u", "", "URL of the manifest document [http|https]://host/path")
	checkCmd.Flags().StringVar(&policy, policyFlag, "", "version comparison: exact (any difference is an update) or newer")
	checkCmd.Flags().DurationVar(&checkInterval, "interval", 0, "repeat the check at this interval until an update is downloaded")
	checkCmd.Flags().Uint64Var(&retries, retriesFlag, 0, "extra attempts for a failed download")
	checkCmd.Flags().DurationVar(&retryDelay, retryDelayFlag, 0, "pause between download attempts")
	checkCmd.Flags().DurationVar(&httpTimeout, httpTimeoutFlag, 0, "timeout of a single HTTP request")
	checkCmd.Flags().StringVar(&userAgent, userAgentFlag, "", "HTTP user agent")
}

func checkFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.ManifestURL == "" {
		return fmt.Errorf("--%s is required", manifestURLFlag)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	SetupCloseHandler(ctx, cancel)

	manager := updatemanager.NewManager(cfg.ManagerConfig())
	runner := updatemanager.NewRunner(manager, printObserver(cmd))

	res, err := runner.Watch(ctx, cfg.ExecutablePath, checkInterval)
	if err != nil {
		return err
	}

	switch {
	case res.UpdateAvailable && res.Launched:
		cmd.Printf("update to %s launched\n", res.LatestVersion)
	case res.UpdateAvailable:
		cmd.Printf("update to %s downloaded to %s\n", res.LatestVersion, res.PayloadPath)
	default:
		cmd.Println("up to date")
	}

	return nil
}
