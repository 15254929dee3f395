package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/genup/genup/client/internal/config"
	"github.com/genup/genup/client/internal/updatemanager/status"
	"github.com/genup/genup/util"
)

const (
	manifestURLFlag = "manifest-url"
	exeFlag         = "exe"
	tempDirFlag     = "temp-dir"
	policyFlag      = "policy"
	retriesFlag     = "retries"
	retryDelayFlag  = "retry-delay"
	httpTimeoutFlag = "http-timeout"
	userAgentFlag   = "user-agent"
	s3RegionFlag    = "s3-region"
	s3EndpointFlag  = "s3-endpoint"
)

var (
	configPath     string
	logLevel       string
	logFile        string
	manifestURL    string
	executablePath string
	tempDir        string
	policy         string
	retries        uint64
	retryDelay     time.Duration
	httpTimeout    time.Duration
	userAgent      string
	s3Region       string
	s3Endpoint     string
	rootCmd        = &cobra.Command{
		Use:               "genup",
		Short:             "checks for, downloads and launches application updates",
		SilenceUsage:      true,
		PersistentPreRunE: preRun,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultConfigPath := filepath.Join(os.TempDir(), "genup.json")
	if dir, err := os.UserConfigDir(); err == nil {
		defaultConfigPath = filepath.Join(dir, "genup", "config.json")
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "genup config file location")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", config.DefaultLogLevel, "sets genup log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", config.DefaultLogFile, "sets genup log path. If console is specified the log will be output to stderr")
	rootCmd.PersistentFlags().StringVar(&executablePath, exeFlag, "", "installed executable whose embedded version is used (default: the running executable)")
	rootCmd.PersistentFlags().StringVar(&tempDir, tempDirFlag, "", "directory receiving downloads (default: the system temp dir)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
}

func preRun(cmd *cobra.Command, _ []string) error {
	util.SetFlagsFromEnvVars(cmd.Root())
	util.SetFlagsFromEnvVars(cmd)

	if err := util.InitLog(logLevel, logFile); err != nil {
		return fmt.Errorf("failed initializing log %v", err)
	}
	return nil
}

// loadConfig merges the config file with the flags explicitly set on cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	input := config.ConfigInput{
		ConfigPath:     configPath,
		ManifestURL:    manifestURL,
		ExecutablePath: executablePath,
		TempDir:        tempDir,
		Policy:         policy,
		UserAgent:      userAgent,
		S3Region:       s3Region,
		S3Endpoint:     s3Endpoint,
	}

	if cmd.Flag("log-level").Changed {
		input.LogLevel = logLevel
	}
	if cmd.Flag("log-file").Changed {
		input.LogFile = logFile
	}
	if f := cmd.Flags().Lookup(retriesFlag); f != nil && f.Changed {
		input.Retries = &retries
	}
	if f := cmd.Flags().Lookup(retryDelayFlag); f != nil && f.Changed {
		input.RetryDelay = &retryDelay
	}
	if f := cmd.Flags().Lookup(httpTimeoutFlag); f != nil && f.Changed {
		input.HTTPTimeout = &httpTimeout
	}

	cfg, err := config.ReadConfig(input)
	if err != nil {
		return nil, err
	}

	// the config file may carry its own log settings
	if cfg.LogLevel != logLevel || cfg.LogFile != logFile {
		if err := util.InitLog(cfg.LogLevel, cfg.LogFile); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// printObserver writes status events to the command output
func printObserver(cmd *cobra.Command) status.Observer {
	return status.ObserverFunc(func(e status.Event) {
		cmd.Printf("[%s] %s\n", e.Kind, e.Message)
	})
}

// SetupCloseHandler handles SIGTERM signal and cancels the running operation
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(termCh)
		select {
		case <-ctx.Done():
		case <-termCh:
			log.Info("shutdown signal received")
			cancel()
		}
	}()
}
