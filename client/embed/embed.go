// Package embed exposes the updater to desktop applications that link it as a library.
package embed

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genup/genup/client/internal/config"
	"github.com/genup/genup/client/internal/updatemanager"
	"github.com/genup/genup/client/internal/updatemanager/publisher"
	"github.com/genup/genup/client/internal/updatemanager/status"
)

// ErrCheckInProgress is returned when a check is requested while another one is running
var ErrCheckInProgress = updatemanager.ErrCheckInProgress

// StatusKind is the severity of a status report
type StatusKind = status.Kind

const (
	StatusError      = status.Error
	StatusSuccess    = status.Success
	StatusInProgress = status.InProgress
)

// Result is the outcome of a check
type Result = updatemanager.Result

// Outcome is delivered by CheckAsync once the check has finished
type Outcome = updatemanager.Outcome

// Client checks for and installs updates of one application.
type Client struct {
	config  *config.Config
	manager *updatemanager.Manager
	runner  *updatemanager.Runner

	uploaderOnce sync.Once
	uploaderErr  error
}

// Options configures a new Client.
type Options struct {
	// ManifestURL is where the manifest of the latest release is served
	ManifestURL string
	// ExecutablePath is the installed binary to check (defaults to the running executable)
	ExecutablePath string
	// ConfigPath optionally points to a JSON config file; Options fields take precedence over it
	ConfigPath string
	// TempDir receives downloads (defaults to the system temp dir)
	TempDir string
	// Policy is "exact" (default) or "newer"
	Policy string
	// Retries of a failed download; zero disables retrying
	Retries *uint64
	// RetryDelay between download attempts
	RetryDelay *time.Duration
	// HTTPTimeout bounds a single request
	HTTPTimeout *time.Duration
	// OnStatus receives progress reports. Reports are discarded when nil.
	OnStatus func(kind StatusKind, message string)
	// LogOutput is the output destination for logs (defaults to os.Stderr if nil)
	LogOutput io.Writer
	// LogLevel sets the logging level (defaults to info if empty)
	LogLevel string
	// S3Region and S3Endpoint locate the bucket used by Publish
	S3Region   string
	S3Endpoint string
}

// New creates a new updater client.
func New(opts Options) (*Client, error) {
	if opts.LogOutput != nil {
		logrus.SetOutput(opts.LogOutput)
	}

	if opts.LogLevel != "" {
		level, err := logrus.ParseLevel(opts.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		logrus.SetLevel(level)
	}

	cfg, err := config.ReadConfig(config.ConfigInput{
		ConfigPath:     opts.ConfigPath,
		ManifestURL:    opts.ManifestURL,
		ExecutablePath: opts.ExecutablePath,
		TempDir:        opts.TempDir,
		Policy:         opts.Policy,
		Retries:        opts.Retries,
		RetryDelay:     opts.RetryDelay,
		HTTPTimeout:    opts.HTTPTimeout,
		S3Region:       opts.S3Region,
		S3Endpoint:     opts.S3Endpoint,
	})
	if err != nil {
		return nil, err
	}

	var observer status.Observer
	if opts.OnStatus != nil {
		observer = status.ObserverFunc(func(e status.Event) {
			opts.OnStatus(e.Kind, e.Message)
		})
	}

	manager := updatemanager.NewManager(cfg.ManagerConfig())
	return &Client{
		config:  cfg,
		manager: manager,
		runner:  updatemanager.NewRunner(manager, observer),
	}, nil
}

// Check runs one check and waits for it. When an update was downloaded the installer has been started
// and the application is expected to exit.
func (c *Client) Check(ctx context.Context) (Result, error) {
	if c.config.ManifestURL == "" {
		return Result{}, fmt.Errorf("manifest URL is not configured")
	}

	done, err := c.runner.Start(ctx, c.config.ExecutablePath)
	if err != nil {
		return Result{}, err
	}

	out := <-done
	return out.Result, out.Err
}

// CheckAsync starts a check in the background. The channel receives a single Outcome and is then closed.
func (c *Client) CheckAsync(ctx context.Context) (<-chan Outcome, error) {
	if c.config.ManifestURL == "" {
		return nil, fmt.Errorf("manifest URL is not configured")
	}
	return c.runner.Start(ctx, c.config.ExecutablePath)
}

// Watch checks periodically until an update has been downloaded or ctx is done
func (c *Client) Watch(ctx context.Context, interval time.Duration) (Result, error) {
	if c.config.ManifestURL == "" {
		return Result{}, fmt.Errorf("manifest URL is not configured")
	}
	return c.runner.Watch(ctx, c.config.ExecutablePath, interval)
}

// Checking reports whether a check is running
func (c *Client) Checking() bool {
	return c.runner.Running()
}

// PublishOptions describes a release to publish
type PublishOptions struct {
	// ExePath is the released binary; defaults to the configured executable
	ExePath string
	// ProductName and Version override the values embedded in ExePath
	ProductName string
	Version     string
	DownloadURL string
	// ManifestPath defaults to <home>/<product>.xml
	ManifestPath string
	// Bucket and Key upload the manifest to S3 after the local write
	Bucket string
	Key    string
}

// Publish records a release in the manifest and returns the manifest path
func (c *Client) Publish(ctx context.Context, opts PublishOptions) (string, error) {
	if opts.DownloadURL == "" {
		return "", fmt.Errorf("download URL is required")
	}

	exe := opts.ExePath
	if exe == "" {
		exe = c.config.ExecutablePath
	}

	if opts.Bucket != "" {
		if err := c.initUploader(ctx); err != nil {
			return "", err
		}
	}

	return c.manager.Publish(ctx, updatemanager.PublishRequest{
		ExePath:      exe,
		ProductName:  opts.ProductName,
		Version:      opts.Version,
		DownloadURL:  opts.DownloadURL,
		ManifestPath: opts.ManifestPath,
		Bucket:       opts.Bucket,
		Key:          opts.Key,
	}, c.runner.Observer())
}

// CleanUp removes downloads left by previous checks
func (c *Client) CleanUp() error {
	return c.manager.CleanUp()
}

func (c *Client) initUploader(ctx context.Context) error {
	c.uploaderOnce.Do(func() {
		client, err := publisher.NewS3Client(ctx, publisher.S3Options{
			Region:   c.config.S3Region,
			Endpoint: c.config.S3Endpoint,
		})
		if err != nil {
			c.uploaderErr = err
			return
		}
		c.manager.WithUploader(publisher.NewUploader(client))
	})
	return c.uploaderErr
}
