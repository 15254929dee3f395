package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/genup/genup/version"
)

const (
	defaultUserAgent = "genup/%s"

	// TempPrefix names every temporary file created by the updater
	TempPrefix = "GUP"
	tempSuffix = ".tmp"
)

// StatusError is returned when the server answers with a non-200 status
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status from %s: %s", e.URL, e.Status)
}

// Options tunes a Downloader. The zero value downloads once with http.DefaultClient.
type Options struct {
	// Client overrides the HTTP client
	Client *http.Client
	// Retries is the number of extra attempts after a failed download; zero disables retrying
	Retries uint64
	// RetryDelay is the pause between attempts
	RetryDelay time.Duration
	// UserAgent overrides the default genup/<version> agent
	UserAgent string
}

type Downloader struct {
	client     *http.Client
	retries    uint64
	retryDelay time.Duration
	userAgent  string
}

func New(opts Options) *Downloader {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	agent := opts.UserAgent
	if agent == "" {
		agent = fmt.Sprintf(defaultUserAgent, version.GenupVersion())
	}

	return &Downloader{
		client:     client,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		userAgent:  agent,
	}
}

// DownloadToTemp downloads url into a freshly allocated file in dir (os.TempDir when empty).
// The file is first allocated with a generic GUP*.tmp name and then renamed to carry ext.
// On failure no file is left behind.
func (d *Downloader) DownloadToTemp(ctx context.Context, url, dir, ext string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*"+tempSuffix)
	if err != nil {
		return "", fmt.Errorf("failed to allocate temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Close(); err != nil {
		log.Warnf("error closing temp file %q: %v", tmpName, err)
	}

	dstFile := tmpName
	if ext != "" && ext != tempSuffix {
		dstFile = strings.TrimSuffix(tmpName, tempSuffix) + ext
		if err := os.Rename(tmpName, dstFile); err != nil {
			_ = os.Remove(tmpName)
			return "", fmt.Errorf("failed to rename temp file: %w", err)
		}
	}

	if err := d.DownloadToFile(ctx, url, dstFile); err != nil {
		if rmErr := os.Remove(dstFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warnf("error removing partial download %q: %v", dstFile, rmErr)
		}
		return "", err
	}

	return dstFile, nil
}

// DownloadToFile downloads url into dstFile, truncating it first
func (d *Downloader) DownloadToFile(ctx context.Context, url, dstFile string) error {
	log.Debugf("starting download from %s", url)

	out, err := os.Create(dstFile)
	if err != nil {
		return fmt.Errorf("failed to create destination file %q: %w", dstFile, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Warnf("error closing file %q: %v", dstFile, cerr)
		}
	}()

	var attempt int
	operation := func() error {
		attempt++
		if attempt > 1 {
			if err := out.Truncate(0); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to truncate file on retry: %w", err))
			}
			if _, err := out.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to seek to beginning of file: %w", err))
			}
		}

		err := d.downloadToFileOnce(ctx, url, out)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retryDelay), d.retries), ctx)
	notify := func(err error, delay time.Duration) {
		log.Warnf("download failed, retrying after %v: %v", delay, err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return err
	}

	log.Infof("successfully downloaded file to %s", dstFile)
	return nil
}

func (d *Downloader) downloadToFileOnce(ctx context.Context, url string, out *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write response body to file: %w", err)
	}

	return nil
}

// ExtFromURL returns the file extension of the last path element of rawURL, ignoring query and fragment
func ExtFromURL(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
