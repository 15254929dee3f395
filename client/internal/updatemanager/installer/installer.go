// Package installer downloads update payloads and hands them to the operating system.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/genup/genup/client/internal/updatemanager/downloader"
)

// Launcher opens a downloaded payload with the default handler of the operating system
type Launcher interface {
	Launch(path string) error
}

// LauncherFunc adapts a function to the Launcher interface
type LauncherFunc func(path string) error

func (f LauncherFunc) Launch(path string) error {
	return f(path)
}

// SystemLauncher launches payloads through the operating system shell
var SystemLauncher Launcher = LauncherFunc(launch)

type Installer struct {
	downloader *downloader.Downloader
	tempDir    string
}

// New returns an Installer that stores payloads in tempDir (os.TempDir when empty)
func New(d *downloader.Downloader, tempDir string) *Installer {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Installer{
		downloader: d,
		tempDir:    tempDir,
	}
}

func (i *Installer) TempDir() string {
	return i.tempDir
}

// Download fetches the payload at url into a new temporary file and returns its path.
// The file keeps the extension of the URL so the shell can pick the right handler.
func (i *Installer) Download(ctx context.Context, url string) (string, error) {
	ext := downloader.ExtFromURL(url)
	if ext == "" {
		ext = defaultPayloadExt
	}

	file, err := i.downloader.DownloadToTemp(ctx, url, i.tempDir, ext)
	if err != nil {
		return "", fmt.Errorf("download payload: %w", err)
	}

	log.Infof("payload downloaded to %s", file)
	return file, nil
}

// CleanUp removes the temporary files left by previous downloads
func (i *Installer) CleanUp() error {
	info, err := os.Stat(i.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(i.tempDir)
	if err != nil {
		return err
	}

	var merr *multierror.Error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), downloader.TempPrefix) {
			continue
		}

		if err := os.Remove(filepath.Join(i.tempDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			merr = multierror.Append(merr, fmt.Errorf("failed to remove %s: %w", entry.Name(), err))
			continue
		}
		log.Debugf("removed %s", entry.Name())
	}

	return merr.ErrorOrNil()
}
