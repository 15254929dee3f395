package manifest

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/genup/genup/client/internal/updatemanager/downloader"
	"github.com/genup/genup/client/internal/updatemanager/status"
	"github.com/genup/genup/util"
)

// Fetcher retrieves remote manifest documents
type Fetcher struct {
	downloader *downloader.Downloader
	tempDir    string
}

// NewFetcher returns a Fetcher that downloads through d into tempDir (os.TempDir when empty)
func NewFetcher(d *downloader.Downloader, tempDir string) *Fetcher {
	return &Fetcher{downloader: d, tempDir: tempDir}
}

// Fetch downloads the document at url and parses it. The format follows the URL extension, XML by default.
// The downloaded copy is removed once parsed.
func (f *Fetcher) Fetch(ctx context.Context, url string, observer status.Observer) (*Document, error) {
	status.Report(observer, status.InProgress, status.MsgConnecting)

	ext := downloader.ExtFromURL(url)
	if !IsSupportedExt(ext) {
		ext = DefaultExt
	}

	file, err := f.downloader.DownloadToTemp(ctx, url, f.tempDir, ext)
	if err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}
	defer func() {
		if err := util.RemoveFile(file); err != nil {
			log.Warnf("failed to remove downloaded manifest %s: %v", file, err)
		}
	}()

	return Load(file)
}
