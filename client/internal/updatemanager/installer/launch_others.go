//go:build !windows

package installer

import (
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

var defaultPayloadExt = func() string {
	if runtime.GOOS == "darwin" {
		return ".pkg"
	}
	return ""
}()

func launch(path string) error {
	if err := open.Start(path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	log.Infof("started %s", path)
	return nil
}
