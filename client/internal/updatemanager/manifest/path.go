package manifest

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ResolvePath returns the location of the manifest document of productName.
// The document lives in the user home directory; when that is unknown it is placed next to fallbackPath.
func ResolvePath(fallbackPath, productName string) string {
	return resolvePath(os.UserHomeDir, fallbackPath, productName)
}

func resolvePath(homeDir func() (string, error), fallbackPath, productName string) string {
	fileName := productName + DefaultExt

	home, err := homeDir()
	if err == nil && home != "" {
		return filepath.Join(home, fileName)
	}

	log.Debugf("user home directory unavailable, storing manifest next to %s: %v", fallbackPath, err)
	return filepath.Join(filepath.Dir(fallbackPath), fileName)
}
