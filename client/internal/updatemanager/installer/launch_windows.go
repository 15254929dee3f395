package installer

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

const defaultPayloadExt = ".exe"

func launch(path string) error {
	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return err
	}

	file, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("invalid payload path %q: %w", path, err)
	}

	if err := windows.ShellExecute(0, verb, file, nil, nil, windows.SW_SHOWNORMAL); err != nil {
		return fmt.Errorf("shell execute %s: %w", path, err)
	}

	log.Infof("started %s", path)
	return nil
}
