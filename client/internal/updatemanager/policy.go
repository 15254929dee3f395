package updatemanager

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// Policy decides whether the manifest version is an update of the installed one
type Policy string

const (
	// PolicyExact treats any difference between the two version strings as an update
	PolicyExact Policy = "exact"
	// PolicyNewer only accepts a manifest version that is semantically greater than the installed one
	PolicyNewer Policy = "newer"
)

// ParsePolicy maps a configuration value to a Policy. Empty selects PolicyExact.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyExact:
		return PolicyExact, nil
	case PolicyNewer:
		return PolicyNewer, nil
	default:
		return "", fmt.Errorf("unknown comparison policy %q", s)
	}
}

// UpdateAvailable compares the installed version with the manifest version
func (p Policy) UpdateAvailable(installed, latest string) bool {
	if p != PolicyNewer {
		return latest != installed
	}

	latestVer, err := goversion.NewVersion(latest)
	if err != nil {
		log.Warnf("ignoring manifest version %q: %v", latest, err)
		return false
	}

	installedVer, err := goversion.NewVersion(installed)
	if err != nil {
		log.Debugf("installed version %q is not comparable, falling back to inequality: %v", installed, err)
		return latest != installed
	}

	return latestVer.GreaterThan(installedVer)
}
