package version

import (
	"debug/buildinfo"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime/debug"
	"sort"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
)

const (
	develVersion = "(devel)"
	ldflagsKey   = "-ldflags"
)

var (
	// ErrNoVersionInfo is returned when a binary carries no usable product name or version
	ErrNoVersionInfo = errors.New("no embedded version information")

	productNameVars = []string{"productName", "ProductName"}
	versionVars     = []string{"version", "Version", "productVersion", "ProductVersion"}
)

// Info is the product identity embedded in an executable
type Info struct {
	ProductName    string
	ProductVersion string
}

func (i Info) String() string {
	return i.ProductName + " " + i.ProductVersion
}

// Read extracts the product name and version embedded in the Go binary at executablePath.
// Values stamped with -ldflags "-X <pkg>.productName=... -X <pkg>.version=..." take precedence over the
// main module path and module version recorded by the toolchain.
func Read(executablePath string) (Info, error) {
	if _, err := os.Stat(executablePath); err != nil {
		return Info{}, fmt.Errorf("read version of %s: %w", executablePath, err)
	}

	bi, err := buildinfo.ReadFile(executablePath)
	if err != nil {
		return Info{}, fmt.Errorf("read version of %s: %w: %v", executablePath, ErrNoVersionInfo, err)
	}

	info, err := fromBuildInfo(bi)
	if err != nil {
		return Info{}, fmt.Errorf("read version of %s: %w", executablePath, err)
	}

	log.Debugf("read version of %s: %s", executablePath, info)
	return info, nil
}

func fromBuildInfo(bi *debug.BuildInfo) (Info, error) {
	var stamped map[string]string
	for _, s := range bi.Settings {
		if s.Key == ldflagsKey {
			stamped = parseLinkerVars(s.Value)
			break
		}
	}

	info := Info{
		ProductName:    lookupVar(stamped, productNameVars),
		ProductVersion: lookupVar(stamped, versionVars),
	}

	if info.ProductName == "" {
		info.ProductName = productNameFromPath(bi.Path)
	}

	if info.ProductVersion == "" && bi.Main.Version != develVersion {
		info.ProductVersion = strings.TrimPrefix(bi.Main.Version, "v")
	}

	if info.ProductName == "" {
		return Info{}, fmt.Errorf("%w: missing product name", ErrNoVersionInfo)
	}
	if info.ProductVersion == "" {
		return Info{}, fmt.Errorf("%w: missing product version", ErrNoVersionInfo)
	}

	return info, nil
}

// productNameFromPath returns the last element of the main package path, which is the default binary name
func productNameFromPath(mainPath string) string {
	if mainPath == "" || mainPath == "command-line-arguments" {
		return ""
	}
	return path.Base(mainPath)
}

func lookupVar(vars map[string]string, names []string) string {
	fullNames := make([]string, 0, len(vars))
	for fullName := range vars {
		fullNames = append(fullNames, fullName)
	}
	sort.Strings(fullNames)

	for _, name := range names {
		for _, fullName := range fullNames {
			if strings.HasSuffix(fullName, "."+name) {
				return vars[fullName]
			}
		}
	}
	return ""
}

// parseLinkerVars collects the "-X name=value" assignments of an -ldflags string
func parseLinkerVars(ldflags string) map[string]string {
	vars := make(map[string]string)
	fields := splitQuoted(ldflags)

	for i := 0; i < len(fields); i++ {
		var assignment string
		switch {
		case fields[i] == "-X" && i+1 < len(fields):
			i++
			assignment = fields[i]
		case strings.HasPrefix(fields[i], "-X="):
			assignment = strings.TrimPrefix(fields[i], "-X=")
		default:
			continue
		}

		name, value, ok := strings.Cut(assignment, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = value
	}

	return vars
}

// splitQuoted splits s on white space, keeping single or double quoted sections together
func splitQuoted(s string) []string {
	var (
		fields  []string
		current strings.Builder
		quote   rune
		inField bool
	)

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inField = true
		case unicode.IsSpace(r):
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteRune(r)
			inField = true
		}
	}

	if inField {
		fields = append(fields, current.String())
	}

	return fields
}
