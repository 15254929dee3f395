package version

// will be replaced with the release version when using goreleaser
var version = "development"

// GenupVersion returns the version of this build, set at build time via
// -ldflags "-X github.com/genup/genup/version.version=1.2.3.4"
func GenupVersion() string {
	return version
}
