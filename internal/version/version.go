package version

// Version is the current version of the decision core.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/quantgate-lab/quantgate/internal/version.Version=1.2.3"
var Version = "v0.1.0"

// GetVersion returns the current version.
func GetVersion() string {
	return Version
}
