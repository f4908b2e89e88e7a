package hamgo

import "fmt"

// Version constants
const (
	// Major is the major version number
	Major = 1

	// Minor is the minor version number
	Minor = 0

	// Patch is the patch version number
	Patch = 0
)

// Version returns the version string of the binding. The engine version is
// reported by Context.Version.
func Version() string {
	return fmt.Sprintf("hamgo %d.%d.%d", Major, Minor, Patch)
}

// GetVersion returns the binding version numbers.
func GetVersion() (major, minor, patch int) {
	return Major, Minor, Patch
}
