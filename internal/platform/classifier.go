package platform

import (
	"runtime"
	"strings"
)

// Classifier selects the platform-specific variant of a JavaFX artifact
// (e.g. "linux-aarch64", "mac", "win")
type Classifier string

const (
	Windows     Classifier = "win"
	MacIntel    Classifier = "mac"
	MacARM      Classifier = "mac-aarch64"
	LinuxX86    Classifier = "linux"
	LinuxARM    Classifier = "linux-aarch64"
	Unsupported Classifier = ""
)

// All lists every classifier JavaFX publishes artifacts for
var All = []Classifier{Windows, MacIntel, MacARM, LinuxX86, LinuxARM}

// Resolve maps an operating system name and CPU architecture to a classifier.
// Both Go names (darwin, arm64) and uname-style names (Darwin, aarch64) are accepted.
// The second return value is false when the platform has no JavaFX build.
func Resolve(osName, arch string) (Classifier, bool) {
	osName = strings.ToLower(osName)
	arch = strings.ToLower(arch)
	isARM := arch == "arm64" || arch == "aarch64"

	switch {
	case strings.HasPrefix(osName, "win"):
		return Windows, true
	case osName == "darwin" || osName == "macos":
		if isARM {
			return MacARM, true
		}
		return MacIntel, true
	case strings.HasPrefix(osName, "linux"):
		if isARM {
			return LinuxARM, true
		}
		return LinuxX86, true
	}
	return Unsupported, false
}

// Detect resolves the classifier of the running process.
// Call it once at startup and pass the result to the components that need it.
func Detect() (Classifier, bool) {
	return Resolve(runtime.GOOS, runtime.GOARCH)
}

// String returns the classifier, or "unsupported" for the zero value
func (c Classifier) String() string {
	if c == Unsupported {
		return "unsupported"
	}
	return string(c)
}
