package java

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinimumVersion is the oldest Java major version that is reported
const MinimumVersion = 8

// Install is a Java runtime found on the system
type Install struct {
	Executable string `json:"javaExecutable" yaml:"javaExecutable"`
	Home       string `json:"javaHome" yaml:"javaHome"`
	Version    int    `json:"version" yaml:"version"`
	Custom     bool   `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Matches names such as "jdk-17.0.2", "1.8.0_322", "temurin-21-jdk" or
// `openjdk version "11.0.12"`. Legacy "1.x" versions report x.
var versionPattern = regexp.MustCompile(`(?:(?:[^\d\W]|[- ])+)?(?:1\D)?(\d+)(?:_.+)?(?:\..+)?`)

// ExtractVersion returns the Java major version mentioned in s
func ExtractVersion(s string) (int, bool) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// versionFromReleaseFile reads JAVA_VERSION from the release file of a JDK home
func versionFromReleaseFile(home string) (int, bool) {
	f, err := os.Open(filepath.Join(home, "release"))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		value, ok := strings.CutPrefix(scanner.Text(), "JAVA_VERSION=")
		if !ok {
			continue
		}
		return ExtractVersion(strings.Trim(strings.TrimSpace(value), `"`))
	}
	return 0, false
}

// runVersion runs `java -version` and returns its combined output
func runVersion(executable string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, executable, "-version").CombinedOutput()
	return string(output), err
}

// versionFromOutput parses the first line of `java -version` output that names a version
func versionFromOutput(output string) (int, bool) {
	for _, line := range strings.Split(output, "\n") {
		if v, ok := ExtractVersion(line); ok {
			return v, true
		}
	}
	return 0, false
}
