// Package paths locates the Recaf home directory and the JavaFX dependency
// store inside it.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	// EnvOverride names the variable that replaces the Recaf home directory
	EnvOverride = "RECAF"

	appDir  = "Recaf"
	depsDir = "dependencies"
)

// Environment is what directory resolution depends on
type Environment struct {
	GOOS   string
	Getenv func(string) string
	Home   string
	Cwd    string
}

// Host returns the environment of the running process
func Host() Environment {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return Environment{GOOS: runtime.GOOS, Getenv: os.Getenv, Home: home, Cwd: cwd}
}

// RecafDir resolves the Recaf home directory. RECAF wins; otherwise it lives
// in the platform configuration directory, or the working directory when that
// cannot be determined.
func (e Environment) RecafDir() string {
	if custom := e.Getenv(EnvOverride); custom != "" {
		return custom
	}
	root := e.configRoot()
	if root == "" {
		return e.Cwd
	}
	return filepath.Join(root, appDir)
}

// DependenciesDir is the JavaFX artifact store
func (e Environment) DependenciesDir() string {
	return filepath.Join(e.RecafDir(), depsDir)
}

func (e Environment) configRoot() string {
	switch e.GOOS {
	case "windows":
		return e.Getenv("APPDATA")
	case "darwin":
		if e.Home == "" {
			return ""
		}
		return filepath.Join(e.Home, "Library", "Application Support")
	case "linux":
		if xdg := e.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		if e.Home == "" {
			return ""
		}
		return filepath.Join(e.Home, ".config")
	}
	return ""
}

// RecafDir resolves the Recaf home directory of the running process
func RecafDir() string { return Host().RecafDir() }

// DependenciesDir resolves the JavaFX store of the running process
func DependenciesDir() string { return Host().DependenciesDir() }
