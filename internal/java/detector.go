package java

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Detector finds Java installations on the system
type Detector struct {
	goos        string
	getenv      func(string) string
	home        string
	searchPaths []string
	customPaths []string
	roots       func() []string
	runVersion  func(string) (string, error)
	log         *slog.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithSearchPaths adds directories whose subdirectories are Java homes
func WithSearchPaths(paths ...string) Option {
	return func(d *Detector) { d.searchPaths = append(d.searchPaths, paths...) }
}

// WithCustomPaths adds specific Java homes or java executables
func WithCustomPaths(paths ...string) Option {
	return func(d *Detector) { d.customPaths = append(d.customPaths, paths...) }
}

// WithRoots replaces the platform default candidate locations
func WithRoots(fn func() []string) Option {
	return func(d *Detector) { d.roots = fn }
}

// WithVersionCommand replaces how `java -version` is run
func WithVersionCommand(fn func(executable string) (string, error)) Option {
	return func(d *Detector) { d.runVersion = fn }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDetector creates a new Java detector
func NewDetector(opts ...Option) *Detector {
	home, _ := os.UserHomeDir()
	d := &Detector{
		goos:       runtime.GOOS,
		getenv:     os.Getenv,
		home:       home,
		runVersion: runVersion,
		log:        slog.New(slog.DiscardHandler),
	}
	d.roots = d.defaultRoots
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FindAll returns every valid installation, newest version first, then by path
func (d *Detector) FindAll() []Install {
	seen := make(map[string]Install)
	add := func(candidate string, custom bool) {
		for _, exe := range d.executables(candidate) {
			inst, ok := d.Inspect(exe)
			if !ok {
				continue
			}
			inst.Custom = custom
			key := inst.Executable
			if d.goos == "windows" {
				key = strings.ToLower(key)
			}
			// custom entries win over auto-detected duplicates
			if prev, dup := seen[key]; dup && prev.Custom && !custom {
				continue
			}
			seen[key] = inst
		}
	}

	for _, root := range d.roots() {
		add(root, false)
	}
	for _, dir := range d.searchPaths {
		for _, child := range children(dir) {
			add(child, false)
		}
	}
	for _, p := range d.customPaths {
		add(p, true)
	}

	installs := make([]Install, 0, len(seen))
	for _, inst := range seen {
		installs = append(installs, inst)
	}
	Sort(installs)
	d.log.Debug("java scan finished", "installs", len(installs))
	return installs
}

// Sort orders installs by version descending, then by executable path
func Sort(installs []Install) {
	slices.SortFunc(installs, func(a, b Install) int {
		if a.Version != b.Version {
			return b.Version - a.Version
		}
		return strings.Compare(a.Executable, b.Executable)
	})
}

// Newest returns the first install of a sorted list
func Newest(installs []Install) (Install, bool) {
	if len(installs) == 0 {
		return Install{}, false
	}
	return installs[0], true
}

// Inspect validates a java executable and determines its major version.
// A sibling javac is required, so plain JREs are rejected.
func (d *Detector) Inspect(executable string) (Install, bool) {
	exe, err := filepath.EvalSymlinks(executable)
	if err != nil {
		return Install{}, false
	}
	exe, _ = filepath.Abs(exe)

	name := strings.ToLower(filepath.Base(exe))
	if name != "java" && name != "java.exe" && name != "javaw" && name != "javaw.exe" {
		return Install{}, false
	}

	bin := filepath.Dir(exe)
	javac := "javac"
	if strings.HasSuffix(name, ".exe") {
		javac = "javac.exe"
	}
	if !isFile(filepath.Join(bin, javac)) {
		return Install{}, false
	}

	home := filepath.Dir(bin)
	sources := []func() (int, bool){
		func() (int, bool) { return ExtractVersion(filepath.Base(home)) },
		func() (int, bool) { return versionFromReleaseFile(home) },
		func() (int, bool) {
			// the exit status is irrelevant as long as a version is printed
			out, _ := d.runVersion(exe)
			return versionFromOutput(out)
		},
	}
	for _, source := range sources {
		if v, ok := source(); ok && v >= MinimumVersion {
			return Install{Executable: exe, Home: home, Version: v}, true
		}
	}
	d.log.Debug("could not determine java version", "executable", exe)
	return Install{}, false
}

// IsValidJavaPath reports whether home contains bin/java and bin/javac
func (d *Detector) IsValidJavaPath(home string) bool {
	return len(d.executables(home)) > 0 && isFile(filepath.Join(home, "bin", d.exeName("javac")))
}

// IsValidSearchPath checks if a path is a directory that can be searched for Java installations
func (d *Detector) IsValidSearchPath(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// executables returns the java executable for a candidate that is either a
// Java home or the executable itself.
func (d *Detector) executables(candidate string) []string {
	if candidate == "" {
		return nil
	}
	if isFile(candidate) {
		return []string{candidate}
	}
	var found []string
	for _, name := range []string{"java", "java.exe"} {
		p := filepath.Join(candidate, "bin", name)
		if isFile(p) {
			found = append(found, p)
		}
	}
	return found
}

func (d *Detector) exeName(base string) string {
	if d.goos == "windows" {
		return base + ".exe"
	}
	return base
}

// defaultRoots lists the places Java is usually installed on this platform
func (d *Detector) defaultRoots() []string {
	var roots []string
	if javaHome := d.getenv("JAVA_HOME"); javaHome != "" {
		roots = append(roots, javaHome)
	}

	switch d.goos {
	case "windows":
		if pf := d.getenv("ProgramFiles"); pf != "" {
			roots = append(roots, children(pf)...)
		}
		userHome := d.getenv("USERPROFILE")
		if userHome == "" {
			userHome = d.home
		}
		roots = append(roots, children(filepath.Join(userHome, ".jdks"))...)
		for _, entry := range strings.Split(d.getenv("PATH"), ";") {
			if strings.HasSuffix(strings.ToLower(entry), `\bin`) {
				roots = append(roots, filepath.Dir(entry))
			}
		}
		for _, vendor := range windowsVendorRoots {
			roots = append(roots, children(vendor)...)
		}
		roots = append(roots, registryHomes()...)

	case "darwin":
		for _, base := range []string{"/Library/Java/JavaVirtualMachines", filepath.Join(d.home, "Library", "Java", "JavaVirtualMachines")} {
			matches, _ := filepath.Glob(filepath.Join(base, "*", "Contents", "Home"))
			roots = append(roots, matches...)
		}

	default:
		if exe, err := filepath.EvalSymlinks("/etc/alternatives/java"); err == nil {
			roots = append(roots, exe)
		}
		roots = append(roots, children("/usr/lib/jvm")...)
		roots = append(roots, children(filepath.Join(d.home, ".jdks"))...)
	}
	return roots
}

var windowsVendorRoots = []string{
	`C:\Program Files\Amazon Corretto`,
	`C:\Program Files\Eclipse Adoptium`,
	`C:\Program Files\Eclipse Foundation`,
	`C:\Program Files\BellSoft`,
	`C:\Program Files\Java`,
	`C:\Program Files (x86)\Java`,
	`C:\Program Files\Microsoft`,
	`C:\Program Files\SapMachine\JDK`,
	`C:\Program Files\Zulu`,
}

// children lists the subdirectories of dir
func children(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() || e.Type()&os.ModeSymlink != 0 {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
