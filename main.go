package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"jfx/internal/config"
	"jfx/internal/fetcher"
	"jfx/internal/httpx"
	"jfx/internal/java"
	"jfx/internal/logging"
	"jfx/internal/manager"
	"jfx/internal/paths"
	"jfx/internal/platform"
	"jfx/internal/repository"
	"jfx/internal/store"
	"jfx/internal/theme"
	"jfx/internal/ui"
	"jfx/internal/updater"
)

// Version is set during build time via ldflags
var Version = "dev"

// Repository is the GitHub "owner/name" self-update pulls releases from,
// set via ldflags or update_config.repository
var Repository = ""

// errReported means the command already told the user what went wrong
var errReported = errors.New("reported")

// command is one jfx subcommand. Flags binds the command's own flags and
// Run receives the remaining positional arguments.
type command struct {
	Name    string
	Usage   string
	Summary string
	Flags   func(fs *pflag.FlagSet)
	Run     func(ctx context.Context, a *app, args []string) error
}

func commands() []*command {
	return []*command{
		detectJavaCommand(),
		addJavaCommand(),
		removeJavaCommand(),
		addSearchPathCommand(),
		updateJavaFXCommand(),
		cacheCommand(),
		infoCommand(),
		selfUpdateCommand(),
	}
}

// globals are accepted by every command
type globals struct {
	verbose    bool
	logFormat  string
	configPath string
}

func (g *globals) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	fs.StringVar(&g.logFormat, "log-format", logging.FormatText, "log format: text or json")
	fs.StringVar(&g.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
}

// deps are the pieces of the process environment a run depends on
type deps struct {
	stdout      io.Writer
	stderr      io.Writer
	interactive bool
	env         paths.Environment
	detector    []java.Option
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := deps{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		interactive: ui.Interactive(os.Stdout) && ui.Interactive(os.Stdin),
		env:         paths.Host(),
	}
	os.Exit(run(ctx, os.Args[1:], d))
}

// run executes one command line and returns the process exit code
func run(ctx context.Context, args []string, d deps) int {
	if len(args) == 0 {
		printUsage(d.stdout)
		return 1
	}

	name := args[0]
	switch name {
	case "version", "--version":
		printVersion(d.stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(d.stdout)
		return 0
	}

	var cmd *command
	for _, c := range commands() {
		if c.Name == name {
			cmd = c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintln(d.stderr, theme.ErrorMessage("Unknown command: "+name))
		printUsage(d.stderr)
		return 1
	}

	var g globals
	fs := pflag.NewFlagSet(cmd.Name, pflag.ContinueOnError)
	fs.SetOutput(d.stderr)
	fs.Usage = func() { printCommandUsage(d.stderr, cmd, fs) }
	g.register(fs)
	if cmd.Flags != nil {
		cmd.Flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	a, err := newApp(g, d)
	if err != nil {
		fmt.Fprintln(d.stderr, theme.ErrorMessage(err.Error()))
		return 1
	}

	notice := a.updateNotice(ctx, cmd.Name)

	err = cmd.Run(ctx, a, fs.Args())
	select {
	case latest, ok := <-notice:
		if ok && err == nil {
			fmt.Fprintln(d.stdout)
			fmt.Fprintln(d.stdout, updater.UpdateNotice(Version, latest))
		}
	default:
		// never wait for a slow check
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errReported):
		return 1
	default:
		a.log.Debug("command failed", "command", cmd.Name, "error", err)
		fmt.Fprintln(d.stderr, theme.ErrorMessage(err.Error()))
		return 1
	}
}

// app carries what commands share: configuration, logger and output
type app struct {
	cfg         *config.Config
	log         *slog.Logger
	out         io.Writer
	errOut      io.Writer
	interactive bool
	env         paths.Environment
	classifier  platform.Classifier
	supported   bool
	detectorOpt []java.Option
}

func newApp(g globals, d deps) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(d.stderr, g.verbose, g.logFormat)
	if err != nil {
		return nil, err
	}
	log = log.With("run_id", uuid.NewString())

	classifier, supported := platform.Detect()
	return &app{
		cfg:         cfg,
		log:         log,
		out:         d.stdout,
		errOut:      d.stderr,
		interactive: d.interactive,
		env:         d.env,
		classifier:  classifier,
		supported:   supported,
		detectorOpt: d.detector,
	}, nil
}

// storeDir is the configured store directory or the Recaf dependencies directory
func (a *app) storeDir() string {
	if a.cfg.StoreDir != "" {
		return a.cfg.StoreDir
	}
	return a.env.DependenciesDir()
}

func (a *app) openStore() *store.Store {
	return store.Open(a.storeDir(), store.WithLogger(a.log))
}

func (a *app) repository() *repository.Repository {
	client := httpx.New(
		httpx.WithRateLimit(a.cfg.RequestsPerSecond, a.cfg.Concurrency),
		httpx.WithUserAgent(fmt.Sprintf("jfx/%s (%s)", Version, httpx.DefaultUserAgent)),
	)
	opts := []repository.Option{
		repository.WithTimeouts(a.cfg.Timeouts.Repository()),
		repository.WithLogger(a.log),
	}
	if a.cfg.RepositoryURL != "" {
		opts = append(opts, repository.WithBaseURL(a.cfg.RepositoryURL))
	}
	if a.cfg.IndexURL != "" {
		opts = append(opts, repository.WithIndexURL(a.cfg.IndexURL))
	}
	return repository.New(client, opts...)
}

func (a *app) detector() *java.Detector {
	opts := []java.Option{
		java.WithSearchPaths(a.cfg.SearchPaths...),
		java.WithCustomPaths(a.cfg.CustomPaths...),
		java.WithLogger(a.log),
	}
	return java.NewDetector(append(opts, a.detectorOpt...)...)
}

// manager wires the store, repository and fetcher for this platform
func (a *app) manager(st *store.Store, concurrency int, observe func(fetcher.Event)) (*manager.Manager, error) {
	table, err := a.cfg.Table()
	if err != nil {
		return nil, err
	}
	repo := a.repository()
	f := fetcher.New(repo, st, fetcher.WithObserver(observe), fetcher.WithLogger(a.log))
	return manager.New(a.classifier, st, repo, f,
		manager.WithTable(table),
		manager.WithConcurrency(concurrency),
		manager.WithLogger(a.log),
	), nil
}

// scanJava runs the detector, with a spinner on a terminal
func (a *app) scanJava() []java.Install {
	var installs []java.Install
	scan := func() error {
		installs = a.detector().FindAll()
		return nil
	}
	if a.interactive {
		_ = ui.WithSpinner("Scanning for Java installations...", scan)
	} else {
		_ = scan()
	}
	return installs
}

// updateNotice starts the background update check for interactive runs
func (a *app) updateNotice(ctx context.Context, name string) <-chan string {
	if !a.interactive || name == "self-update" {
		return closed()
	}
	upd, err := updater.NewUpdater(a.cfg, Repository, Version, a.log)
	if err != nil {
		return closed()
	}
	return upd.Notice(ctx)
}

func closed() <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s %s\n",
		theme.Subtitle.Render("JavaFX dependency manager (jfx)"),
		theme.Faint.Render("version"),
		theme.CurrentStyle.Render(Version))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, theme.TitleBox.Render("jfx"))
	fmt.Fprintln(w, theme.Faint.Render("Keeps the JavaFX modules Recaf needs cached and verified"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, theme.Title.Render("USAGE"))
	fmt.Fprintln(w, theme.Faint.Render("  jfx <command> [flags]"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, theme.Title.Render("COMMANDS"))
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-16s %s\n", c.Name, theme.Faint.Render(c.Summary))
	}
	fmt.Fprintf(w, "  %-16s %s\n", "version", theme.Faint.Render("Show version information"))
	fmt.Fprintf(w, "  %-16s %s\n", "help", theme.Faint.Render("Show this help message"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, theme.Title.Render("GLOBAL FLAGS"))
	fmt.Fprintln(w, "  -v, --verbose         enable debug logging")
	fmt.Fprintln(w, "      --log-format      text or json")
	fmt.Fprintln(w, "      --config PATH     config file")
	fmt.Fprintln(w)

	fmt.Fprintln(w, theme.Title.Render("EXAMPLES"))
	fmt.Fprintln(w, "  jfx detect-java                 # List Java runtimes")
	fmt.Fprintln(w, "  jfx update-javafx               # Cache the newest compatible JavaFX")
	fmt.Fprintln(w, "  jfx update-javafx --version 21.0.1 --force")
	fmt.Fprintln(w, "  jfx update-javafx --clear --keep-latest")
	fmt.Fprintln(w, "  jfx info --format yaml          # Diagnostics")
}

func printCommandUsage(w io.Writer, c *command, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "%s\n\n%s\n  jfx %s\n\n%s\n%s",
		c.Summary,
		theme.Title.Render("USAGE"), c.Usage,
		theme.Title.Render("FLAGS"), fs.FlagUsages())
}
