package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"jfx/internal/config"
	"jfx/internal/manager"
	"jfx/internal/release"
	"jfx/internal/store"
	"jfx/internal/theme"
	"jfx/internal/ui"
)

// updateOptions are the update-javafx flags
type updateOptions struct {
	javaVersion int
	version     string
	force       bool
	clear       bool
	keepLatest  bool
	maxCount    int
	maxCountSet bool
	maxSize     string
	concurrency int
	pickJava    bool
	yes         bool
}

func updateJavaFXCommand() *command {
	var (
		opts  updateOptions
		flags *pflag.FlagSet
	)
	return &command{
		Name:    "update-javafx",
		Usage:   "update-javafx [--java-version N] [--version V] [--force] [--clear] [--keep-latest] [--max-cache-count N] [--max-cache-size SIZE]",
		Summary: "Download the newest JavaFX release the local Java can run",
		Flags: func(fs *pflag.FlagSet) {
			flags = fs
			fs.IntVar(&opts.javaVersion, "java-version", 0, "Java major version to target (default: newest detected)")
			fs.StringVar(&opts.version, "version", "", "explicit JavaFX release to download")
			fs.BoolVar(&opts.force, "force", false, "redownload artifacts even when cached")
			fs.BoolVar(&opts.clear, "clear", false, "clear the JavaFX cache before downloading")
			fs.BoolVar(&opts.keepLatest, "keep-latest", false, "when clearing the cache keep the newest complete release")
			fs.IntVar(&opts.maxCount, "max-cache-count", 0, "clear the cache when it holds more artifacts (-1 for no limit)")
			fs.StringVar(&opts.maxSize, "max-cache-size", "", `clear the cache when it grows beyond this size, e.g. "500MB"`)
			fs.IntVar(&opts.concurrency, "concurrency", 0, "artifacts to download in parallel")
			fs.BoolVar(&opts.pickJava, "pick-java", false, "choose the target Java runtime interactively")
			fs.BoolVarP(&opts.yes, "yes", "y", false, "do not ask before clearing the cache")
		},
		Run: func(ctx context.Context, a *app, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			opts.maxCountSet = flags.Changed("max-cache-count")
			return runUpdate(ctx, a, opts)
		},
	}
}

func runUpdate(ctx context.Context, a *app, opts updateOptions) error {
	req, err := buildRequest(a.cfg, opts)
	if err != nil {
		return err
	}

	if req.Version == "" {
		req.Runtime, err = a.targetRuntime(opts)
		if err != nil {
			fmt.Fprintln(a.out, theme.WarningMessage("Selection cancelled."))
			return nil
		}
	}

	if req.Clear && !opts.yes && a.interactive {
		what := "all cached JavaFX artifacts"
		if req.KeepNewest {
			what = "all but the newest complete JavaFX release"
		}
		confirmed, err := confirmAction("Clear the JavaFX cache?", "This removes "+what+" from "+a.storeDir())
		if err != nil || !confirmed {
			fmt.Fprintln(a.out, "Operation cancelled.")
			return nil
		}
	}

	st := a.openStore()
	tracker := ui.NewTracker(len(release.Kinds), a.out)
	if a.interactive {
		tracker = ui.NewTracker(len(release.Kinds), nil)
	}
	mgr, err := a.manager(st, concurrencyFor(a.cfg, opts), tracker.Observe)
	if err != nil {
		return err
	}

	a.log.Debug("ensuring javafx release",
		"classifier", a.classifier.String(), "version", req.Version, "runtime", req.Runtime,
		"force", req.Force, "clear", req.Clear, "store", st.Root())

	var out manager.Outcome
	err = tracker.Run(ctx, func(ctx context.Context) error {
		out = mgr.EnsureRelease(ctx, req)
		return out.Err
	})
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.out, theme.WarningMessage("Interrupted, no further downloads were started."))
	}

	printOutcome(a, out)
	if !out.OK() {
		return errReported
	}
	return nil
}

// buildRequest merges flags over the config file
func buildRequest(cfg *config.Config, opts updateOptions) (manager.Request, error) {
	req := manager.Request{
		Version:    opts.version,
		Runtime:    opts.javaVersion,
		Force:      opts.force,
		Clear:      opts.clear,
		KeepNewest: opts.keepLatest || cfg.KeepLatest,
		MaxEntries: cfg.MaxCacheCount,
		MaxBytes:   int64(cfg.MaxCacheSize),
	}
	if opts.maxCountSet {
		req.MaxEntries = opts.maxCount
	}
	if opts.maxSize != "" {
		size, err := config.ParseSize(opts.maxSize)
		if err != nil {
			return manager.Request{}, fmt.Errorf("--max-cache-size: %w", err)
		}
		req.MaxBytes = int64(size)
	}
	if req.MaxEntries < 0 {
		req.MaxEntries = manager.Unbounded
	}
	if req.MaxBytes < 0 {
		req.MaxBytes = manager.Unbounded
	}
	return req, nil
}

func concurrencyFor(cfg *config.Config, opts updateOptions) int {
	if opts.concurrency > 0 {
		return opts.concurrency
	}
	return max(cfg.Concurrency, 1)
}

// targetRuntime picks the Java version JavaFX must run on: the flag, the
// user's pick, or the newest detected runtime. Zero means the baseline.
func (a *app) targetRuntime(opts updateOptions) (int, error) {
	if opts.javaVersion > 0 {
		return opts.javaVersion, nil
	}
	installs := a.scanJava()
	if len(installs) == 0 {
		a.log.Info("no java runtime found, using baseline", "runtime", release.BaselineRuntime)
		return 0, nil
	}
	if opts.pickJava && a.interactive {
		inst, err := selectJava(installs)
		if err != nil {
			return 0, err
		}
		return inst.Version, nil
	}
	return installs[0].Version, nil
}

func printOutcome(a *app, out manager.Outcome) {
	if ev := out.Evicted; ev != nil && (len(ev.Removed) > 0 || ev.Staging > 0) {
		fmt.Fprintln(a.out, theme.InfoMessage(fmt.Sprintf("Cleared %d cached artifacts (%s)",
			len(ev.Removed), humanize.Bytes(uint64(ev.Freed)))))
	}

	switch out.Action {
	case manager.ActionInstalled:
		fmt.Fprintln(a.out, theme.SuccessMessage(fmt.Sprintf("JavaFX %s cached in %s", out.Release, a.storeDir())))
	case manager.ActionUpToDate:
		msg := fmt.Sprintf("JavaFX %s is up to date", out.Release)
		if out.Desired.String() != out.Release.String() {
			msg += fmt.Sprintf(" (newest compatible is %s)", out.Desired)
		}
		fmt.Fprintln(a.out, theme.SuccessMessage(msg))
	case manager.ActionUnresolved, manager.ActionFailed:
		reason := "unknown error"
		if out.Err != nil {
			reason = out.Err.Error()
		}
		fmt.Fprintln(a.out, theme.ErrorMessage("JavaFX could not be downloaded: "+reason))
		if out.OK() {
			fmt.Fprintln(a.out, theme.InfoMessage(fmt.Sprintf("Keeping previously cached JavaFX %s", out.Release)))
		}
	}
}

func cacheCommand() *command {
	var asJSON bool
	return &command{
		Name:    "cache",
		Usage:   "cache [--json]",
		Summary: "Show cached JavaFX releases and their size",
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&asJSON, "json", false, "emit machine readable output")
		},
		Run: func(_ context.Context, a *app, _ []string) error {
			if !a.supported {
				return fmt.Errorf("JavaFX is not published for this platform")
			}
			report, err := cacheReportFor(a.openStore(), a)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintln(a.out, theme.Title.Render("JavaFX cache"))
			fmt.Fprintf(a.out, "%s %s\n", theme.LabelStyle.Render("Directory:"), theme.PathStyle.Render(report.Directory))
			fmt.Fprintf(a.out, "%s %s\n\n", theme.LabelStyle.Render("Usage:"),
				theme.ValueStyle.Render(fmt.Sprintf("%d artifacts, %s", report.Entries, humanize.Bytes(uint64(report.Bytes)))))

			if len(report.Releases) == 0 {
				fmt.Fprintln(a.out, theme.Faint.Render("  nothing cached"))
				return nil
			}
			for _, sum := range report.Releases {
				fmt.Fprintln(a.out, summaryLine(sum, report.Current))
			}
			return nil
		},
	}
}

// cacheReport is the machine readable form of `jfx cache`
type cacheReport struct {
	Directory  string          `json:"directory" yaml:"directory"`
	Classifier string          `json:"classifier" yaml:"classifier"`
	Current    release.ID      `json:"current" yaml:"current"`
	Entries    int             `json:"entries" yaml:"entries"`
	Bytes      int64           `json:"bytes" yaml:"bytes"`
	Releases   []store.Summary `json:"releases" yaml:"releases"`
}

func cacheReportFor(st *store.Store, a *app) (cacheReport, error) {
	summaries, err := st.Summaries(a.classifier)
	if err != nil {
		return cacheReport{}, err
	}
	count, bytes, err := st.Usage(a.classifier)
	if err != nil {
		return cacheReport{}, err
	}
	current, err := st.NewestComplete(a.classifier)
	if err != nil {
		return cacheReport{}, err
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	return cacheReport{
		Directory:  st.Root(),
		Classifier: a.classifier.String(),
		Current:    current,
		Entries:    count,
		Bytes:      bytes,
		Releases:   summaries,
	}, nil
}

func summaryLine(sum store.Summary, current release.ID) string {
	name := fmt.Sprintf("%-12s", sum.Release)
	marker := "  "
	if !current.IsZero() && release.Compare(sum.Release, current) == 0 {
		marker = "→ "
		name = theme.CurrentStyle.Render(name)
	}
	state := theme.SuccessStyle.Render("complete")
	if !sum.Complete {
		state = theme.WarningStyle.Render(fmt.Sprintf("partial %d/%d", len(sum.Kinds), len(release.Kinds)))
	}
	return fmt.Sprintf("%s%s %-10s %s", marker, name, humanize.Bytes(uint64(sum.Bytes)), state)
}
