package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"jfx/internal/java"
	"jfx/internal/release"
	"jfx/internal/store"
)

// diagnostics is what `jfx info` prints
type diagnostics struct {
	RecafDirectory        string          `json:"recafDirectory" yaml:"recafDirectory"`
	DependenciesDirectory string          `json:"dependenciesDirectory" yaml:"dependenciesDirectory"`
	Platform              string          `json:"platform" yaml:"platform"`
	CachedJavaFX          *string         `json:"cachedJavaFX" yaml:"cachedJavaFX"`
	LatestJavaFX          *string         `json:"latestJavaFX" yaml:"latestJavaFX"`
	Cache                 []store.Summary `json:"cache" yaml:"cache"`
	JavaInstalls          []java.Install  `json:"javaInstalls" yaml:"javaInstalls"`
	Errors                []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func infoCommand() *command {
	var format string
	return &command{
		Name:    "info",
		Usage:   "info [--format json|yaml]",
		Summary: "Print collected diagnostics",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&format, "format", "json", "output format: json or yaml")
		},
		Run: func(ctx context.Context, a *app, _ []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
			return writeDiagnostics(a.out, format, a.diagnose(ctx))
		},
	}
}

// diagnose collects what is known about the local setup. Failures are
// recorded in the report instead of aborting it.
func (a *app) diagnose(ctx context.Context) diagnostics {
	d := diagnostics{
		RecafDirectory:        a.env.RecafDir(),
		DependenciesDirectory: a.storeDir(),
		Platform:              a.classifier.String(),
		Cache:                 []store.Summary{},
	}
	if !a.supported {
		d.Platform = "unsupported"
	}

	d.JavaInstalls = a.detector().FindAll()
	if d.JavaInstalls == nil {
		d.JavaInstalls = []java.Install{}
	}
	if !a.supported {
		return d
	}

	st := a.openStore()
	if sums, err := st.Summaries(a.classifier); err != nil {
		d.Errors = append(d.Errors, "cache: "+err.Error())
	} else if sums != nil {
		d.Cache = sums
	}
	if current, err := st.NewestComplete(a.classifier); err == nil {
		d.CachedJavaFX = optional(current)
	}

	runtime := 0
	if newest, ok := java.Newest(d.JavaInstalls); ok {
		runtime = newest.Version
	}
	mgr, err := a.manager(st, 1, nil)
	if err != nil {
		d.Errors = append(d.Errors, "compatibility: "+err.Error())
		return d
	}
	latest, err := mgr.Resolve(ctx, runtime)
	if err != nil {
		d.Errors = append(d.Errors, "remote: "+err.Error())
	}
	d.LatestJavaFX = optional(latest)
	return d
}

func optional(id release.ID) *string {
	if id.IsZero() {
		return nil
	}
	s := id.String()
	return &s
}

func writeDiagnostics(w io.Writer, format string, d diagnostics) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
