package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"jfx/internal/java"
	"jfx/internal/theme"
)

func detectJavaCommand() *command {
	var asJSON bool
	return &command{
		Name:    "detect-java",
		Usage:   "detect-java [--json]",
		Summary: "List installed Java runtimes, newest first",
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&asJSON, "json", false, "emit machine readable output")
		},
		Run: func(_ context.Context, a *app, _ []string) error {
			installs := a.scanJava()
			if asJSON {
				if installs == nil {
					installs = []java.Install{}
				}
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(installs)
			}

			if len(installs) == 0 {
				fmt.Fprintln(a.out, theme.WarningMessage("No Java installations were found."))
				fmt.Fprintln(a.out, theme.Faint.Render("  Run 'jfx add <path>' to register one manually"))
				return nil
			}

			fmt.Fprintln(a.out, theme.Title.Render("Discovered Java installations:"))
			fmt.Fprintln(a.out)
			for i, inst := range installs {
				fmt.Fprintln(a.out, installLine(inst, i == 0))
			}
			return nil
		},
	}
}

// installLine renders one runtime, marking the newest
func installLine(inst java.Install, newest bool) string {
	marker := "  "
	version := fmt.Sprintf("Java %d", inst.Version)
	if newest {
		marker = "→ "
		version = theme.CurrentStyle.Render(version)
	}

	// align the path column on the visible width
	pad := max(0, 10-lipgloss.Width(version))
	line := fmt.Sprintf("%s%s%s %s", marker, version, strings.Repeat(" ", pad), theme.PathStyle.Render(inst.Executable))
	if inst.Custom {
		line += " " + theme.Faint.Render("(custom)")
	}
	return line
}

func addJavaCommand() *command {
	var yes bool
	return &command{
		Name:    "add",
		Usage:   "add <path> [--yes]",
		Summary: "Register a Java installation that is not found automatically",
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
		},
		Run: func(_ context.Context, a *app, args []string) error {
			if len(args) != 1 {
				return errors.New("usage: jfx add <path>")
			}
			path := args[0]

			d := a.detector()
			if !d.IsValidJavaPath(path) {
				return fmt.Errorf("invalid Java installation path: %s (needs bin/java and bin/javac)", path)
			}
			if a.cfg.HasCustomPath(path) {
				fmt.Fprintln(a.out, theme.WarningMessage("This path is already in the custom paths list."))
				return nil
			}

			label := path
			for _, exe := range []string{"java", "java.exe"} {
				if inst, ok := d.Inspect(filepath.Join(path, "bin", exe)); ok {
					label = fmt.Sprintf("Java %d at %s", inst.Version, path)
					break
				}
			}

			if !yes && a.interactive {
				confirmed, err := confirmAction("Add "+label+"?", "It will be considered by detect-java and update-javafx")
				if err != nil || !confirmed {
					fmt.Fprintln(a.out, "Operation cancelled.")
					return nil
				}
			}

			a.cfg.AddCustomPath(path)
			if err := a.cfg.Save(); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintln(a.out, theme.SuccessMessage("Added "+label))
			return nil
		},
	}
}

func removeJavaCommand() *command {
	return &command{
		Name:    "remove",
		Usage:   "remove [path]",
		Summary: "Forget a registered Java installation",
		Run: func(_ context.Context, a *app, args []string) error {
			if len(a.cfg.CustomPaths) == 0 {
				fmt.Fprintln(a.out, theme.InfoMessage("No custom Java installations are registered."))
				return nil
			}

			var path string
			switch {
			case len(args) == 1:
				path = args[0]
			case len(args) == 0 && a.interactive:
				options := make([]huh.Option[string], len(a.cfg.CustomPaths))
				for i, p := range a.cfg.CustomPaths {
					options[i] = huh.NewOption(p, p)
				}
				err := huh.NewSelect[string]().
					Title(theme.Subtitle.Render("Select installation to remove")).
					Options(options...).
					Value(&path).
					Run()
				if err != nil {
					fmt.Fprintln(a.out, "Operation cancelled.")
					return nil
				}
			default:
				return errors.New("usage: jfx remove <path>")
			}

			if !a.cfg.RemoveCustomPath(path) {
				return fmt.Errorf("%s is not a registered custom path", path)
			}
			if err := a.cfg.Save(); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintln(a.out, theme.SuccessMessage("Removed "+path))
			return nil
		},
	}
}

func addSearchPathCommand() *command {
	return &command{
		Name:    "add-path",
		Usage:   "add-path <dir>",
		Summary: "Scan a directory of Java installations",
		Run: func(_ context.Context, a *app, args []string) error {
			if len(args) != 1 {
				return errors.New("usage: jfx add-path <dir>")
			}
			if !a.detector().IsValidSearchPath(args[0]) {
				return fmt.Errorf("not a directory: %s", args[0])
			}
			if !a.cfg.AddSearchPath(args[0]) {
				fmt.Fprintln(a.out, theme.WarningMessage("This directory is already searched."))
				return nil
			}
			if err := a.cfg.Save(); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintln(a.out, theme.SuccessMessage("Added search path "+args[0]))
			return nil
		},
	}
}

// selectJava lets the user pick the runtime JavaFX must run on
func selectJava(installs []java.Install) (java.Install, error) {
	options := make([]huh.Option[int], len(installs))
	for i, inst := range installs {
		options[i] = huh.NewOption(installLine(inst, i == 0), i)
	}

	var selected int
	err := huh.NewSelect[int]().
		Title(theme.Subtitle.Render("Select Java runtime")).
		Description(theme.Faint.Render("JavaFX will be chosen to run on this version")).
		Options(options...).
		Value(&selected).
		Run()
	if err != nil {
		return java.Install{}, err
	}
	return installs[selected], nil
}

// confirmAction shows a confirmation prompt
func confirmAction(title, description string) (bool, error) {
	var confirmed bool

	err := huh.NewConfirm().
		Title(theme.Subtitle.Render(title)).
		Description(theme.Faint.Render(description)).
		Affirmative(theme.SuccessStyle.Render("Yes")).
		Negative(theme.ErrorStyle.Render("No")).
		Value(&confirmed).
		Run()

	return confirmed, err
}
