package main

import (
	"context"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"

	"jfx/internal/theme"
	"jfx/internal/ui"
	"jfx/internal/updater"
)

func selfUpdateCommand() *command {
	return &command{
		Name:    "self-update",
		Usage:   "self-update",
		Summary: "Check for and install a newer jfx",
		Run: func(ctx context.Context, a *app, _ []string) error {
			if !a.cfg.UpdateConfig.Enabled {
				fmt.Fprintln(a.out, theme.WarningMessage("Updates are disabled in configuration."))
				fmt.Fprintln(a.out, theme.Faint.Render("To enable, edit "+a.cfg.Path()+" and set update_config.enabled to true"))
				return nil
			}

			upd, err := updater.NewUpdater(a.cfg, Repository, Version, a.log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, updater.UpdateTimeout)
			defer cancel()

			var latest *selfupdate.Release
			err = ui.WithSpinner("Checking for updates...", func() error {
				var err error
				latest, err = upd.CheckForUpdate(ctx)
				return err
			})
			if err != nil {
				return fmt.Errorf("update check failed: %w", err)
			}
			if latest == nil {
				fmt.Fprintln(a.out, theme.SuccessMessage(fmt.Sprintf("You're already running the latest version (%s)", Version)))
				return nil
			}

			if a.interactive {
				action, err := upd.PromptForUpdate(latest)
				if err != nil {
					fmt.Fprintln(a.out, theme.WarningMessage("Update cancelled."))
					return nil
				}
				switch action {
				case updater.ActionSkip:
					fmt.Fprintln(a.out, theme.InfoMessage("Skipped version "+latest.Version()))
					return nil
				case updater.ActionLater:
					fmt.Fprintln(a.out, theme.InfoMessage("Update postponed"))
					return nil
				}
			}

			err = ui.WithSpinner(fmt.Sprintf("Downloading jfx %s...", latest.Version()), func() error {
				return upd.PerformUpdate(ctx, latest)
			})
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}

			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, updater.SuccessBanner(latest.Version()))
			return nil
		},
	}
}
