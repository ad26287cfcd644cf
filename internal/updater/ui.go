package updater

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/dustin/go-humanize"

	"jfx/internal/theme"
)

// Choices offered by PromptForUpdate
const (
	ActionUpdate = "update"
	ActionSkip   = "skip"
	ActionLater  = "later"
)

// PromptForUpdate asks whether to install release now, skip it or wait
func (u *Updater) PromptForUpdate(release *selfupdate.Release) (string, error) {
	description := fmt.Sprintf(
		"Download size: %s\n\n%s",
		humanize.Bytes(uint64(release.AssetByteSize)),
		truncateChangelog(release.ReleaseNotes, 400),
	)

	var action string
	err := huh.NewSelect[string]().
		Title(theme.Subtitle.Render(fmt.Sprintf("Update available: %s → %s", u.currentVersion, release.Version()))).
		Description(theme.Faint.Render(description)).
		Options(
			huh.NewOption(theme.SuccessStyle.Render("Update now"), ActionUpdate),
			huh.NewOption(theme.InfoStyle.Render("Skip this version"), ActionSkip),
			huh.NewOption(theme.WarningStyle.Render("Remind me later"), ActionLater),
		).
		Value(&action).
		Run()
	if err != nil {
		return "", err
	}

	if action == ActionSkip {
		if err := u.SkipVersion(release.Version()); err != nil {
			u.log.Warn("failed to save skip preference", "error", err)
		}
	}
	return action, nil
}

// UpdateNotice is the one-line hint printed after a command
func UpdateNotice(currentVersion, latestVersion string) string {
	return fmt.Sprintf("%s Update available: %s → %s %s",
		theme.InfoStyle.Render("ℹ"),
		theme.Faint.Render(currentVersion),
		theme.CurrentStyle.Render(latestVersion),
		theme.Faint.Render("(run 'jfx self-update')"))
}

// SuccessBanner is shown after a completed update
func SuccessBanner(version string) string {
	title := theme.SuccessStyle.Padding(0, 2).Render("✓ Update Complete!")
	return theme.SuccessBox.Render(title) + "\n\n" +
		fmt.Sprintf("%s Updated to version %s", theme.LabelStyle.Render("Version:"), theme.CurrentStyle.Render(version))
}

// truncateChangelog shortens the changelog to about maxLen bytes,
// preferring to cut at a line or word boundary
func truncateChangelog(changelog string, maxLen int) string {
	changelog = strings.TrimSpace(changelog)
	if changelog == "" {
		return "See release notes on GitHub for details."
	}
	if len(changelog) <= maxLen {
		return changelog
	}

	truncated := changelog[:maxLen]
	if idx := strings.LastIndex(truncated, "\n"); idx > maxLen/2 {
		truncated = truncated[:idx]
	} else if idx := strings.LastIndex(truncated, " "); idx > maxLen/2 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}
