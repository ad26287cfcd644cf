package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/creativeprojects/go-selfupdate"

	"jfx/internal/config"
)

const (
	// CheckInterval is minimum time between automatic update checks
	CheckInterval = 24 * time.Hour

	// NoticeTimeout bounds the automatic check run alongside a command
	NoticeTimeout = 3 * time.Second

	// UpdateTimeout is maximum time for update operations
	UpdateTimeout = 5 * time.Minute
)

// ErrNoRepository is returned when no release repository is configured
var ErrNoRepository = errors.New("no release repository configured (set update_config.repository)")

// Updater checks for and applies new jfx releases
type Updater struct {
	config         *config.Config
	slug           string
	currentVersion string
	selfUpdater    *selfupdate.Updater
	now            func() time.Time
	log            *slog.Logger
}

// NewUpdater creates an Updater for the GitHub repository slug ("owner/name").
// The config's update_config.repository takes precedence over slug.
func NewUpdater(cfg *config.Config, slug, version string, log *slog.Logger) (*Updater, error) {
	if cfg.UpdateConfig.Repository != "" {
		slug = cfg.UpdateConfig.Repository
	}
	if slug == "" {
		return nil, ErrNoRepository
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	su, err := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{
			UniqueFilename: "SHA256SUMS.txt",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	return &Updater{
		config:         cfg,
		slug:           slug,
		currentVersion: cleanVersion(version),
		selfUpdater:    su,
		now:            time.Now,
		log:            log,
	}, nil
}

// ShouldCheckForUpdate reports whether an automatic check is due.
// Development builds never check.
func (u *Updater) ShouldCheckForUpdate() bool {
	if !u.config.UpdateConfig.Enabled || !u.config.UpdateConfig.AutoCheck {
		return false
	}
	if u.currentVersion == "" || u.currentVersion == "dev" {
		return false
	}
	return u.now().Sub(u.config.UpdateConfig.LastCheck) >= CheckInterval
}

// CheckForUpdate queries GitHub for the latest release.
// It returns nil when already up to date or when the user skipped that version.
func (u *Updater) CheckForUpdate(ctx context.Context) (*selfupdate.Release, error) {
	latest, found, err := u.selfUpdater.DetectLatest(ctx, selfupdate.ParseSlug(u.slug))
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no releases found in %s", u.slug)
	}

	u.config.UpdateConfig.LastCheck = u.now()
	if err := u.config.Save(); err != nil {
		u.log.Warn("could not record update check", "error", err)
	}

	if latest.LessOrEqual(u.currentVersion) {
		return nil, nil
	}
	if u.config.UpdateConfig.SkipVersion == latest.Version() {
		return nil, nil
	}
	return latest, nil
}

// PerformUpdate downloads and installs the update.
// The running executable is backed up and restored on failure.
func (u *Updater) PerformUpdate(ctx context.Context, release *selfupdate.Release) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to determine executable path: %w", err)
	}

	backup := exe + ".backup"
	if err := copyFile(exe, backup); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, release.AssetURL, release.AssetName, exe); err != nil {
		if rollbackErr := os.Rename(backup, exe); rollbackErr != nil {
			return fmt.Errorf("update failed and rollback failed: update error: %w, rollback error: %v", err, rollbackErr)
		}
		return fmt.Errorf("update failed (rolled back): %w", err)
	}

	if err := os.Remove(backup); err != nil {
		u.log.Debug("could not remove backup", "path", backup, "error", err)
	}
	return nil
}

// SkipVersion marks a version as skipped by the user
func (u *Updater) SkipVersion(version string) error {
	u.config.UpdateConfig.SkipVersion = version
	return u.config.Save()
}

// Notice starts an automatic check in the background when one is due.
// The returned channel yields the newer version, or closes empty.
func (u *Updater) Notice(ctx context.Context) <-chan string {
	ch := make(chan string, 1)
	if !u.ShouldCheckForUpdate() {
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		ctx, cancel := context.WithTimeout(ctx, NoticeTimeout)
		defer cancel()

		latest, err := u.CheckForUpdate(ctx)
		if err != nil {
			u.log.Debug("background update check failed", "error", err)
			return
		}
		if latest != nil {
			ch <- latest.Version()
		}
	}()
	return ch
}

// copyFile creates a copy of the file for backup purposes
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0755)
}

// cleanVersion removes 'v' prefix if present for consistent comparison
func cleanVersion(version string) string {
	return strings.TrimPrefix(version, "v")
}
