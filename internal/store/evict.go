package store

import (
	"errors"
	"fmt"
	"os"

	"jfx/internal/platform"
	"jfx/internal/release"
)

// EvictReport describes what an eviction pass removed
type EvictReport struct {
	Kept    release.ID `json:"kept" yaml:"kept"`
	Removed []string   `json:"removed" yaml:"removed"`
	Freed   int64      `json:"freed" yaml:"freed"`
	Staging int        `json:"staging" yaml:"staging"`
}

// Evict deletes every entry of classifier. When keepNewest is set, the files
// of the newest complete release are left in place. That release is chosen
// before anything is deleted. Leftover staging files are removed as well.
//
// Deletion continues past individual failures; the joined errors are returned
// alongside the report of what was removed.
func (s *Store) Evict(classifier platform.Classifier, keepNewest bool) (EvictReport, error) {
	var report EvictReport

	// phase one: snapshot
	if keepNewest {
		newest, err := s.NewestComplete(classifier)
		if err != nil {
			return report, err
		}
		report.Kept = newest
	}
	entries, err := s.Entries(classifier)
	if err != nil {
		return report, err
	}
	infos, err := s.readDir()
	if err != nil {
		return report, err
	}

	// phase two: delete
	var errs []error
	for _, e := range entries {
		if !report.Kept.IsZero() && release.Compare(e.Artifact.Release, report.Kept) == 0 {
			continue
		}
		if err := s.fs.Remove(e.Name); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("removing %s: %w", e.Name, err))
			continue
		}
		s.log.Debug("evicted cache entry", "file", e.Name, "bytes", e.Size)
		report.Removed = append(report.Removed, e.Name)
		report.Freed += e.Size
	}
	for _, info := range infos {
		if info.IsDir() || !isStaging(info.Name()) {
			continue
		}
		if err := s.fs.Remove(info.Name()); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("removing staging file %s: %w", info.Name(), err))
			continue
		}
		report.Staging++
	}

	if len(report.Removed) > 0 || report.Staging > 0 {
		s.log.Info("evicted cached artifacts",
			"removed", len(report.Removed), "bytes", report.Freed, "staging", report.Staging, "kept", report.Kept.String())
	}
	return report, errors.Join(errs...)
}
