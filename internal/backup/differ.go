// Package backup compares KiCad autosave archives to tell whether a file
// changed between the two most recent snapshots.
package backup

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Differ reads the backups folder of a project.
type Differ struct {
	logger zerolog.Logger
}

// NewDiffer creates a Differ.
func NewDiffer(logger zerolog.Logger) *Differ {
	return &Differ{logger: logger.With().Str("component", "backup").Logger()}
}

type snapshot struct {
	path    string
	created time.Time
}

// DiffLatest reports whether filename differs between the newest and the
// second newest archive in folder. With fewer than two archives there is
// nothing to compare and the result is false.
func (d *Differ) DiffLatest(filename, folder string) (bool, error) {
	snapshots, err := listSnapshots(folder)
	if err != nil {
		return false, err
	}
	if len(snapshots) < 2 {
		d.logger.Info().Str("filename", filename).Int("backups", len(snapshots)).Msg("not enough backups to compare")
		return false, nil
	}

	newest := snapshots[len(snapshots)-1].path
	previous := snapshots[len(snapshots)-2].path

	a, err := readMember(newest, filename)
	if err != nil {
		return false, err
	}
	b, err := readMember(previous, filename)
	if err != nil {
		return false, err
	}

	changed := !bytes.Equal(a, b)
	d.logger.Debug().
		Str("filename", filename).
		Str("newest", filepath.Base(newest)).
		Str("previous", filepath.Base(previous)).
		Bool("changed", changed).
		Msg("compared backups")
	return changed, nil
}

// listSnapshots returns the regular files in folder, oldest first. The
// modification time stands in for creation time, which not every platform
// exposes; KiCad never rewrites an archive after creating it.
func listSnapshots(folder string) ([]snapshot, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read backups folder %s", folder)
	}

	snapshots := make([]snapshot, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snapshot{
			path:    filepath.Join(folder, entry.Name()),
			created: info.ModTime(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].created.Equal(snapshots[j].created) {
			return snapshots[i].path < snapshots[j].path
		}
		return snapshots[i].created.Before(snapshots[j].created)
	})
	return snapshots, nil
}

func readMember(archive, name string) ([]byte, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open backup %s", archive)
	}
	defer r.Close()

	f, err := r.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "backup %s has no member %s", archive, name)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s from %s", name, archive)
	}
	return data, nil
}
