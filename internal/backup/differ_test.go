package backup

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArchive creates a zip at path holding members and stamps it with mtime.
func writeArchive(t *testing.T, path string, members map[string]string, mtime time.Time) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, content := range members {
		mw, err := w.Create(name)
		require.NoError(t, err)
		_, err = mw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestDiffLatest(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		archives []map[string]string
		want     bool
	}{
		{
			name: "Identical member",
			archives: []map[string]string{
				{"amp.kicad_sch": "v1"},
				{"amp.kicad_sch": "v1", "amp.kicad_pcb": "other"},
			},
			want: false,
		},
		{
			name: "Changed member",
			archives: []map[string]string{
				{"amp.kicad_sch": "v1"},
				{"amp.kicad_sch": "v2"},
			},
			want: true,
		},
		{
			name: "Only the two newest are compared",
			archives: []map[string]string{
				{"amp.kicad_sch": "v0"},
				{"amp.kicad_sch": "v1"},
				{"amp.kicad_sch": "v1"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for i, members := range tt.archives {
				// names sort opposite to age so ordering must come from the timestamps
				name := filepath.Join(dir, string(rune('z'-i))+".zip")
				writeArchive(t, name, members, base.Add(time.Duration(i)*time.Minute))
			}

			changed, err := NewDiffer(zerolog.Nop()).DiffLatest("amp.kicad_sch", dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, changed)
		})
	}
}

func TestDiffLatestFewerThanTwo(t *testing.T) {
	d := NewDiffer(zerolog.Nop())

	empty := t.TempDir()
	changed, err := d.DiffLatest("amp.kicad_sch", empty)
	require.NoError(t, err)
	assert.False(t, changed)

	single := t.TempDir()
	writeArchive(t, filepath.Join(single, "a.zip"), map[string]string{"amp.kicad_sch": "v1"}, time.Now())
	changed, err = d.DiffLatest("amp.kicad_sch", single)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDiffLatestMissingMember(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	writeArchive(t, filepath.Join(dir, "a.zip"), map[string]string{"amp.kicad_sch": "v1"}, base)
	writeArchive(t, filepath.Join(dir, "b.zip"), map[string]string{"amp.kicad_pcb": "v1"}, base.Add(time.Minute))

	_, err := NewDiffer(zerolog.Nop()).DiffLatest("amp.kicad_sch", dir)
	assert.Error(t, err)
}

func TestDiffLatestNotAnArchive(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	writeArchive(t, filepath.Join(dir, "a.zip"), map[string]string{"amp.kicad_sch": "v1"}, base)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.zip"), []byte("not a zip"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "b.zip"), base.Add(time.Minute), base.Add(time.Minute)))

	_, err := NewDiffer(zerolog.Nop()).DiffLatest("amp.kicad_sch", dir)
	assert.Error(t, err)
}

func TestDiffLatestMissingFolder(t *testing.T) {
	_, err := NewDiffer(zerolog.Nop()).DiffLatest("amp.kicad_sch", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
