package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kicad-gtm/kicad-gtm/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Initialize())
	return NewRepository(db)
}

func TestProjectsFolderUnset(t *testing.T) {
	repo := newTestRepository(t)

	folder, err := repo.ProjectsFolder()
	require.NoError(t, err)
	assert.Empty(t, folder)
}

func TestSetProjectsFolder(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SetProjectsFolder("/home/ada/kicad"))
	folder, err := repo.ProjectsFolder()
	require.NoError(t, err)
	assert.Equal(t, "/home/ada/kicad", folder)

	require.NoError(t, repo.SetProjectsFolder("/home/ada/boards"))
	folder, err = repo.ProjectsFolder()
	require.NoError(t, err)
	assert.Equal(t, "/home/ada/boards", folder)

	require.NoError(t, repo.SetProjectsFolder(""))
	folder, err = repo.ProjectsFolder()
	require.NoError(t, err)
	assert.Empty(t, folder)
}

func TestSettingPersistsAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	db, err := Connect(path)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	require.NoError(t, NewRepository(db).SetProjectsFolder("/projects"))
	require.NoError(t, db.Close())

	db, err = Connect(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Initialize())

	folder, err := NewRepository(db).ProjectsFolder()
	require.NoError(t, err)
	assert.Equal(t, "/projects", folder)
}

func TestErrorLogs(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, repo.CreateErrorLog(&models.ErrorLog{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			ErrorMsg:  msg,
		}))
	}

	logs, err := repo.RecentErrors(2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "third", logs[0].ErrorMsg)
	assert.Equal(t, "second", logs[1].ErrorMsg)

	all, err := repo.RecentErrors(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	deleted, err := repo.DeleteOldErrors(base.Add(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	logs, err = repo.RecentErrors(10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "third", logs[0].ErrorMsg)

	require.NoError(t, repo.ClearErrors())
	logs, err = repo.RecentErrors(10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
