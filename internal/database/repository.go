package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kicad-gtm/kicad-gtm/internal/models"
)

// Repository handles settings and error log persistence
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// GetSetting returns the value stored under key, or "" when unset
func (r *Repository) GetSetting(key string) (string, error) {
	var setting models.Setting
	result := r.db.First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", errors.Wrapf(result.Error, "failed to get setting %s", key)
	}
	return setting.Value, nil
}

// SetSetting inserts or replaces the value stored under key
func (r *Repository) SetSetting(key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to save setting %s", key)
	}
	return nil
}

// ProjectsFolder returns the tracked projects folder, "" when unset
func (r *Repository) ProjectsFolder() (string, error) {
	return r.GetSetting(models.SettingProjectsFolder)
}

// SetProjectsFolder stores the tracked projects folder
func (r *Repository) SetProjectsFolder(folder string) error {
	return r.SetSetting(models.SettingProjectsFolder, folder)
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// RecentErrors returns the newest error logs first
func (r *Repository) RecentErrors(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	query := r.db.Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&logs); result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// DeleteOldErrors deletes error logs older than a specified date (soft delete)
func (r *Repository) DeleteOldErrors(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.ErrorLog{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old error logs")
	}
	return result.RowsAffected, nil
}

// ClearErrors removes all error logs from the database
func (r *Repository) ClearErrors() error {
	result := r.db.Exec("DELETE FROM error_logs")
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear error logs")
	}
	return nil
}
