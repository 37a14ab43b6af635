package models

import "time"

// SettingProjectsFolder is the folder whose KiCad files are tracked.
const SettingProjectsFolder = "projects_folder"

// Setting is one persisted user preference.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null;default:''" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
