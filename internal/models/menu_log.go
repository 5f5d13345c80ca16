package models

import (
	"time"

	"gorm.io/datatypes"
)

// MenuLog records every generated plan together with the parameters that
// produced it.
type MenuLog struct {
	ID          string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChatID      string         `gorm:"column:chat_id;type:text;index" json:"chat_id"`
	Params      datatypes.JSON `gorm:"column:params;type:jsonb" json:"params"`
	MenuJSON    datatypes.JSON `gorm:"column:menu_json;type:jsonb" json:"menu_json"`
	ArchivePath string         `gorm:"column:archive_path;type:text" json:"archive_path,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (MenuLog) TableName() string { return "menu_logs" }
