package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type NoteRecord struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RawText     string              `gorm:"type:text;not null" json:"raw_text"`
	Symbol      string              `gorm:"index" json:"symbol"`
	ActionType  *string             `json:"action_type"`
	BuyPrice    decimal.NullDecimal `gorm:"type:text" json:"buy_price"`
	Conditions  datatypes.JSON      `json:"conditions"`
	UserOpinion string              `gorm:"type:text" json:"user_opinion"`

	LastChecked   *time.Time `json:"last_checked"`
	Active        bool       `gorm:"index;not null;default:true" json:"active"`
	AwaitingReset bool       `gorm:"not null;default:false" json:"awaiting_reset"`
}

func (NoteRecord) TableName() string {
	return "notes"
}

type CheckLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	NotesChecked  int            `json:"notes_checked"`
	AlertsCount   int            `json:"alerts_count"`
	SkippedCount  int            `json:"skipped_count"`
	FailuresCount int            `json:"failures_count"`
	AlertsJSON    datatypes.JSON `json:"alerts_json"`
	FailuresJSON  datatypes.JSON `json:"failures_json"`
}
