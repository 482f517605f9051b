package models

// Setting stores single-row application state like the current account pointer.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// SettingCurrentAccountID names the row holding the current account pointer.
const SettingCurrentAccountID = "current_account_id"
