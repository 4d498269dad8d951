package model

import "gorm.io/gorm"

// EmailRule marks sender addresses, e.g. as spam sources.
type EmailRule struct {
	gorm.Model
	EmailID string `gorm:"not null;index:idx_email_rules_email_id"`
	IsSpam  bool   `gorm:"not null;default:false"`
}

func (e *EmailRule) TableName() string {
	return "email_rules"
}
