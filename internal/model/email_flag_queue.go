package model

import "gorm.io/gorm"

// Email flag actions synced back to the mail server.
const (
	FlagActionRead   = "Read"
	FlagActionUnread = "Unread"
)

// EmailFlagQueue holds pending IMAP flag updates for received emails.
type EmailFlagQueue struct {
	gorm.Model
	CommunicationID string `gorm:"uuid;not null;index:idx_email_flag_queue_comm_id"`
	Action          string `gorm:"not null"`
	UID             int64  `gorm:"not null"`
	EmailAccount    string
	IsCompleted     bool `gorm:"not null;default:false"`
}

func (e *EmailFlagQueue) TableName() string {
	return "email_flag_queue"
}
