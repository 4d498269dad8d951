package model

import "gorm.io/gorm"

// Email queue row statuses.
const (
	QueueNotSent = "Not Sent"
	QueueSending = "Sending"
	QueueSent    = "Sent"
	QueueError   = "Error"
	QueueExpired = "Expired"
)

// EmailQueue represents one outbound email enqueued for a communication.
// The delivery status of a communication is derived from the statuses of
// its queue rows.
type EmailQueue struct {
	gorm.Model
	CommunicationID string `gorm:"uuid;not null;index:idx_email_queue_comm_id"`
	Recipient       string
	Status          string `gorm:"not null;default:Not Sent"`
	Error           string
}

func (e *EmailQueue) TableName() string {
	return "email_queue"
}
