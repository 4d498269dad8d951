package model

import (
	"encoding/json"

	"gorm.io/gorm"
)

// Communication types.
const (
	TypeCommunication = "Communication"
	TypeChat          = "Chat"
	TypeNotification  = "Notification"
	TypeBot           = "Bot"
)

// Communication mediums.
const (
	MediumEmail = "Email"
	MediumChat  = "Chat"
)

// Directions.
const (
	DirectionSent     = "Sent"
	DirectionReceived = "Received"
)

// Record statuses.
const (
	StatusOpen    = "Open"
	StatusLinked  = "Linked"
	StatusClosed  = "Closed"
	StatusReplied = "Replied"
)

// Delivery statuses, derived from the email queue.
const (
	DeliverySending = "Sending"
	DeliverySent    = "Sent"
	DeliveryError   = "Error"
	DeliveryExpired = "Expired"
)

const EmailStatusSpam = "Spam"

// DoctypeCommunication is the type tag communications use when linking to each other.
const DoctypeCommunication = "Communication"

// Communication represents one external communication event like an email,
// a chat message, a notification or a bot reply.
type Communication struct {
	gorm.Model
	ID                  string `gorm:"primaryKey;uuid;not null"`
	CommunicationType   string `gorm:"index:idx_communications_status_type;default:Communication"`
	CommunicationMedium string
	SentOrReceived      string
	Status              string `gorm:"index:idx_communications_status_type"`
	DeliveryStatus      string
	EmailStatus         string
	Subject             string
	Content             string
	Compression         string // codec used to encode Content at rest
	Sender              string
	SenderFullName      string
	User                string
	EmailAccount        string
	UID                 int64 `gorm:"default:-1"`
	Seen                bool
	CommentType         string

	// primary reference link, the record this communication is filed against
	ReferenceDoctype string `gorm:"index:idx_communications_reference"`
	ReferenceName    string `gorm:"index:idx_communications_reference"`
	ReferenceOwner   string

	// timeline links, ordered by position
	Links []*CommunicationLink `gorm:"foreignKey:CommunicationID;references:ID"`
}

func (c *Communication) TableName() string {
	return "communications"
}

func (c *Communication) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

// IsEmail reports whether this communication travels over email.
func (c *Communication) IsEmail() bool {
	return c.CommunicationType == TypeCommunication && c.CommunicationMedium == MediumEmail
}
