package model

// CommunicationLink represents a dynamic timeline link between a communication
// and an arbitrary other record. The (LinkDoctype, LinkName) pair is kept unique
// within one communication by an explicit deduplication pass, not by the database.
type CommunicationLink struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	CommunicationID string `gorm:"uuid;not null;index:idx_communication_links_comm_id"`
	LinkDoctype     string `gorm:"not null;index:idx_communication_links_target"`
	LinkName        string `gorm:"not null;index:idx_communication_links_target"`
	Position        int    `gorm:"not null"` // first-occurrence order within the communication
}

func (l *CommunicationLink) TableName() string {
	return "communication_links"
}

// Pair returns the identity of the link target.
func (l *CommunicationLink) Pair() (string, string) {
	return l.LinkDoctype, l.LinkName
}
