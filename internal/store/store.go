package store

import (
	"context"
	"errors"

	"github.com/emrgen/communication/internal/model"
)

var (
	// ErrCommunicationNotFound is returned when a communication does not exist.
	ErrCommunicationNotFound = errors.New("communication not found")
)

// PermissionScope restricts which communications a list query may return.
// A privileged scope sees everything. A user scope with email accounts sees
// only communications on those accounts; a user scope without accounts sees
// only non-email communications.
type PermissionScope struct {
	Privileged    bool
	EmailAccounts []string
}

// ListFilter narrows a communication list query.
type ListFilter struct {
	ReferenceDoctype  string
	ReferenceName     string
	CommunicationType string
}

type Store interface {
	CommunicationStore
	EmailStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type CommunicationStore interface {
	// CreateCommunication creates a new communication with its links.
	CreateCommunication(ctx context.Context, comm *model.Communication) error
	// GetCommunication retrieves a communication by ID with its links in position order.
	GetCommunication(ctx context.Context, id string) (*model.Communication, error)
	// ListCommunications retrieves communications visible in the given scope.
	ListCommunications(ctx context.Context, scope PermissionScope, filter ListFilter) ([]*model.Communication, int64, error)
	// UpdateCommunication updates a communication record (links excluded).
	UpdateCommunication(ctx context.Context, comm *model.Communication) error
	// SetStatus updates only the record status.
	SetStatus(ctx context.Context, id, status string) error
	// SetDeliveryStatus updates only the delivery status.
	SetDeliveryStatus(ctx context.Context, id, status string) error
	// DeleteCommunication soft deletes a communication.
	DeleteCommunication(ctx context.Context, id string) error
	// ReplaceLinks replaces the link rows of a communication.
	ReplaceLinks(ctx context.Context, id string, links []*model.CommunicationLink) error
}

type EmailStore interface {
	// CreateEmailQueue enqueues an outbound email row.
	CreateEmailQueue(ctx context.Context, row *model.EmailQueue) error
	// CountEmailQueueStatuses tallies queue rows of a communication by status.
	CountEmailQueueStatuses(ctx context.Context, communicationID string) (map[string]int64, error)
	// ListPendingEmailCommunicationIDs returns communications with unsettled queue rows.
	ListPendingEmailCommunicationIDs(ctx context.Context) ([]string, error)
	// GetIncompleteEmailFlag returns a pending flag row for a communication, if any.
	GetIncompleteEmailFlag(ctx context.Context, communicationID string) (*model.EmailFlagQueue, error)
	// CreateEmailFlag inserts a flag queue row.
	CreateEmailFlag(ctx context.Context, flag *model.EmailFlagQueue) error
	// IsSpamSender reports whether a spam rule exists for the sender address.
	IsSpamSender(ctx context.Context, sender string) (bool, error)
	// ListUserEmailAccounts returns the email accounts assigned to a user.
	ListUserEmailAccounts(ctx context.Context, user string) ([]string, error)
}
