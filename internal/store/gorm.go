package store

import (
	"context"
	"errors"

	"github.com/emrgen/communication/internal/model"
	"gorm.io/gorm"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateCommunication(ctx context.Context, comm *model.Communication) error {
	return g.db.WithContext(ctx).Create(comm).Error
}

func (g *GormStore) GetCommunication(ctx context.Context, id string) (*model.Communication, error) {
	var comm model.Communication
	err := g.db.WithContext(ctx).
		Preload("Links", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Where("id = ?", id).First(&comm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommunicationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &comm, nil
}

func (g *GormStore) ListCommunications(ctx context.Context, scope PermissionScope, filter ListFilter) ([]*model.Communication, int64, error) {
	q := g.db.WithContext(ctx).Model(&model.Communication{})

	if !scope.Privileged {
		if len(scope.EmailAccounts) == 0 {
			q = q.Where("communication_medium != ?", model.MediumEmail)
		} else {
			q = q.Where("email_account in (?)", scope.EmailAccounts)
		}
	}

	if filter.ReferenceDoctype != "" {
		q = q.Where("reference_doctype = ?", filter.ReferenceDoctype)
	}
	if filter.ReferenceName != "" {
		q = q.Where("reference_name = ?", filter.ReferenceName)
	}
	if filter.CommunicationType != "" {
		q = q.Where("communication_type = ?", filter.CommunicationType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comms []*model.Communication
	err := q.Preload("Links", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Order("created_at desc").Find(&comms).Error
	if err != nil {
		return nil, 0, err
	}

	return comms, total, nil
}

func (g *GormStore) UpdateCommunication(ctx context.Context, comm *model.Communication) error {
	return g.db.WithContext(ctx).Omit("Links").Save(comm).Error
}

func (g *GormStore) SetStatus(ctx context.Context, id, status string) error {
	return g.db.WithContext(ctx).Model(&model.Communication{}).
		Where("id = ?", id).Update("status", status).Error
}

func (g *GormStore) SetDeliveryStatus(ctx context.Context, id, status string) error {
	return g.db.WithContext(ctx).Model(&model.Communication{}).
		Where("id = ?", id).Update("delivery_status", status).Error
}

func (g *GormStore) DeleteCommunication(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Communication{}).Error
}

// ReplaceLinks swaps the stored link rows of a communication for the given set,
// keeping the given order as position.
func (g *GormStore) ReplaceLinks(ctx context.Context, id string, links []*model.CommunicationLink) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("communication_id = ?", id).Delete(&model.CommunicationLink{}).Error; err != nil {
			return err
		}

		for i, link := range links {
			row := &model.CommunicationLink{
				CommunicationID: id,
				LinkDoctype:     link.LinkDoctype,
				LinkName:        link.LinkName,
				Position:        i,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			link.ID = row.ID
			link.CommunicationID = id
			link.Position = i
		}

		return nil
	})
}

func (g *GormStore) CreateEmailQueue(ctx context.Context, row *model.EmailQueue) error {
	return g.db.WithContext(ctx).Create(row).Error
}

func (g *GormStore) CountEmailQueueStatuses(ctx context.Context, communicationID string) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := g.db.WithContext(ctx).Model(&model.EmailQueue{}).
		Select("status, count(*) as count").
		Where("communication_id = ?", communicationID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (g *GormStore) ListPendingEmailCommunicationIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := g.db.WithContext(ctx).Model(&model.EmailQueue{}).
		Distinct("communication_id").
		Where("status in (?)", []string{model.QueueNotSent, model.QueueSending}).
		Pluck("communication_id", &ids).Error
	return ids, err
}

func (g *GormStore) GetIncompleteEmailFlag(ctx context.Context, communicationID string) (*model.EmailFlagQueue, error) {
	var flag model.EmailFlagQueue
	err := g.db.WithContext(ctx).
		Where("communication_id = ? AND is_completed = ?", communicationID, false).
		First(&flag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &flag, nil
}

func (g *GormStore) CreateEmailFlag(ctx context.Context, flag *model.EmailFlagQueue) error {
	return g.db.WithContext(ctx).Create(flag).Error
}

func (g *GormStore) IsSpamSender(ctx context.Context, sender string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.EmailRule{}).
		Where("email_id = ? AND is_spam = ?", sender, true).
		Count(&count).Error
	return count > 0, err
}

func (g *GormStore) ListUserEmailAccounts(ctx context.Context, user string) ([]string, error) {
	var accounts []string
	err := g.db.WithContext(ctx).Model(&model.UserEmailAccount{}).
		Where(`"user" = ?`, user).
		Distinct().
		Pluck("email_account", &accounts).Error
	return accounts, err
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
