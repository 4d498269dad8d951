package jobs

import (
	"context"

	"github.com/emrgen/communication/internal/service"
	"github.com/emrgen/communication/internal/store"
	"github.com/sirupsen/logrus"
)

// DeliverySyncTask recomputes the delivery status of communications that
// still have unsettled email queue rows.
type DeliverySyncTask struct {
	store   store.Store
	service *service.CommunicationService
	cron    string
}

func NewDeliverySyncTask(schedule string, s store.Store, svc *service.CommunicationService) *DeliverySyncTask {
	return &DeliverySyncTask{
		store:   s,
		service: svc,
		cron:    schedule,
	}
}

func (d *DeliverySyncTask) Schedule() string {
	return d.cron
}

func (d *DeliverySyncTask) Run() {
	ctx := context.Background()

	ids, err := d.store.ListPendingEmailCommunicationIDs(ctx)
	if err != nil {
		logrus.Errorf("error listing pending email communications: %v", err)
		return
	}

	for _, id := range ids {
		if _, err := d.service.SetDeliveryStatus(ctx, id); err != nil {
			logrus.Errorf("error syncing delivery status for %s: %v", id, err)
		}
	}
}
