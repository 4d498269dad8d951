package service

import (
	"context"

	"github.com/emrgen/communication/internal/model"
	"github.com/emrgen/communication/internal/realtime"
)

// SetDeliveryStatus derives the delivery status of an outbound communication
// from the statuses of its email queue rows and persists it. Received
// communications are skipped. Listening clients are notified on change.
func (s *CommunicationService) SetDeliveryStatus(ctx context.Context, id string) (string, error) {
	comm, err := s.store.GetCommunication(ctx, id)
	if err != nil {
		return "", err
	}

	if comm.SentOrReceived == model.DirectionReceived {
		return "", nil
	}

	counts, err := s.store.CountEmailQueueStatuses(ctx, comm.ID)
	if err != nil {
		return "", err
	}

	status := deliveryStatus(counts)
	if status == "" {
		return "", nil
	}

	if err := s.store.SetDeliveryStatus(ctx, comm.ID, status); err != nil {
		return "", err
	}

	s.invalidate(ctx, comm.ID)

	comm.DeliveryStatus = status
	s.publish(ctx, realtime.EventUpdateCommunication, comm,
		realtime.RecordRoute(comm.ReferenceDoctype, comm.ReferenceName))

	return status, nil
}

// deliveryStatus folds queue row counts into one status. Unsettled rows win
// over failures, failures over expiry, expiry over success.
func deliveryStatus(counts map[string]int64) string {
	switch {
	case counts[model.QueueNotSent] > 0 || counts[model.QueueSending] > 0:
		return model.DeliverySending
	case counts[model.QueueError] > 0:
		return model.DeliveryError
	case counts[model.QueueExpired] > 0:
		return model.DeliveryExpired
	case counts[model.QueueSent] > 0:
		return model.DeliverySent
	default:
		return ""
	}
}
