package service

import (
	"context"
	"testing"

	"github.com/emrgen/communication/internal/model"
	"github.com/emrgen/communication/internal/realtime"
	"github.com/emrgen/communication/internal/tester"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryStatusPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		counts map[string]int64
		want   string
	}{
		{"no rows", map[string]int64{}, ""},
		{"all sent", map[string]int64{model.QueueSent: 3}, model.DeliverySent},
		{"expired beats sent", map[string]int64{model.QueueSent: 2, model.QueueExpired: 1}, model.DeliveryExpired},
		{"error beats expired", map[string]int64{model.QueueExpired: 1, model.QueueError: 1}, model.DeliveryError},
		{"pending beats error", map[string]int64{model.QueueError: 1, model.QueueNotSent: 1}, model.DeliverySending},
		{"sending row", map[string]int64{model.QueueSending: 1, model.QueueSent: 4}, model.DeliverySending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deliveryStatus(tc.counts))
		})
	}
}

func TestCommunicationService_SetDeliveryStatus(t *testing.T) {
	svc, s, recorder := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionSent,
		Content:             "outbound",
		ReferenceDoctype:    "Task",
		ReferenceName:       "t1",
	})
	assert.NoError(t, err)

	err = s.CreateEmailQueue(context.TODO(), &model.EmailQueue{
		CommunicationID: comm.ID,
		Recipient:       "a@example.com",
		Status:          model.QueueSent,
	})
	assert.NoError(t, err)
	err = s.CreateEmailQueue(context.TODO(), &model.EmailQueue{
		CommunicationID: comm.ID,
		Recipient:       "b@example.com",
		Status:          model.QueueNotSent,
	})
	assert.NoError(t, err)

	recorder.Events = nil
	status, err := svc.SetDeliveryStatus(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.DeliverySending, status)

	got, err := s.GetCommunication(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.DeliverySending, got.DeliveryStatus)

	assert.Len(t, recorder.Events, 1)
	assert.Equal(t, realtime.EventUpdateCommunication, recorder.Events[0].Event)
	assert.Equal(t, realtime.RecordRoute("Task", "t1"), recorder.Events[0].Route)

	// once the second recipient settles the status follows
	err = tester.TestDB().Model(&model.EmailQueue{}).
		Where("communication_id = ?", comm.ID).
		Update("status", model.QueueSent).Error
	assert.NoError(t, err)

	status, err = svc.SetDeliveryStatus(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.DeliverySent, status)
}

func TestCommunicationService_SetDeliveryStatusSkipsReceived(t *testing.T) {
	svc, s, recorder := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionReceived,
		Content:             "inbound",
	})
	assert.NoError(t, err)

	err = s.CreateEmailQueue(context.TODO(), &model.EmailQueue{
		CommunicationID: comm.ID,
		Status:          model.QueueError,
	})
	assert.NoError(t, err)

	recorder.Events = nil
	status, err := svc.SetDeliveryStatus(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Empty(t, status)

	got, err := s.GetCommunication(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Empty(t, got.DeliveryStatus)
	assert.Len(t, recorder.Events, 0)
}

func TestCommunicationService_SetDeliveryStatusNoQueueRows(t *testing.T) {
	svc, _, recorder := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionSent,
		Content:             "never queued",
	})
	assert.NoError(t, err)

	recorder.Events = nil
	status, err := svc.SetDeliveryStatus(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Empty(t, status)
	assert.Len(t, recorder.Events, 0)
}
