package service

import (
	"context"
	"testing"

	"github.com/emrgen/communication/internal/compress"
	"github.com/emrgen/communication/internal/model"
	"github.com/emrgen/communication/internal/realtime"
	"github.com/emrgen/communication/internal/store"
	"github.com/emrgen/communication/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestService() (*CommunicationService, *store.GormStore, *realtime.Recorder) {
	s := store.NewGormStore(tester.TestDB())
	recorder := realtime.NewRecorder()
	svc := NewCommunicationService(compress.NewNop(), s, recorder)
	return svc, s, recorder
}

func TestCommunicationService_CreateDefaults(t *testing.T) {
	svc, _, _ := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:     "<p>Hello <b>there</b>, a question about the invoice</p>",
		SessionUser: "jane@example.com",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, comm.ID)

	assert.Equal(t, model.TypeCommunication, comm.CommunicationType)
	assert.Equal(t, "Hello there, a question about the invoice", comm.Subject)
	assert.Equal(t, model.DirectionSent, comm.SentOrReceived)
	assert.True(t, comm.Seen)
	assert.Equal(t, "jane@example.com", comm.User)
	assert.Equal(t, model.StatusOpen, comm.Status)
}

func TestCommunicationService_CreateStatus(t *testing.T) {
	svc, _, _ := newTestService()

	// referenced records come out linked
	linked, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:          "linked",
		ReferenceDoctype: "Task",
		ReferenceName:    "t1",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusLinked, linked.Status)

	// non-communication types without a reference are closed
	closed, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationType: model.TypeNotification,
		Content:           "note",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusClosed, closed.Status)
}

func TestCommunicationService_SenderFullName(t *testing.T) {
	svc, _, _ := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionSent,
		Sender:              "Jane Doe <jane@example.com>",
		Content:             "hello",
	})
	assert.NoError(t, err)
	assert.Equal(t, "jane@example.com", comm.Sender)
	assert.Equal(t, "Jane Doe", comm.SenderFullName)
}

func TestCommunicationService_InvalidSender(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionSent,
		Sender:              "not an address",
		Content:             "hello",
	})
	assert.ErrorIs(t, err, ErrInvalidSenderAddress)
}

func TestCommunicationService_SpamStatus(t *testing.T) {
	svc, s, _ := newTestService()

	err := tester.TestDB().Create(&model.EmailRule{EmailID: "spam@example.com", IsSpam: true}).Error
	assert.NoError(t, err)

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionSent,
		Sender:              "spam@example.com",
		Content:             "buy now",
	})
	assert.NoError(t, err)

	got, err := s.GetCommunication(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.EmailStatusSpam, got.EmailStatus)
}

func TestCommunicationService_CreateDeduplicatesLinks(t *testing.T) {
	svc, s, _ := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content: "with links",
		Links: []Link{
			{Doctype: "Task", Name: "t1"},
			{Doctype: "Task", Name: "t1"},
			{Doctype: "Note", Name: "n1"},
		},
	})
	assert.NoError(t, err)

	got, err := s.GetCommunication(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.Len(t, got.Links, 2)
	assert.Equal(t, "Task", got.Links[0].LinkDoctype)
	assert.Equal(t, "Note", got.Links[1].LinkDoctype)
}

func TestCommunicationService_CreateCircularLinks(t *testing.T) {
	svc, _, _ := newTestService()

	a, err := svc.Create(context.TODO(), &CreateCommunicationRequest{Content: "a"})
	assert.NoError(t, err)
	b, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content: "b",
		Links:   []Link{{Doctype: model.DoctypeCommunication, Name: a.ID}},
	})
	assert.NoError(t, err)
	c, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content: "c",
		Links:   []Link{{Doctype: model.DoctypeCommunication, Name: b.ID}},
	})
	assert.NoError(t, err)

	// closing the loop back to a is rejected at save time
	_, err = svc.Update(context.TODO(), &UpdateCommunicationRequest{
		ID:                a.ID,
		SessionUser:       AdministratorUser,
		IgnorePermissions: true,
	})
	assert.NoError(t, err)

	_, err = svc.AddTimelineLink(context.TODO(), a.ID, model.DoctypeCommunication, c.ID)
	assert.NoError(t, err)

	_, err = svc.Update(context.TODO(), &UpdateCommunicationRequest{
		ID:                a.ID,
		SessionUser:       AdministratorUser,
		IgnorePermissions: true,
	})
	assert.ErrorIs(t, err, ErrCircularLinking)
}

func TestCommunicationService_CreateCircularReference(t *testing.T) {
	svc, s, _ := newTestService()

	a, err := svc.Create(context.TODO(), &CreateCommunicationRequest{Content: "a"})
	assert.NoError(t, err)

	b, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:          "b",
		ReferenceDoctype: model.DoctypeCommunication,
		ReferenceName:    a.ID,
	})
	assert.NoError(t, err)

	// wire a's reference back to b behind the service's back
	got, err := s.GetCommunication(context.TODO(), a.ID)
	assert.NoError(t, err)
	got.ReferenceDoctype = model.DoctypeCommunication
	got.ReferenceName = b.ID
	assert.NoError(t, s.UpdateCommunication(context.TODO(), got))

	// now saving b again detects the loop
	_, err = svc.Update(context.TODO(), &UpdateCommunicationRequest{
		ID:                b.ID,
		SessionUser:       AdministratorUser,
		IgnorePermissions: true,
	})
	assert.ErrorIs(t, err, ErrCircularLinking)
}

func TestCommunicationService_AfterInsertEvents(t *testing.T) {
	svc, _, recorder := newTestService()

	// communication type routes to clients viewing the referenced record
	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:          "hello",
		ReferenceDoctype: "Task",
		ReferenceName:    "t1",
	})
	assert.NoError(t, err)

	assert.Len(t, recorder.Events, 1)
	assert.Equal(t, realtime.EventNewCommunication, recorder.Events[0].Event)
	assert.Equal(t, realtime.RecordRoute("Task", "t1"), recorder.Events[0].Route)
	assert.Equal(t, comm, recorder.Events[0].Payload)

	// chat addressed to another user routes to that user
	recorder.Events = nil
	_, err = svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationType: model.TypeChat,
		Content:           "ping",
		ReferenceDoctype:  "User",
		ReferenceName:     "bob@example.com",
		SessionUser:       "jane@example.com",
	})
	assert.NoError(t, err)

	assert.Len(t, recorder.Events, 1)
	assert.Equal(t, realtime.EventNewMessage, recorder.Events[0].Event)
	assert.Equal(t, realtime.UserRoute("bob@example.com"), recorder.Events[0].Route)

	// chat addressed to the session user broadcasts
	recorder.Events = nil
	_, err = svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationType: model.TypeNotification,
		Content:           "pong",
		ReferenceDoctype:  "User",
		ReferenceName:     "jane@example.com",
		SessionUser:       "jane@example.com",
	})
	assert.NoError(t, err)

	assert.Len(t, recorder.Events, 1)
	assert.Equal(t, realtime.EventNewMessage, recorder.Events[0].Event)
	assert.True(t, recorder.Events[0].Route.Broadcast)

	// no reference, no event
	recorder.Events = nil
	_, err = svc.Create(context.TODO(), &CreateCommunicationRequest{Content: "quiet"})
	assert.NoError(t, err)
	assert.Len(t, recorder.Events, 0)
}

func TestCommunicationService_MarksReplied(t *testing.T) {
	svc, s, _ := newTestService()

	parent, err := svc.Create(context.TODO(), &CreateCommunicationRequest{Content: "question"})
	assert.NoError(t, err)

	_, err = svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:          "answer",
		SentOrReceived:   model.DirectionSent,
		ReferenceDoctype: model.DoctypeCommunication,
		ReferenceName:    parent.ID,
	})
	assert.NoError(t, err)

	got, err := s.GetCommunication(context.TODO(), parent.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusReplied, got.Status)
}

type staticBot struct {
	reply string
}

func (b staticBot) Reply(ctx context.Context, content string) (string, error) {
	return b.reply, nil
}

func TestCommunicationService_BotReply(t *testing.T) {
	svc, s, _ := newTestService()
	svc.SetBotProvider(staticBot{reply: "hello human"})

	_, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationType: model.TypeChat,
		CommentType:       model.TypeBot,
		Content:           "hello bot",
		ReferenceDoctype:  "User",
		ReferenceName:     "jane@example.com",
		SessionUser:       "jane@example.com",
	})
	assert.NoError(t, err)

	comms, _, err := s.ListCommunications(context.TODO(), store.PermissionScope{Privileged: true}, store.ListFilter{
		CommunicationType: model.TypeBot,
	})
	assert.NoError(t, err)
	assert.Len(t, comms, 1)
	assert.Equal(t, "hello human", comms[0].Content)
}

func TestCommunicationService_BotReplyWithoutReference(t *testing.T) {
	svc, _, _ := newTestService()
	svc.SetBotProvider(staticBot{reply: "at your service"})

	// a chat addressed to the bot gets a reply even when it is not filed
	// against any record
	_, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationType: model.TypeChat,
		CommentType:       model.TypeBot,
		Content:           "anyone there",
		SessionUser:       "jane@example.com",
	})
	assert.NoError(t, err)

	var count int64
	err = tester.TestDB().Model(&model.Communication{}).
		Where("comment_type = ? AND content = ?", model.TypeBot, "at your service").
		Count(&count).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

type denyAllReferences struct{}

func (denyAllReferences) HasReadPermission(ctx context.Context, doctype, name, user string) (bool, error) {
	return false, nil
}

func TestCommunicationService_GetReadPermission(t *testing.T) {
	svc, _, _ := newTestService()
	svc.SetReferenceChecker(denyAllReferences{})

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:          "restricted",
		ReferenceDoctype: "Task",
		ReferenceName:    "t1",
		SessionUser:      "jane@example.com",
	})
	assert.NoError(t, err)

	// the reference record's checker decides, even for the creator
	_, err = svc.Get(context.TODO(), comm.ID, "jane@example.com")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// privileged users bypass the delegate
	got, err := svc.Get(context.TODO(), comm.ID, AdministratorUser)
	assert.NoError(t, err)
	assert.Equal(t, comm.ID, got.ID)

	// without a reference only the owner reads
	mine, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:     "mine",
		SessionUser: "jane@example.com",
	})
	assert.NoError(t, err)

	_, err = svc.Get(context.TODO(), mine.ID, "bob@example.com")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, err = svc.Get(context.TODO(), mine.ID, "jane@example.com")
	assert.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)
}

func TestCommunicationService_GetSelfReferenceDenied(t *testing.T) {
	svc, s, _ := newTestService()

	// a record filed against itself cannot be created through the service;
	// one reaching the store anyway is never readable through its reference
	comm := &model.Communication{
		ID:                uuid.New().String(),
		CommunicationType: model.TypeCommunication,
		ReferenceDoctype:  model.DoctypeCommunication,
		User:              "jane@example.com",
		UID:               -1,
	}
	comm.ReferenceName = comm.ID
	assert.NoError(t, s.CreateCommunication(context.TODO(), comm))

	_, err := svc.Get(context.TODO(), comm.ID, "jane@example.com")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCommunicationService_ListPermissionScope(t *testing.T) {
	svc, _, _ := newTestService()

	user := uuid.New().String() + "@example.com"
	account := uuid.New().String()

	_, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionReceived,
		Content:             "private email",
		EmailAccount:        account,
		SessionUser:         user,
	})
	assert.NoError(t, err)

	// without email accounts the user sees no email communications
	comms, _, err := svc.List(context.TODO(), &ListCommunicationsRequest{SessionUser: user})
	assert.NoError(t, err)
	for _, comm := range comms {
		assert.NotEqual(t, model.MediumEmail, comm.CommunicationMedium)
	}

	// with the account assigned the email shows up
	err = tester.TestDB().Create(&model.UserEmailAccount{User: user, EmailAccount: account}).Error
	assert.NoError(t, err)

	comms, total, err := svc.List(context.TODO(), &ListCommunicationsRequest{SessionUser: user})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, account, comms[0].EmailAccount)
}

func TestCommunicationService_QueueEmailFlag(t *testing.T) {
	svc, s, _ := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		CommunicationMedium: model.MediumEmail,
		SentOrReceived:      model.DirectionReceived,
		Content:             "incoming",
		UID:                 42,
		EmailAccount:        "support",
	})
	assert.NoError(t, err)

	assert.NoError(t, svc.QueueEmailFlag(context.TODO(), comm.ID))

	flag, err := s.GetIncompleteEmailFlag(context.TODO(), comm.ID)
	assert.NoError(t, err)
	assert.NotNil(t, flag)
	assert.Equal(t, model.FlagActionRead, flag.Action)
	assert.Equal(t, int64(42), flag.UID)

	// a second call does not stack another flag
	assert.NoError(t, svc.QueueEmailFlag(context.TODO(), comm.ID))

	var count int64
	err = tester.TestDB().Model(&model.EmailFlagQueue{}).
		Where("communication_id = ?", comm.ID).Count(&count).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCommunicationService_DeleteEvent(t *testing.T) {
	svc, _, recorder := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:          "to delete",
		ReferenceDoctype: "Task",
		ReferenceName:    "t9",
	})
	assert.NoError(t, err)

	recorder.Events = nil
	assert.NoError(t, svc.Delete(context.TODO(), comm.ID))

	assert.Len(t, recorder.Events, 1)
	assert.Equal(t, realtime.EventDeleteCommunication, recorder.Events[0].Event)
	assert.Equal(t, realtime.RecordRoute("Task", "t9"), recorder.Events[0].Route)

	_, err = svc.Get(context.TODO(), comm.ID, AdministratorUser)
	assert.ErrorIs(t, err, store.ErrCommunicationNotFound)
}

func TestCommunicationService_UpdatePermission(t *testing.T) {
	svc, _, _ := newTestService()

	comm, err := svc.Create(context.TODO(), &CreateCommunicationRequest{
		Content:     "mine",
		SessionUser: "jane@example.com",
	})
	assert.NoError(t, err)

	subject := "changed"
	_, err = svc.Update(context.TODO(), &UpdateCommunicationRequest{
		ID:          comm.ID,
		Subject:     &subject,
		SessionUser: "intruder@example.com",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, err := svc.Update(context.TODO(), &UpdateCommunicationRequest{
		ID:          comm.ID,
		Subject:     &subject,
		SessionUser: "jane@example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, "changed", got.Subject)
}
