package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/emrgen/communication/internal/cache"
	"github.com/emrgen/communication/internal/compress"
	"github.com/emrgen/communication/internal/model"
	"github.com/emrgen/communication/internal/realtime"
	"github.com/emrgen/communication/internal/store"
	"github.com/emrgen/communication/internal/timeline"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// AdministratorUser is the built-in administrative account name.
	AdministratorUser = "Administrator"
	// GuestUser is the anonymous account name.
	GuestUser = "Guest"

	subjectLimit = 140

	cacheTTL = 5 * time.Minute
)

// Link identifies a timeline link target in requests.
type Link struct {
	Doctype string `json:"doctype"`
	Name    string `json:"name"`
}

type CreateCommunicationRequest struct {
	ID                  string `json:"id,omitempty"`
	CommunicationType   string `json:"communication_type"`
	CommunicationMedium string `json:"communication_medium"`
	SentOrReceived      string `json:"sent_or_received"`
	Subject             string `json:"subject"`
	Content             string `json:"content"`
	Sender              string `json:"sender"`
	CommentType         string `json:"comment_type"`
	ReferenceDoctype    string `json:"reference_doctype"`
	ReferenceName       string `json:"reference_name"`
	EmailAccount        string `json:"email_account"`
	UID                 int64  `json:"uid"`
	SessionUser         string `json:"-"`
	Links               []Link `json:"links"`
}

type UpdateCommunicationRequest struct {
	ID                string  `json:"-"`
	Subject           *string `json:"subject,omitempty"`
	Content           *string `json:"content,omitempty"`
	Status            *string `json:"status,omitempty"`
	SessionUser       string  `json:"-"`
	IgnorePermissions bool    `json:"-"`
}

type ListCommunicationsRequest struct {
	SessionUser       string
	ReferenceDoctype  string
	ReferenceName     string
	CommunicationType string
}

// NewCommunicationService creates a new CommunicationService.
func NewCommunicationService(codec compress.Compress, s store.Store, publisher realtime.Publisher) *CommunicationService {
	return &CommunicationService{
		compress:  codec,
		store:     s,
		publisher: publisher,
		roles:     NewStaticRolePolicy(AdministratorUser),
		refs:      allowAllReferences{},
		maxDepth:  timeline.DefaultMaxDepth,
	}
}

// CommunicationService owns the communication lifecycle: validation before
// save, timeline link maintenance, delivery status and realtime events.
type CommunicationService struct {
	compress    compress.Compress
	compression string // codec name recorded on stored content
	store       store.Store
	cache       *cache.Redis
	publisher   realtime.Publisher
	roles       RolePolicy
	refs        ReferenceChecker
	bot         BotReplyProvider
	maxDepth    int
}

// SetCompression selects the codec name recorded on new content.
func (s *CommunicationService) SetCompression(name string) {
	s.compression = name
}

// SetCache enables the read-through cache on Get.
func (s *CommunicationService) SetCache(c *cache.Redis) {
	s.cache = c
}

// SetBotProvider wires the bot reply backend.
func (s *CommunicationService) SetBotProvider(bot BotReplyProvider) {
	s.bot = bot
}

// SetRolePolicy replaces the privileged-user policy.
func (s *CommunicationService) SetRolePolicy(roles RolePolicy) {
	s.roles = roles
}

// SetReferenceChecker replaces the reference permission delegate.
func (s *CommunicationService) SetReferenceChecker(refs ReferenceChecker) {
	s.refs = refs
}

// SetMaxLinkDepth bounds the circular timeline-link traversal. Zero is unbounded.
func (s *CommunicationService) SetMaxLinkDepth(depth int) {
	s.maxDepth = depth
}

func (s *CommunicationService) manager(tx store.Store) *timeline.Manager {
	m := timeline.NewManager(tx)
	m.MaxDepth = s.maxDepth
	return m
}

// Create validates and inserts a new communication, then runs the
// after-insert stage: reply-status bookkeeping, realtime events and the bot
// reply hook.
func (s *CommunicationService) Create(ctx context.Context, req *CreateCommunicationRequest) (*model.Communication, error) {
	comm := &model.Communication{
		ID:                  req.ID,
		CommunicationType:   req.CommunicationType,
		CommunicationMedium: req.CommunicationMedium,
		SentOrReceived:      req.SentOrReceived,
		Subject:             req.Subject,
		Content:             req.Content,
		Sender:              req.Sender,
		CommentType:         req.CommentType,
		ReferenceDoctype:    req.ReferenceDoctype,
		ReferenceName:       req.ReferenceName,
		EmailAccount:        req.EmailAccount,
		UID:                 req.UID,
	}
	if comm.ID == "" {
		comm.ID = uuid.New().String()
	}
	if comm.CommunicationType == "" {
		comm.CommunicationType = model.TypeCommunication
	}
	if comm.UID == 0 {
		comm.UID = -1
	}

	for i, link := range req.Links {
		comm.Links = append(comm.Links, &model.CommunicationLink{
			CommunicationID: comm.ID,
			LinkDoctype:     link.Doctype,
			LinkName:        link.Name,
			Position:        i,
		})
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := s.validate(ctx, tx, comm, req.SessionUser, true); err != nil {
			return err
		}

		encoded, err := s.compress.Encode([]byte(comm.Content))
		if err != nil {
			return err
		}
		comm.Content = string(encoded)
		comm.Compression = s.compression

		return tx.CreateCommunication(ctx, comm)
	})
	if err != nil {
		return nil, err
	}

	s.afterInsert(ctx, comm)

	return s.decode(comm)
}

// Get retrieves a communication with decoded content, enforcing the read
// permission of the session user. Privileged users read everything; others
// inherit the read permission of the reference record.
func (s *CommunicationService) Get(ctx context.Context, id, user string) (*model.Communication, error) {
	comm, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	privileged, err := s.roles.IsPrivileged(ctx, user)
	if err != nil {
		return nil, err
	}
	if !privileged {
		ok, err := s.HasReadPermission(ctx, comm, user)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrPermissionDenied
		}
	}

	return comm, nil
}

// fetch loads a decoded communication, going through the read cache when one
// is configured.
func (s *CommunicationService) fetch(ctx context.Context, id string) (*model.Communication, error) {
	if s.cache != nil {
		var cached model.Communication
		found, err := s.cache.Get(ctx, cacheKey(id), &cached)
		if err != nil {
			logrus.Errorf("error reading communication %s from cache: %v", id, err)
		}
		if found {
			return &cached, nil
		}
	}

	comm, err := s.store.GetCommunication(ctx, id)
	if err != nil {
		return nil, err
	}

	comm, err = s.decode(comm)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(id), comm, cacheTTL); err != nil {
			logrus.Errorf("error caching communication %s: %v", id, err)
		}
	}

	return comm, nil
}

func cacheKey(id string) string {
	return "communication:" + id
}

func (s *CommunicationService) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	if err := s.cache.Del(ctx, keys...); err != nil {
		logrus.Errorf("error invalidating cached communications %v: %v", ids, err)
	}
}

// List retrieves communications visible to the session user.
func (s *CommunicationService) List(ctx context.Context, req *ListCommunicationsRequest) ([]*model.Communication, int64, error) {
	scope, err := s.scopeFor(ctx, req.SessionUser)
	if err != nil {
		return nil, 0, err
	}

	comms, total, err := s.store.ListCommunications(ctx, scope, store.ListFilter{
		ReferenceDoctype:  req.ReferenceDoctype,
		ReferenceName:     req.ReferenceName,
		CommunicationType: req.CommunicationType,
	})
	if err != nil {
		return nil, 0, err
	}

	for _, comm := range comms {
		if _, err := s.decode(comm); err != nil {
			return nil, 0, err
		}
	}

	return comms, total, nil
}

// Update applies changes to an existing communication and re-runs the
// validation pipeline before saving.
func (s *CommunicationService) Update(ctx context.Context, req *UpdateCommunicationRequest) (*model.Communication, error) {
	var comm *model.Communication

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		comm, err = tx.GetCommunication(ctx, req.ID)
		if err != nil {
			return err
		}

		if !req.IgnorePermissions {
			ok, err := s.canWrite(ctx, comm, req.SessionUser)
			if err != nil {
				return err
			}
			if !ok {
				return ErrPermissionDenied
			}
		}

		if _, err := s.decode(comm); err != nil {
			return err
		}

		if req.Subject != nil {
			comm.Subject = *req.Subject
		}
		if req.Content != nil {
			comm.Content = *req.Content
		}
		if req.Status != nil {
			comm.Status = *req.Status
		}

		if err := s.validate(ctx, tx, comm, req.SessionUser, false); err != nil {
			return err
		}

		encoded, err := s.compress.Encode([]byte(comm.Content))
		if err != nil {
			return err
		}
		comm.Content = string(encoded)
		comm.Compression = s.compression

		if err := tx.UpdateCommunication(ctx, comm); err != nil {
			return err
		}

		return tx.ReplaceLinks(ctx, comm.ID, comm.Links)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, comm.ID)

	return s.decode(comm)
}

// Delete removes a communication and notifies listening clients.
func (s *CommunicationService) Delete(ctx context.Context, id string) error {
	comm, err := s.store.GetCommunication(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteCommunication(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)

	if comm.CommunicationType == model.TypeCommunication {
		s.publish(ctx, realtime.EventDeleteCommunication, comm,
			realtime.RecordRoute(comm.ReferenceDoctype, comm.ReferenceName))
	}

	return nil
}

// AddTimelineLink appends a timeline link and persists it immediately,
// bypassing permission checks (the autosave escape hatch).
func (s *CommunicationService) AddTimelineLink(ctx context.Context, id, linkDoctype, linkName string) (*model.Communication, error) {
	comm, err := s.store.GetCommunication(ctx, id)
	if err != nil {
		return nil, err
	}

	mgr := s.manager(s.store)
	if err := mgr.AddLink(ctx, comm, linkDoctype, linkName, true); err != nil {
		return nil, err
	}

	s.invalidate(ctx, comm.ID)

	return s.decode(comm)
}

// RemoveTimelineLink removes all links matching the pair and persists.
func (s *CommunicationService) RemoveTimelineLink(ctx context.Context, id, linkDoctype, linkName string) (*model.Communication, error) {
	comm, err := s.store.GetCommunication(ctx, id)
	if err != nil {
		return nil, err
	}

	mgr := s.manager(s.store)
	if err := mgr.RemoveLink(ctx, comm, linkDoctype, linkName, true); err != nil {
		return nil, err
	}

	s.invalidate(ctx, comm.ID)

	return s.decode(comm)
}

// QueueEmailFlag enqueues a Read flag for a received email, unless an
// incomplete flag row already exists. Invoked when the record is opened.
func (s *CommunicationService) QueueEmailFlag(ctx context.Context, id string) error {
	comm, err := s.store.GetCommunication(ctx, id)
	if err != nil {
		return err
	}

	if !comm.IsEmail() || comm.SentOrReceived != model.DirectionReceived || comm.UID <= 0 {
		return nil
	}

	pending, err := s.store.GetIncompleteEmailFlag(ctx, comm.ID)
	if err != nil {
		return err
	}
	if pending != nil {
		return nil
	}

	return s.store.CreateEmailFlag(ctx, &model.EmailFlagQueue{
		CommunicationID: comm.ID,
		Action:          model.FlagActionRead,
		UID:             comm.UID,
		EmailAccount:    comm.EmailAccount,
	})
}

// validate is the pre-save pipeline. Every stage mirrors a lifecycle hook of
// the record: reference validation, defaults, status, sender identity and
// timeline link maintenance.
func (s *CommunicationService) validate(ctx context.Context, tx store.Store, comm *model.Communication, sessionUser string, isNew bool) error {
	mgr := s.manager(tx)

	if err := s.validateReference(ctx, tx, mgr, comm); err != nil {
		return err
	}

	if comm.User == "" {
		comm.User = sessionUser
	}

	if comm.Subject == "" {
		comm.Subject = defaultSubject(comm.Content)
	}

	if comm.SentOrReceived == "" {
		comm.Seen = true
		comm.SentOrReceived = model.DirectionSent
	}

	if isNew {
		if err := s.setStatus(ctx, tx, comm); err != nil {
			return err
		}
	}

	if err := s.setSenderFullName(comm, sessionUser); err != nil {
		return err
	}

	mgr.Deduplicate(comm)

	return mgr.DetectCircularLinks(ctx, comm)
}

func (s *CommunicationService) validateReference(ctx context.Context, tx store.Store, mgr *timeline.Manager, comm *model.Communication) error {
	if comm.ReferenceDoctype == "" || comm.ReferenceName == "" {
		return nil
	}

	if comm.ReferenceOwner == "" && comm.ReferenceDoctype == model.DoctypeCommunication {
		parent, err := tx.GetCommunication(ctx, comm.ReferenceName)
		if err != nil && !errors.Is(err, store.ErrCommunicationNotFound) {
			return err
		}
		if parent != nil {
			comm.ReferenceOwner = parent.User
		}
	}

	return mgr.ValidateReference(ctx, comm)
}

func (s *CommunicationService) setStatus(ctx context.Context, tx store.Store, comm *model.Communication) error {
	switch {
	case comm.ReferenceDoctype != "" && comm.ReferenceName != "":
		comm.Status = model.StatusLinked
	case comm.CommunicationType == model.TypeCommunication:
		comm.Status = model.StatusOpen
	default:
		comm.Status = model.StatusClosed
	}

	if comm.IsEmail() && comm.SentOrReceived == model.DirectionSent && comm.Sender != "" {
		spam, err := tx.IsSpamSender(ctx, comm.Sender)
		if err != nil {
			return err
		}
		if spam {
			comm.EmailStatus = model.EmailStatusSpam
		}
	}

	return nil
}

func (s *CommunicationService) setSenderFullName(comm *model.Communication, sessionUser string) error {
	if comm.SenderFullName != "" || comm.Sender == "" {
		return nil
	}

	switch comm.Sender {
	case AdministratorUser:
		comm.SenderFullName = AdministratorUser
	case GuestUser:
		comm.SenderFullName = GuestUser
		comm.Sender = ""
	default:
		addr, err := mail.ParseAddress(comm.Sender)
		if err != nil {
			if comm.SentOrReceived == model.DirectionSent && comm.CommunicationMedium == model.MediumEmail {
				return ErrInvalidSenderAddress
			}
			return nil
		}

		comm.Sender = addr.Address
		name := addr.Name
		if name == addr.Address {
			name = ""
		}
		if name == "" && sessionUser != "" && sessionUser != AdministratorUser {
			name = sessionUser
		}
		comm.SenderFullName = name
	}

	return nil
}

// afterInsert runs once the insert transaction committed: mark the referenced
// communication as replied, emit realtime events and trigger the bot reply.
// Replied marking and event routing need a reference; the bot reply does not.
func (s *CommunicationService) afterInsert(ctx context.Context, comm *model.Communication) {
	if comm.ReferenceDoctype != "" && comm.ReferenceName != "" {
		if comm.ReferenceDoctype == model.DoctypeCommunication && comm.SentOrReceived == model.DirectionSent {
			if err := s.store.SetStatus(ctx, comm.ReferenceName, model.StatusReplied); err != nil {
				logrus.Errorf("error marking communication %s as replied: %v", comm.ReferenceName, err)
			} else {
				s.invalidate(ctx, comm.ReferenceName)
			}
		}

		switch comm.CommunicationType {
		case model.TypeCommunication:
			s.publish(ctx, realtime.EventNewCommunication, comm,
				realtime.RecordRoute(comm.ReferenceDoctype, comm.ReferenceName))
		case model.TypeChat, model.TypeNotification, model.TypeBot:
			if comm.ReferenceName == comm.User {
				s.publish(ctx, realtime.EventNewMessage, comm, realtime.BroadcastRoute())
			} else {
				s.publish(ctx, realtime.EventNewMessage, comm, realtime.UserRoute(comm.ReferenceName))
			}
		}
	}

	s.botReply(ctx, comm)
}

func (s *CommunicationService) botReply(ctx context.Context, comm *model.Communication) {
	if s.bot == nil || comm.CommentType != model.TypeBot || comm.CommunicationType != model.TypeChat {
		return
	}

	content, err := s.decodeContent(comm)
	if err != nil {
		logrus.Errorf("error decoding content for bot reply: %v", err)
		return
	}

	reply, err := s.bot.Reply(ctx, content)
	if err != nil {
		logrus.Errorf("error getting bot reply: %v", err)
		return
	}
	if reply == "" {
		return
	}

	_, err = s.Create(ctx, &CreateCommunicationRequest{
		CommunicationType: model.TypeBot,
		CommentType:       model.TypeBot,
		Content:           reply,
		ReferenceDoctype:  comm.ReferenceDoctype,
		ReferenceName:     comm.ReferenceName,
		SessionUser:       comm.User,
	})
	if err != nil {
		logrus.Errorf("error creating bot reply: %v", err)
	}
}

func (s *CommunicationService) canWrite(ctx context.Context, comm *model.Communication, user string) (bool, error) {
	privileged, err := s.roles.IsPrivileged(ctx, user)
	if err != nil {
		return false, err
	}
	if privileged {
		return true, nil
	}

	return user != "" && user == comm.User, nil
}

func (s *CommunicationService) publish(ctx context.Context, event string, comm *model.Communication, route realtime.Route) {
	payload, err := s.decode(comm)
	if err != nil {
		logrus.Errorf("error decoding communication %s for event %s: %v", comm.ID, event, err)
		payload = comm
	}

	if err := s.publisher.Publish(ctx, event, payload, route); err != nil {
		logrus.Errorf("error publishing %s for communication %s: %v", event, comm.ID, err)
	}
}

// decode replaces the stored content with its decoded form, using the codec
// the record was written with.
func (s *CommunicationService) decode(comm *model.Communication) (*model.Communication, error) {
	content, err := s.decodeContent(comm)
	if err != nil {
		return nil, err
	}

	comm.Content = content
	comm.Compression = ""
	return comm, nil
}

func (s *CommunicationService) decodeContent(comm *model.Communication) (string, error) {
	if comm.Compression == "" || comm.Compression == compress.CodecNop {
		return comm.Content, nil
	}

	data, err := compress.FromName(comm.Compression).Decode([]byte(comm.Content))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// defaultSubject derives a subject from the first 140 characters of the
// stripped content.
func defaultSubject(content string) string {
	text := strings.TrimSpace(htmlTagPattern.ReplaceAllString(content, ""))
	runes := []rune(text)
	if len(runes) > subjectLimit {
		return string(runes[:subjectLimit])
	}

	return text
}
