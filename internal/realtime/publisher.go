package realtime

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Event names emitted to connected clients.
const (
	EventNewCommunication    = "new_communication"
	EventNewMessage          = "new_message"
	EventUpdateCommunication = "update_communication"
	EventDeleteCommunication = "delete_communication"
)

// Route addresses an event either to clients viewing a record, to a single
// user, or to everyone.
type Route struct {
	Doctype   string
	Docname   string
	User      string
	Broadcast bool
}

// RecordRoute targets clients viewing the given record.
func RecordRoute(doctype, docname string) Route {
	return Route{Doctype: doctype, Docname: docname}
}

// UserRoute targets a single user.
func UserRoute(user string) Route {
	return Route{User: user}
}

// BroadcastRoute targets all connected clients.
func BroadcastRoute() Route {
	return Route{Broadcast: true}
}

func (r Route) channel() string {
	switch {
	case r.Broadcast:
		return "realtime:broadcast"
	case r.User != "":
		return "realtime:user:" + r.User
	default:
		return "realtime:doc:" + r.Doctype + ":" + r.Docname
	}
}

// Publisher delivers realtime events to connected clients.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any, route Route) error
}

type envelope struct {
	Event     string `json:"event"`
	Payload   any    `json:"payload"`
	Broadcast bool   `json:"broadcast,omitempty"`
}

var _ Publisher = (*RedisPublisher)(nil)

// RedisPublisher fans events out over redis pub/sub. The socket layer that
// holds the client connections subscribes to the route channels.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event string, payload any, route Route) error {
	data, err := json.Marshal(envelope{
		Event:     event,
		Payload:   payload,
		Broadcast: route.Broadcast,
	})
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, route.channel(), data).Err(); err != nil {
		logrus.Errorf("error publishing %s to %s: %v", event, route.channel(), err)
		return err
	}

	return nil
}

var _ Publisher = (*NopPublisher)(nil)

// NopPublisher drops all events.
type NopPublisher struct{}

func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

func (p *NopPublisher) Publish(ctx context.Context, event string, payload any, route Route) error {
	return nil
}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Event   string
	Payload any
	Route   Route
}

var _ Publisher = (*Recorder)(nil)

// Recorder captures events in memory, used by tests.
type Recorder struct {
	Events []Recorded
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, event string, payload any, route Route) error {
	r.Events = append(r.Events, Recorded{Event: event, Payload: payload, Route: route})
	return nil
}
