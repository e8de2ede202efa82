package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"moshimoshi/models"

	"github.com/go-redis/redis/v8"
)

// Subscription is one live channel subscription. Updates is closed when the
// subscription ends; Close releases the underlying connection.
type Subscription interface {
	Updates() <-chan []byte
	Close() error
}

// Subscriber opens subscriptions. Abstracted from the Redis client so the
// watcher can be exercised without a broker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Update is the result of watching one record: the presentation status the
// ticket should show, the record that produced it (nil on connection error),
// and a display message.
type Update struct {
	Status  models.TicketStatus
	Record  *models.Reservation
	Message string
}

// Watcher is the consumer-side reconciler: it awaits the first
// terminal-for-the-subscription push for a single record, maps it to the
// presentation enum, and releases the subscription.
type Watcher struct {
	sub Subscriber
}

func NewWatcher(sub Subscriber) *Watcher {
	return &Watcher{sub: sub}
}

// AwaitTerminal blocks until a pushed update carries a non-pending status,
// then returns the mapped presentation state. The subscription is released on
// every exit path, including context cancellation. A subscribe failure is
// surfaced immediately as a terminal connection-error update rather than an
// indefinite hang.
func (w *Watcher) AwaitTerminal(ctx context.Context, recordID string) (*Update, error) {
	sub, err := w.sub.Subscribe(ctx, ChannelFor(recordID))
	if err != nil {
		return &Update{
			Status:  models.TicketFailed,
			Message: "connection error: " + err.Error(),
		}, nil
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case payload, ok := <-sub.Updates():
			if !ok {
				return &Update{
					Status:  models.TicketFailed,
					Message: "connection error: subscription closed",
				}, nil
			}
			var rec models.Reservation
			if err := json.Unmarshal(payload, &rec); err != nil {
				// Undecodable push; keep waiting.
				continue
			}
			status := models.TicketStatusFor(rec.Status)
			if status == models.TicketPending {
				// Intermediate update (e.g. the call starting); not
				// terminal for this subscription.
				continue
			}
			msg := rec.FailureReason
			if msg == "" && rec.ConfirmationDetails != nil {
				msg = rec.ConfirmationDetails.Summary
			}
			return &Update{Status: status, Record: &rec, Message: msg}, nil
		}
	}
}

// RedisSubscriber implements Subscriber on a Redis client.
type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := s.client.Subscribe(ctx, channel)
	// Force the subscribe round-trip so connection failures surface here
	// instead of as a silent hang.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	sub := &redisSubscription{
		ps:      ps,
		updates: make(chan []byte),
		done:    make(chan struct{}),
	}
	go forwardMessages(ps.Channel(), sub.updates, sub.done)
	return sub, nil
}

// forwardMessages copies broker payloads to out until the source closes or
// the subscription is released. A pending send must not park the goroutine
// after the consumer has stopped reading, e.g. when the audio-url follow-up
// push lands right after the terminal status push was consumed.
func forwardMessages(src <-chan *redis.Message, out chan<- []byte, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case msg, ok := <-src:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}

type redisSubscription struct {
	ps      *redis.PubSub
	updates chan []byte
	done    chan struct{}
	once    sync.Once
}

func (s *redisSubscription) Updates() <-chan []byte { return s.updates }

func (s *redisSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.ps.Close()
}
