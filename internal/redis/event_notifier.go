package redis

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const EventsChannel = "incidents:events"

// EventNotifier announces committed incident changes to every instance so
// their relays read the event log before the next poll.
type EventNotifier struct {
	client  *goredis.Client
	channel string
	logger  *slog.Logger
}

func NewEventNotifier(client *goredis.Client, logger *slog.Logger) *EventNotifier {
	return &EventNotifier{client: client, channel: EventsChannel, logger: logger}
}

func (n *EventNotifier) Notify(ctx context.Context, incidentID uuid.UUID) {
	if err := n.client.Publish(ctx, n.channel, incidentID.String()).Err(); err != nil {
		n.logger.Warn("publish event announcement failed",
			slog.String("op", "redis.EventNotifier.Notify"),
			slog.Any("error", err),
		)
	}
}

// Listen calls wake for every announcement until ctx is done.
func (n *EventNotifier) Listen(ctx context.Context, wake func()) error {
	const op = "redis.EventNotifier.Listen"

	pubsub := n.client.Subscribe(ctx, n.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		n.logger.Error("subscribe failed", slog.String("op", op), slog.Any("error", err))
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := uuid.Parse(msg.Payload); err != nil {
				n.logger.Warn("bad event announcement", slog.String("op", op), slog.String("payload", msg.Payload))
				continue
			}
			wake()
		}
	}
}
