package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"huddle/internal/feed"
	"huddle/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Relay carries encoded room events between processes.
type Relay interface {
	PublishRoom(ctx context.Context, roomID string, payload []byte) error
}

// Router fans feed events out to the members of a room. With a relay every
// event takes the relay path and each process delivers what its subscriber
// receives. Without one, or when the publish provably never reached Redis,
// the event is delivered locally. A publish that may have reached Redis is
// not delivered again locally, so no member receives an event twice.
type Router struct {
	registry *Registry
	relay    Relay
	logger   *slog.Logger
}

var _ feed.Publisher = (*Router)(nil)

// NewRouter creates a router over registry. relay may be nil.
func NewRouter(registry *Registry, relay Relay) *Router {
	return &Router{registry: registry, relay: relay, logger: observability.Logger}
}

// Publish encodes ev once and fans it out to roomID.
func (r *Router) Publish(ctx context.Context, roomID string, ev feed.Event) error {
	span, ctx := observability.NewSpan(ctx, "feed.publish",
		attribute.String("room.id", roomID),
		attribute.String("event.type", ev.Type()),
	)
	defer span.End()

	payload, err := feed.Encode(ev)
	if err != nil {
		span.SetError(err)
		return err
	}

	if r.relay != nil {
		err := r.relay.PublishRoom(ctx, roomID, payload)
		if err == nil {
			span.AddAttributes(attribute.String("feed.path", "relay"))
			return nil
		}
		observability.RedisErrors.WithLabelValues("publish").Inc()
		if !NotSent(err) {
			// the subscriber may still deliver it
			span.SetError(err)
			return fmt.Errorf("relay publish to %s: %w", roomID, err)
		}
		r.logger.WarnContext(ctx, "feed_relay_publish_failed",
			slog.String("room", roomID),
			slog.String("error", err.Error()),
		)
	}

	n := r.DeliverLocal(roomID, payload)
	span.AddAttributes(attribute.String("feed.path", "local"), attribute.Int("feed.recipients", n))
	return nil
}

// DeliverLocal hands payload to every local member of roomID without
// blocking and returns how many accepted it. Deliveries into one room are
// serialized so members observe a single order.
func (r *Router) DeliverLocal(roomID string, payload []byte) int {
	rm := r.registry.lookup(roomID)
	if rm == nil {
		return 0
	}

	rm.publish.Lock()
	defer rm.publish.Unlock()

	rm.mu.RLock()
	members := rm.snapshot()
	rm.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.TrySend(payload) {
			delivered++
		}
	}
	return delivered
}

// StartWiring subscribes to the relay and delivers everything it receives
// to local members.
func (r *Router) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartRoomSubscriber(ctx, func(roomID string, payload []byte) {
		r.DeliverLocal(roomID, payload)
	})
}
