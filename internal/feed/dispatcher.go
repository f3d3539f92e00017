package feed

import (
	"context"
	"log/slog"

	"huddle/internal/likes"
	"huddle/internal/models"
	"huddle/internal/observability"
)

// Publisher fans an event out to a room.
type Publisher interface {
	Publish(ctx context.Context, roomID string, ev Event) error
}

// Dispatcher translates committed mutations into room events. Failures are
// logged and counted only: the mutation has already committed.
type Dispatcher struct {
	publisher Publisher
	logger    *slog.Logger
}

var _ likes.Listener = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher publishing through p.
func NewDispatcher(p Publisher) *Dispatcher {
	return &Dispatcher{publisher: p, logger: observability.Logger}
}

// OnPostCreated publishes NewPost to the post's community room.
func (d *Dispatcher) OnPostCreated(ctx context.Context, post *models.Post) {
	if post == nil {
		return
	}
	d.publish(ctx, RoomID(post.CommunityID), NewPost{Post: PayloadFromPost(post)})
}

// OnLikeToggled publishes LikeChanged to the community room.
func (d *Dispatcher) OnLikeToggled(ctx context.Context, postID, communityID uint, result likes.Result) {
	d.publish(ctx, RoomID(communityID), LikeChanged{
		PostID:   postID,
		Liked:    result.Liked,
		NewCount: result.NewCount,
	})
}

func (d *Dispatcher) publish(ctx context.Context, roomID string, ev Event) {
	if err := d.publisher.Publish(ctx, roomID, ev); err != nil {
		observability.EventPublishFailures.WithLabelValues(ev.Type()).Inc()
		d.logger.ErrorContext(ctx, "feed_event_publish_failed",
			slog.String("room", roomID),
			slog.String("type", ev.Type()),
			slog.String("error", err.Error()),
		)
		return
	}
	observability.EventsPublished.WithLabelValues(ev.Type()).Inc()
}
