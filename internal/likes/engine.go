// Package likes keeps post like counters consistent with like relations.
//
// Every toggle runs as one store transaction that flips the (post, user)
// relation and adjusts the post counter by the same delta with an atomic
// SQL expression. Toggles for the same pair are additionally serialized
// in-process; cross-process serialization comes from the store's unique
// index. Listeners hear about a toggle only after it has committed.
package likes

import (
	"context"
	"log/slog"
	"time"

	"huddle/internal/models"
	"huddle/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// defaultFlipAttempts bounds how often a toggle re-runs the delete path after
// losing an insert race to a concurrent toggle for the same pair.
const defaultFlipAttempts = 3

// Result is the authoritative outcome of one toggle, read back inside the
// transaction that produced it.
type Result struct {
	PostID      uint `json:"postId"`
	CommunityID uint `json:"communityId"`
	Liked       bool `json:"liked"`
	NewCount    int  `json:"newCount"`
}

// Tx is the set of primitives available inside one atomic store unit.
type Tx interface {
	// PostCommunity resolves the post's community or returns a NOT_FOUND AppError.
	PostCommunity(ctx context.Context, postID uint) (uint, error)
	// CreateLike inserts the relation and increments the counter. It reports
	// false without error when the relation already exists.
	CreateLike(ctx context.Context, postID, userID uint) (bool, error)
	// DeleteLike removes the relation and decrements the counter. It reports
	// false without error when there was nothing to delete.
	DeleteLike(ctx context.Context, postID, userID uint) (bool, error)
	// LikeCount reads the post counter as seen by this transaction.
	LikeCount(ctx context.Context, postID uint) (int, error)
}

// Store runs fn as a single atomic unit. Errors returned by fn roll the unit back.
type Store interface {
	Atomically(ctx context.Context, fn func(Tx) error) error
}

// Listener is told about committed toggles.
type Listener interface {
	OnLikeToggled(ctx context.Context, postID, communityID uint, result Result)
}

// Option configures an Engine.
type Option func(*Engine)

// WithListener registers the listener notified after each committed toggle.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listener = l }
}

// WithLogger overrides the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine toggles likes.
type Engine struct {
	store        Store
	locks        *keyedMutex
	listener     Listener
	logger       *slog.Logger
	flipAttempts int
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		locks:        newKeyedMutex(),
		logger:       observability.Logger,
		flipAttempts: defaultFlipAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ToggleLike flips whether userID likes postID and returns the new state with
// the post's authoritative like count.
//
// A started toggle is not abandoned when ctx is cancelled: the mutation and
// its notification complete even if the requester has gone away.
func (e *Engine) ToggleLike(ctx context.Context, postID, userID uint) (Result, error) {
	if postID == 0 || userID == 0 {
		return Result{}, models.NewValidationError("post and user are required")
	}
	ctx = context.WithoutCancel(ctx)

	span, ctx := observability.NewSpan(ctx, "likes.toggle",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int64("user.id", int64(userID)),
	)
	defer span.End()

	start := time.Now()
	unlock := e.locks.Lock(pairKey{postID: postID, userID: userID})
	defer unlock()

	res, err := e.toggle(ctx, postID, userID)
	observability.LikeToggleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetError(err)
		observability.LikeToggles.WithLabelValues(outcomeLabel(err)).Inc()
		e.logger.WarnContext(ctx, "like_toggle_failed",
			slog.Uint64("post_id", uint64(postID)),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	if res.Liked {
		observability.LikeToggles.WithLabelValues("liked").Inc()
	} else {
		observability.LikeToggles.WithLabelValues("unliked").Inc()
	}
	span.AddAttributes(attribute.Bool("like.liked", res.Liked), attribute.Int("like.count", res.NewCount))

	// Notified under the pair lock so a pair's events leave in commit order.
	if e.listener != nil {
		e.listener.OnLikeToggled(ctx, postID, res.CommunityID, res)
	}
	return res, nil
}

func (e *Engine) toggle(ctx context.Context, postID, userID uint) (Result, error) {
	var res Result
	err := e.store.Atomically(ctx, func(tx Tx) error {
		res = Result{PostID: postID}

		communityID, err := tx.PostCommunity(ctx, postID)
		if err != nil {
			return err
		}
		res.CommunityID = communityID

		flipped := false
		for attempt := 0; attempt < e.flipAttempts && !flipped; attempt++ {
			deleted, err := tx.DeleteLike(ctx, postID, userID)
			if err != nil {
				return err
			}
			if deleted {
				res.Liked = false
				flipped = true
				break
			}

			created, err := tx.CreateLike(ctx, postID, userID)
			if err != nil {
				return err
			}
			if created {
				res.Liked = true
				flipped = true
				break
			}
			// Another process inserted the same pair after our delete saw
			// nothing; its row is visible now, so the next pass unlikes.
			observability.LikeStoreRetries.WithLabelValues("insert_race").Inc()
		}
		if !flipped {
			return models.NewConflictError("like state changed concurrently, retry")
		}

		count, err := tx.LikeCount(ctx, postID)
		if err != nil {
			return err
		}
		res.NewCount = count
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func outcomeLabel(err error) string {
	switch {
	case models.IsCode(err, models.CodeNotFound):
		return "not_found"
	case models.IsCode(err, models.CodeStoreUnavailable):
		return "unavailable"
	case models.IsCode(err, models.CodeConflict):
		return "conflict"
	default:
		return "error"
	}
}
