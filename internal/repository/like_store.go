package repository

import (
	"context"
	"errors"
	"time"

	"huddle/internal/likes"
	"huddle/internal/models"
	"huddle/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultTxRetries = 3
	defaultTxBackoff = 20 * time.Millisecond
)

// LikeStore is the gorm-backed transactional store behind the like engine.
type LikeStore struct {
	db         *gorm.DB
	maxRetries int
	backoff    time.Duration
}

// NewLikeStore creates a like store over db.
func NewLikeStore(db *gorm.DB) *LikeStore {
	return &LikeStore{db: db, maxRetries: defaultTxRetries, backoff: defaultTxBackoff}
}

// Atomically runs fn in one database transaction. Serialization failures and
// deadlocks are retried with a fresh transaction a bounded number of times;
// every other failure is returned classified.
func (s *LikeStore) Atomically(ctx context.Context, fn func(likes.Tx) error) error {
	span, ctx := observability.NewSpan(ctx, "likes.store.tx")
	defer span.End()

	for attempt := 0; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&likeTx{db: tx})
		})
		if err == nil {
			return nil
		}

		var appErr *models.AppError
		if !errors.As(err, &appErr) && isRetryable(err) && attempt < s.maxRetries {
			observability.LikeStoreRetries.WithLabelValues("serialization").Inc()
			time.Sleep(s.backoff * time.Duration(attempt+1))
			continue
		}
		err = classify(err)
		span.SetError(err)
		return err
	}
}

// LikeCount reads the persisted counter outside any toggle.
func (s *LikeStore) LikeCount(ctx context.Context, postID uint) (int, error) {
	return (&likeTx{db: s.db}).LikeCount(ctx, postID)
}

// RecountLikes recomputes likes_count for every post whose counter disagrees
// with its like rows. Each repair locks the post row first so it cannot
// interleave with a toggle on the same post.
func (s *LikeStore) RecountLikes(ctx context.Context) (int64, error) {
	var drifted []uint
	err := s.db.WithContext(ctx).Raw(`
		SELECT p.id FROM posts p
		LEFT JOIN (SELECT post_id, COUNT(*) AS n FROM likes GROUP BY post_id) l ON l.post_id = p.id
		WHERE p.likes_count <> COALESCE(l.n, 0)`).Scan(&drifted).Error
	if err != nil {
		return 0, classify(err)
	}

	var fixed int64
	for _, postID := range drifted {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var post models.Post
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id", "likes_count").First(&post, postID).Error; err != nil {
				return err
			}
			var rows int64
			if err := tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&rows).Error; err != nil {
				return err
			}
			if int64(post.LikesCount) == rows {
				return nil
			}
			if err := tx.Model(&models.Post{}).Where("id = ?", postID).
				UpdateColumn("likes_count", rows).Error; err != nil {
				return err
			}
			fixed++
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// deleted since the scan
			continue
		}
		if err != nil {
			return fixed, classify(err)
		}
	}
	return fixed, nil
}

// likeTx implements likes.Tx on one gorm transaction handle. Every statement
// must go through db; opening another connection inside the transaction would
// deadlock single-connection pools.
type likeTx struct {
	db *gorm.DB
}

func (t *likeTx) PostCommunity(ctx context.Context, postID uint) (uint, error) {
	var post models.Post
	err := t.db.WithContext(ctx).Select("id", "community_id").First(&post, postID).Error
	if err != nil {
		return 0, notFoundOr(err, "Post", postID)
	}
	return post.CommunityID, nil
}

func (t *likeTx) CreateLike(ctx context.Context, postID, userID uint) (bool, error) {
	res := t.db.WithContext(ctx).Exec(
		`INSERT INTO likes (post_id, user_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID, time.Now(),
	)
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return false, models.NewNotFoundError("Post", postID)
		}
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, t.adjust(ctx, postID, 1)
}

func (t *likeTx) DeleteLike(ctx context.Context, postID, userID uint) (bool, error) {
	res := t.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, t.adjust(ctx, postID, -1)
}

func (t *likeTx) LikeCount(ctx context.Context, postID uint) (int, error) {
	var post models.Post
	err := t.db.WithContext(ctx).Select("id", "likes_count").First(&post, postID).Error
	if err != nil {
		return 0, notFoundOr(err, "Post", postID)
	}
	return post.LikesCount, nil
}

// adjust applies delta in SQL; the counter is never read and rewritten.
func (t *likeTx) adjust(ctx context.Context, postID uint, delta int) error {
	res := t.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("likes_count", gorm.Expr("likes_count + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}
