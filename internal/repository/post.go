package repository

import (
	"context"

	"huddle/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByCommunity(ctx context.Context, communityID uint, limit int) ([]*models.Post, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts post with a zero counter and loads its author in the same
// transaction, so a returned error always means nothing was stored.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	post.LikesCount = 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author models.User
		if err := tx.First(&author, post.AuthorID).Error; err != nil {
			return notFoundOr(err, "User", post.AuthorID)
		}
		if err := tx.Create(post).Error; err != nil {
			if isForeignKeyViolation(err) {
				return models.NewNotFoundError("Community", post.CommunityID)
			}
			return err
		}
		post.Author = &author
		return nil
	})
	if err != nil {
		post.ID = 0
		post.Author = nil
		return classify(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

// ListByCommunity returns the newest posts of a community with authors.
func (r *postRepository) ListByCommunity(ctx context.Context, communityID uint, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = 200
	}
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("community_id = ?", communityID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, classify(err)
	}
	return posts, nil
}

// LikedPostIDs returns the subset of postIDs that userID currently likes.
func (r *postRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 || userID == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, classify(err)
	}
	return liked, nil
}
