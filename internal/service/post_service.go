package service

import (
	"context"
	"log/slog"
	"strings"

	"huddle/internal/likes"
	"huddle/internal/models"
	"huddle/internal/observability"
	"huddle/internal/repository"
	"huddle/internal/validation"
)

// PostListener is told about committed posts.
type PostListener interface {
	OnPostCreated(ctx context.Context, post *models.Post)
}

// LikeToggler flips a user's like on a post.
type LikeToggler interface {
	ToggleLike(ctx context.Context, postID, userID uint) (likes.Result, error)
}

type CreatePostInput struct {
	UserID      uint
	CommunityID uint
	Content     string
}

type PostService struct {
	postRepo      repository.PostRepository
	communityRepo repository.CommunityRepository
	likes         LikeToggler
	listener      PostListener
}

func NewPostService(
	postRepo repository.PostRepository,
	communityRepo repository.CommunityRepository,
	toggler LikeToggler,
	listener PostListener,
) *PostService {
	return &PostService{
		postRepo:      postRepo,
		communityRepo: communityRepo,
		likes:         toggler,
		listener:      listener,
	}
}

// CreatePost stores a post by a community member and announces it to the
// community room once committed.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	if err := validation.ValidatePostContent(content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.CommunityID == 0 {
		return nil, models.NewValidationError("communityId is required")
	}

	if _, err := s.communityRepo.GetByID(ctx, in.CommunityID); err != nil {
		return nil, err
	}
	_, member, err := s.communityRepo.GetRole(ctx, in.CommunityID, in.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, models.NewForbiddenError("join the community to post in it")
	}

	post := &models.Post{
		Content:     content,
		CommunityID: in.CommunityID,
		AuthorID:    in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	observability.Logger.InfoContext(ctx, "post_created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.Uint64("community_id", uint64(post.CommunityID)))

	if s.listener != nil {
		s.listener.OnPostCreated(context.WithoutCancel(ctx), post)
	}
	return post, nil
}

// ToggleLike flips userID's like on postID and returns the committed state.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (likes.Result, error) {
	if postID == 0 {
		return likes.Result{}, models.NewValidationError("postId is required")
	}
	return s.likes.ToggleLike(ctx, postID, userID)
}
