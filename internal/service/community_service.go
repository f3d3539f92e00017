// Package service implements the request-level use cases behind the HTTP API.
package service

import (
	"context"
	"log/slog"
	"strings"

	"huddle/internal/cache"
	"huddle/internal/feed"
	"huddle/internal/models"
	"huddle/internal/observability"
	"huddle/internal/repository"
	"huddle/internal/validation"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	// detailPostLimit is how many of the newest posts a community page shows.
	detailPostLimit = 200
	slugSuffixLen   = 6
	slugAttempts    = 5

	DefaultExploreLimit = 50
	MaxExploreLimit     = 100
)

// PostView is a post as rendered to one user over HTTP. It has the same
// shape as the new_post event payload plus the caller's liked flag.
type PostView struct {
	feed.PostPayload
	LikedByMe bool `json:"likedByMe"`
}

// NewPostView projects p for the user it was loaded for.
func NewPostView(p *models.Post) PostView {
	return PostView{PostPayload: feed.PayloadFromPost(p), LikedByMe: p.LikedByMe}
}

// CommunityDetail is a community page as seen by one user.
type CommunityDetail struct {
	Community *models.Community    `json:"community"`
	Role      models.CommunityRole `json:"role,omitempty"`
	IsMember  bool                 `json:"is_member"`
	Posts     []PostView           `json:"posts"`
}

type CreateCommunityInput struct {
	UserID      uint
	Name        string
	Description string
}

type UpdateCommunityInput struct {
	UserID      uint
	CommunityID uint
	Name        *string
	Description *string
}

type CommunityService struct {
	communityRepo repository.CommunityRepository
	postRepo      repository.PostRepository
	cache         *cache.Cache
	suffix        func() string
}

func NewCommunityService(
	communityRepo repository.CommunityRepository,
	postRepo repository.PostRepository,
	c *cache.Cache,
) *CommunityService {
	suffix, err := nanoid.CustomASCII("abcdefghijklmnopqrstuvwxyz0123456789", slugSuffixLen)
	if err != nil {
		// only fails on invalid alphabet or length
		panic(err)
	}
	return &CommunityService{
		communityRepo: communityRepo,
		postRepo:      postRepo,
		cache:         c,
		suffix:        suffix,
	}
}

func (s *CommunityService) Create(ctx context.Context, in CreateCommunityInput) (*models.Community, error) {
	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateCommunityName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	slug, err := s.uniqueSlug(ctx, name, 0)
	if err != nil {
		return nil, err
	}

	community := &models.Community{
		Name:            name,
		Slug:            slug,
		Description:     strings.TrimSpace(in.Description),
		CreatedByUserID: in.UserID,
	}
	if err := s.communityRepo.Create(ctx, community); err != nil {
		return nil, err
	}

	observability.Logger.InfoContext(ctx, "community_created",
		slog.Uint64("community_id", uint64(community.ID)),
		slog.String("slug", community.Slug))
	return community, nil
}

// uniqueSlug derives a slug from name. Collisions with communities other than
// selfID, short slugs and reserved words get a random suffix.
func (s *CommunityService) uniqueSlug(ctx context.Context, name string, selfID uint) (string, error) {
	base := validation.GenerateSlug(name)
	if base == "" {
		return "", models.NewValidationError("community name must contain letters or digits")
	}

	candidate := base
	for attempt := 0; attempt < slugAttempts; attempt++ {
		if attempt > 0 || validation.ValidateCommunitySlug(candidate) != nil {
			candidate = s.withSuffix(base)
		}
		if err := validation.ValidateCommunitySlug(candidate); err != nil {
			return "", models.NewValidationError(err.Error())
		}

		existing, err := s.communityRepo.GetBySlug(ctx, candidate)
		if models.IsCode(err, models.CodeNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		if existing.ID == selfID {
			return candidate, nil
		}
	}
	return "", models.NewConflictError("could not allocate a unique community slug")
}

func (s *CommunityService) withSuffix(base string) string {
	suffix := "-" + s.suffix()
	if max := validation.MaxSlugLength - len(suffix); len(base) > max {
		base = strings.TrimRight(base[:max], "-")
	}
	return base + suffix
}

// Get returns a community by id.
func (s *CommunityService) Get(ctx context.Context, communityID uint) (*models.Community, error) {
	return s.communityRepo.GetByID(ctx, communityID)
}

// Join adds userID as a member. Joining twice is a no-op.
func (s *CommunityService) Join(ctx context.Context, userID, communityID uint) error {
	if _, err := s.communityRepo.GetByID(ctx, communityID); err != nil {
		return err
	}
	return s.communityRepo.AddMember(ctx, communityID, userID, models.CommunityRoleMember)
}

// Exit removes userID's membership. The last admin cannot leave.
func (s *CommunityService) Exit(ctx context.Context, userID, communityID uint) error {
	return s.communityRepo.Leave(ctx, communityID, userID)
}

func (s *CommunityService) ListMine(ctx context.Context, userID uint) ([]models.CommunityWithRole, error) {
	return s.communityRepo.ListForUser(ctx, userID)
}

// Explore lists every community, newest first. limit is clamped to
// MaxExploreLimit and defaults to DefaultExploreLimit.
func (s *CommunityService) Explore(ctx context.Context, limit, offset int) ([]models.Community, error) {
	if limit <= 0 {
		limit = DefaultExploreLimit
	}
	if limit > MaxExploreLimit {
		limit = MaxExploreLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.communityRepo.List(ctx, limit, offset)
}

// Detail returns the community header, the caller's role and the newest posts
// with per-caller liked flags. Only the header is cached.
func (s *CommunityService) Detail(ctx context.Context, userID uint, slug string) (*CommunityDetail, error) {
	var community models.Community
	err := s.cache.Aside(ctx, cache.CommunityKey(slug), &community, cache.CommunityTTL, func() error {
		c, err := s.communityRepo.GetBySlug(ctx, slug)
		if err != nil {
			return err
		}
		community = *c
		return nil
	})
	if err != nil {
		return nil, err
	}

	role, member, err := s.communityRepo.GetRole(ctx, community.ID, userID)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.ListByCommunity(ctx, community.ID, detailPostLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := s.postRepo.LikedPostIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	likedSet := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}
	views := make([]PostView, len(posts))
	for i, p := range posts {
		_, p.LikedByMe = likedSet[p.ID]
		views[i] = NewPostView(p)
	}

	return &CommunityDetail{
		Community: &community,
		Role:      role,
		IsMember:  member,
		Posts:     views,
	}, nil
}

// Update renames or re-describes a community. The id, and so the realtime
// room, is unchanged; a new name gets a new slug.
func (s *CommunityService) Update(ctx context.Context, in UpdateCommunityInput) (*models.Community, error) {
	community, err := s.requireAdmin(ctx, in.UserID, in.CommunityID)
	if err != nil {
		return nil, err
	}
	oldSlug := community.Slug

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.ValidateCommunityName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if name != community.Name {
			slug, err := s.uniqueSlug(ctx, name, community.ID)
			if err != nil {
				return nil, err
			}
			community.Name = name
			community.Slug = slug
		}
	}
	if in.Description != nil {
		community.Description = strings.TrimSpace(*in.Description)
	}

	if err := s.communityRepo.Update(ctx, community); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, cache.CommunityKey(oldSlug), cache.CommunityKey(community.Slug))
	return community, nil
}

func (s *CommunityService) Delete(ctx context.Context, userID, communityID uint) error {
	community, err := s.requireAdmin(ctx, userID, communityID)
	if err != nil {
		return err
	}
	if err := s.communityRepo.Delete(ctx, communityID); err != nil {
		return err
	}
	s.cache.Delete(ctx, cache.CommunityKey(community.Slug))

	observability.Logger.InfoContext(ctx, "community_deleted",
		slog.Uint64("community_id", uint64(communityID)))
	return nil
}

func (s *CommunityService) requireAdmin(ctx context.Context, userID, communityID uint) (*models.Community, error) {
	community, err := s.communityRepo.GetByID(ctx, communityID)
	if err != nil {
		return nil, err
	}
	role, _, err := s.communityRepo.GetRole(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}
	if role != models.CommunityRoleAdmin {
		return nil, models.NewForbiddenError("only community admins can do that")
	}
	return community, nil
}
