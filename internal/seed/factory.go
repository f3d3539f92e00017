// Package seed creates demo and fixture data for development databases.
// Everything is written through the same services the API uses, so slugs,
// memberships and like counters obey the production rules.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"huddle/internal/cache"
	"huddle/internal/likes"
	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/service"
	"huddle/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var topics = []string{
	"General", "Movies", "Music", "Television", "Gaming", "Fitness", "Hobbies",
	"Sports", "Technology", "Books", "Food", "Travel", "Programming", "Linux",
	"Frontend", "Backend", "DevOps", "Homelab", "Art", "History", "Science", "Pets",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db          *gorm.DB
	users       repository.UserRepository
	communities *service.CommunityService
	posts       *service.PostService
}

// NewFactory creates a Factory bound to db. Posts are created without a feed
// listener; seeding never reaches live connections.
func NewFactory(db *gorm.DB) *Factory {
	communityRepo := repository.NewCommunityRepository(db)
	postRepo := repository.NewPostRepository(db)
	engine := likes.NewEngine(repository.NewLikeStore(db))

	return &Factory{
		db:          db,
		users:       repository.NewUserRepository(db),
		communities: service.NewCommunityService(communityRepo, postRepo, cache.New(nil)),
		posts:       service.NewPostService(postRepo, communityRepo, engine, nil),
	}
}

// CreateUser persists a user with generated identity fields. Overrides run
// before the insert.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: fakeUsername(),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	if user.Email == "" {
		user.Email = strings.ToLower(user.Username) + "@example.com"
	}
	if err := validation.ValidateUsername(user.Username); err != nil {
		return nil, fmt.Errorf("seed user %q: %w", user.Username, err)
	}

	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateCommunity creates a community owned by owner. An empty name picks a
// random topic; colliding names get a suffixed slug.
func (f *Factory) CreateCommunity(ctx context.Context, owner *models.User, name, description string) (*models.Community, error) {
	if name == "" {
		name = topics[rand.IntN(len(topics))]
	}
	if description == "" {
		description = gofakeit.Sentence(12)
	}
	return f.communities.Create(ctx, service.CreateCommunityInput{
		UserID:      owner.ID,
		Name:        name,
		Description: description,
	})
}

// Join adds user to community as a member.
func (f *Factory) Join(ctx context.Context, user *models.User, community *models.Community) error {
	return f.communities.Join(ctx, user.ID, community.ID)
}

// CreatePost publishes content by author into community. An empty content
// generates a paragraph.
func (f *Factory) CreatePost(ctx context.Context, author *models.User, community *models.Community, content string) (*models.Post, error) {
	if content == "" {
		content = gofakeit.Paragraph(1, 3, 12, "\n")
		if len(content) > validation.MaxPostContent {
			content = content[:validation.MaxPostContent]
		}
	}
	return f.posts.CreatePost(ctx, service.CreatePostInput{
		UserID:      author.ID,
		CommunityID: community.ID,
		Content:     content,
	})
}

// ToggleLike flips user's like on post through the like engine.
func (f *Factory) ToggleLike(ctx context.Context, user *models.User, post *models.Post) (likes.Result, error) {
	return f.posts.ToggleLike(ctx, user.ID, post.ID)
}

// fakeUsername returns a handle that satisfies the username rules.
func fakeUsername() string {
	base := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, gofakeit.FirstName())
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("%s_%s", base, gofakeit.DigitN(6))
}
