package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"huddle/internal/models"
	"huddle/internal/observability"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Options configures a random seed run.
type Options struct {
	Users             int
	Communities       int
	PostsPerCommunity int
	// MaxLikesPerPost caps how many members like each post.
	MaxLikesPerPost int
	// Concurrency bounds the per-community fan-out.
	Concurrency int
	Clean       bool
}

// DefaultOptions is a small but lively dataset.
func DefaultOptions() Options {
	return Options{
		Users:             25,
		Communities:       5,
		PostsPerCommunity: 20,
		MaxLikesPerPost:   10,
		Concurrency:       4,
	}
}

// Report counts what a seed run created.
type Report struct {
	Users       int `json:"users" yaml:"users"`
	Communities int `json:"communities" yaml:"communities"`
	Memberships int `json:"memberships" yaml:"memberships"`
	Posts       int `json:"posts" yaml:"posts"`
	Likes       int `json:"likes" yaml:"likes"`
}

type counters struct {
	memberships atomic.Int64
	posts       atomic.Int64
	likes       atomic.Int64
}

// Seed fills db with random users, communities, memberships, posts and likes.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Report, error) {
	if opts.Users <= 0 || opts.Communities <= 0 {
		return Report{}, fmt.Errorf("seed needs at least one user and one community")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	if opts.Clean {
		if err := Clean(ctx, db); err != nil {
			return Report{}, err
		}
	}

	f := NewFactory(db)
	report := Report{}

	users := make([]*models.User, 0, opts.Users)
	for range opts.Users {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return report, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	report.Users = len(users)

	communities := make([]*models.Community, 0, opts.Communities)
	owners := make([]*models.User, 0, opts.Communities)
	for range opts.Communities {
		owner := users[rand.IntN(len(users))]
		c, err := f.CreateCommunity(ctx, owner, "", "")
		if err != nil {
			return report, fmt.Errorf("create community: %w", err)
		}
		communities = append(communities, c)
		owners = append(owners, owner)
	}
	report.Communities = len(communities)

	var n counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, c := range communities {
		g.Go(func() error {
			return populateCommunity(gctx, f, c, owners[i], users, opts, &n)
		})
	}
	err := g.Wait()

	report.Memberships = int(n.memberships.Load()) + report.Communities
	report.Posts = int(n.posts.Load())
	report.Likes = int(n.likes.Load())

	if err != nil {
		return report, err
	}
	observability.Logger.InfoContext(ctx, "seed_completed",
		slog.Int("users", report.Users),
		slog.Int("communities", report.Communities),
		slog.Int("posts", report.Posts),
		slog.Int("likes", report.Likes))
	return report, nil
}

// populateCommunity joins a random half of users to c, then has members post
// and like each other's posts.
func populateCommunity(ctx context.Context, f *Factory, c *models.Community, owner *models.User, users []*models.User, opts Options, n *counters) error {
	members := []*models.User{owner}
	for _, idx := range rand.Perm(len(users))[:len(users)/2+1] {
		u := users[idx]
		if u.ID == owner.ID {
			continue
		}
		if err := f.Join(ctx, u, c); err != nil {
			return fmt.Errorf("join %s: %w", c.Slug, err)
		}
		members = append(members, u)
		n.memberships.Add(1)
	}

	for range opts.PostsPerCommunity {
		author := members[rand.IntN(len(members))]
		post, err := f.CreatePost(ctx, author, c, "")
		if err != nil {
			return fmt.Errorf("post in %s: %w", c.Slug, err)
		}
		n.posts.Add(1)

		likers := rand.IntN(min(opts.MaxLikesPerPost, len(members)) + 1)
		for _, idx := range rand.Perm(len(members))[:likers] {
			res, err := f.ToggleLike(ctx, members[idx], post)
			if err != nil {
				return fmt.Errorf("like post %d: %w", post.ID, err)
			}
			if res.Liked {
				n.likes.Add(1)
			}
		}
	}
	return nil
}

// Clean removes every row the seeder can create, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Like{},
		&models.Post{},
		&models.CommunityMember{},
		&models.Community{},
		&models.User{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clean %T: %w", model, err)
		}
	}
	return nil
}
