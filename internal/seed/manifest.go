package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"huddle/internal/models"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Manifest is a hand-written fixture: named users plus communities with their
// members, posts and likes. Users are referenced by username.
//
//	users:
//	  - username: alice
//	communities:
//	  - name: Go Lang
//	    owner: alice
//	    members: [bob]
//	    posts:
//	      - author: bob
//	        content: hello
//	        liked_by: [alice]
type Manifest struct {
	Users       []ManifestUser      `yaml:"users"`
	Communities []ManifestCommunity `yaml:"communities"`
}

type ManifestUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Avatar   string `yaml:"avatar"`
}

type ManifestCommunity struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Owner       string         `yaml:"owner"`
	Members     []string       `yaml:"members"`
	Posts       []ManifestPost `yaml:"posts"`
}

type ManifestPost struct {
	Author  string   `yaml:"author"`
	Content string   `yaml:"content"`
	LikedBy []string `yaml:"liked_by"`
}

// LoadManifestFile reads and validates a manifest from path.
func LoadManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadManifest(f)
}

// LoadManifest decodes a manifest, rejecting unknown fields and dangling
// user references.
func LoadManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every referenced user is declared and every post
// author belongs to the community.
func (m *Manifest) Validate() error {
	declared := make(map[string]struct{}, len(m.Users))
	for _, u := range m.Users {
		if u.Username == "" {
			return errors.New("manifest user without username")
		}
		if _, dup := declared[u.Username]; dup {
			return fmt.Errorf("manifest user %q declared twice", u.Username)
		}
		declared[u.Username] = struct{}{}
	}

	var errs []error
	ref := func(where, name string) {
		if _, ok := declared[name]; !ok {
			errs = append(errs, fmt.Errorf("%s references unknown user %q", where, name))
		}
	}
	for _, c := range m.Communities {
		ref(fmt.Sprintf("community %q owner", c.Name), c.Owner)
		inCommunity := map[string]struct{}{c.Owner: {}}
		for _, name := range c.Members {
			ref(fmt.Sprintf("community %q members", c.Name), name)
			inCommunity[name] = struct{}{}
		}
		for i, p := range c.Posts {
			where := fmt.Sprintf("community %q post %d", c.Name, i+1)
			ref(where+" author", p.Author)
			if _, ok := inCommunity[p.Author]; !ok {
				errs = append(errs, fmt.Errorf("%s author %q is not a member", where, p.Author))
			}
			liked := make(map[string]struct{}, len(p.LikedBy))
			for _, name := range p.LikedBy {
				ref(where+" liked_by", name)
				// a second like would toggle the first one off
				if _, dup := liked[name]; dup {
					errs = append(errs, fmt.Errorf("%s liked_by lists %q twice", where, name))
				}
				liked[name] = struct{}{}
			}
		}
	}
	return errors.Join(errs...)
}

// Apply writes the manifest to db. Users and communities are created in
// declaration order; each community's members, posts and likes are then
// filled concurrently.
func Apply(ctx context.Context, db *gorm.DB, m *Manifest, concurrency int) (Report, error) {
	if err := m.Validate(); err != nil {
		return Report{}, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	f := NewFactory(db)
	report := Report{}

	users := make(map[string]*models.User, len(m.Users))
	for _, mu := range m.Users {
		u, err := f.CreateUser(ctx, func(u *models.User) {
			u.Username = mu.Username
			u.Email = mu.Email
			if mu.Avatar != "" {
				u.Avatar = mu.Avatar
			}
		})
		if err != nil {
			return report, fmt.Errorf("create user %q: %w", mu.Username, err)
		}
		users[mu.Username] = u
	}
	report.Users = len(users)

	communities := make([]*models.Community, len(m.Communities))
	for i, mc := range m.Communities {
		c, err := f.CreateCommunity(ctx, users[mc.Owner], mc.Name, mc.Description)
		if err != nil {
			return report, fmt.Errorf("create community %q: %w", mc.Name, err)
		}
		communities[i] = c
	}
	report.Communities = len(communities)

	var n counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, mc := range m.Communities {
		c := communities[i]
		g.Go(func() error {
			for _, name := range mc.Members {
				if name == mc.Owner {
					continue
				}
				if err := f.Join(gctx, users[name], c); err != nil {
					return fmt.Errorf("join %q to %s: %w", name, c.Slug, err)
				}
				n.memberships.Add(1)
			}
			for _, mp := range mc.Posts {
				post, err := f.CreatePost(gctx, users[mp.Author], c, mp.Content)
				if err != nil {
					return fmt.Errorf("post by %q in %s: %w", mp.Author, c.Slug, err)
				}
				n.posts.Add(1)
				for _, name := range mp.LikedBy {
					res, err := f.ToggleLike(gctx, users[name], post)
					if err != nil {
						return fmt.Errorf("like by %q: %w", name, err)
					}
					if res.Liked {
						n.likes.Add(1)
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()

	report.Memberships = int(n.memberships.Load()) + report.Communities
	report.Posts = int(n.posts.Load())
	report.Likes = int(n.likes.Load())
	return report, err
}
