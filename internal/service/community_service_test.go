package service

import (
	"context"
	"testing"

	"huddle/internal/cache"
	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type communityFixture struct {
	db  *gorm.DB
	mr  *miniredis.Miniredis
	svc *CommunityService
}

func newCommunityFixture(t *testing.T) *communityFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewCommunityService(
		repository.NewCommunityRepository(db),
		repository.NewPostRepository(db),
		cache.New(rdb),
	)
	return &communityFixture{db: db, mr: mr, svc: svc}
}

func TestCommunityService_CreateGeneratesSlug(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)

	c, err := f.svc.Create(ctx, CreateCommunityInput{UserID: owner.ID, Name: "  Go Lang  ", Description: " gophers "})
	require.NoError(t, err)
	assert.Equal(t, "Go Lang", c.Name)
	assert.Equal(t, "go-lang", c.Slug)
	assert.Equal(t, "gophers", c.Description)

	mine, err := f.svc.ListMine(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.CommunityRoleAdmin, mine[0].Role)
}

func TestCommunityService_CreateSuffixesCollidingSlug(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)

	first, err := f.svc.Create(ctx, CreateCommunityInput{UserID: owner.ID, Name: "Go Lang"})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, CreateCommunityInput{UserID: owner.ID, Name: "go_lang"})
	require.NoError(t, err)

	assert.Equal(t, "go-lang", first.Slug)
	assert.Regexp(t, `^go-lang-[a-z0-9]{6}$`, second.Slug)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCommunityService_CreateValidation(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)

	tests := []struct {
		name     string
		input    string
		wantCode string
		slugLike string
	}{
		{name: "too short", input: "ab", wantCode: models.CodeValidation},
		{name: "no slug characters", input: "!!!", wantCode: models.CodeValidation},
		{name: "reserved slug gets suffix", input: "Admin", slugLike: `^admin-[a-z0-9]{6}$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.svc.Create(ctx, CreateCommunityInput{UserID: owner.ID, Name: tt.input})
			if tt.wantCode != "" {
				assert.True(t, models.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, tt.slugLike, c.Slug)
		})
	}
}

func TestCommunityService_JoinAndExit(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)
	member := testutil.CreateUser(t, f.db)
	c := testutil.CreateCommunity(t, f.db, owner, "joiners")

	require.NoError(t, f.svc.Join(ctx, member.ID, c.ID))
	require.NoError(t, f.svc.Join(ctx, member.ID, c.ID), "join is idempotent")

	err := f.svc.Join(ctx, member.ID, c.ID+100)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	err = f.svc.Exit(ctx, owner.ID, c.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict), "last admin cannot leave")

	require.NoError(t, f.svc.Exit(ctx, member.ID, c.ID))
	err = f.svc.Exit(ctx, member.ID, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommunityService_ExploreClampsLimit(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)
	for _, slug := range []string{"first", "second", "third"} {
		testutil.CreateCommunity(t, f.db, owner, slug)
	}

	all, err := f.svc.Explore(ctx, 0, -5)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Slug)

	page, err := f.svc.Explore(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Slug)

	big, err := f.svc.Explore(ctx, MaxExploreLimit*10, 0)
	require.NoError(t, err)
	assert.Len(t, big, 3)
}

func TestCommunityService_DetailMarksLikedPostsAndCachesHeader(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)
	viewer := testutil.CreateUser(t, f.db)
	c := testutil.CreateCommunity(t, f.db, owner, "detail")
	p1 := testutil.CreatePost(t, f.db, c, owner)
	p2 := testutil.CreatePost(t, f.db, c, owner)
	require.NoError(t, f.db.Create(&models.Like{PostID: p1.ID, UserID: viewer.ID}).Error)

	d, err := f.svc.Detail(ctx, viewer.ID, "detail")
	require.NoError(t, err)
	assert.Equal(t, c.ID, d.Community.ID)
	assert.False(t, d.IsMember)
	assert.Empty(t, d.Role)
	require.Len(t, d.Posts, 2)

	liked := map[uint]bool{}
	for _, p := range d.Posts {
		liked[p.ID] = p.LikedByMe
		assert.Equal(t, models.Author{ID: owner.ID, Username: owner.Username, Avatar: owner.Avatar}, p.Author)
	}
	assert.True(t, liked[p1.ID])
	assert.False(t, liked[p2.ID])
	assert.True(t, f.mr.Exists(cache.CommunityKey("detail")))

	d, err = f.svc.Detail(ctx, owner.ID, "detail")
	require.NoError(t, err)
	assert.True(t, d.IsMember)
	assert.Equal(t, models.CommunityRoleAdmin, d.Role)

	_, err = f.svc.Detail(ctx, owner.ID, "missing")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommunityService_UpdateRequiresAdminAndInvalidates(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)
	member := testutil.CreateUser(t, f.db)
	c := testutil.CreateCommunity(t, f.db, owner, "before")
	require.NoError(t, f.svc.Join(ctx, member.ID, c.ID))

	_, err := f.svc.Detail(ctx, owner.ID, "before")
	require.NoError(t, err)
	require.True(t, f.mr.Exists(cache.CommunityKey("before")))

	name := "After Party"
	_, err = f.svc.Update(ctx, UpdateCommunityInput{UserID: member.ID, CommunityID: c.ID, Name: &name})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	updated, err := f.svc.Update(ctx, UpdateCommunityInput{UserID: owner.ID, CommunityID: c.ID, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, c.ID, updated.ID)
	assert.Equal(t, "after-party", updated.Slug)
	assert.False(t, f.mr.Exists(cache.CommunityKey("before")))

	_, err = f.svc.Detail(ctx, owner.ID, "before")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	desc := "new words"
	updated, err = f.svc.Update(ctx, UpdateCommunityInput{UserID: owner.ID, CommunityID: c.ID, Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "after-party", updated.Slug, "unchanged name keeps its slug")
	assert.Equal(t, "new words", updated.Description)
}

func TestCommunityService_Delete(t *testing.T) {
	f := newCommunityFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db)
	member := testutil.CreateUser(t, f.db)
	c := testutil.CreateCommunity(t, f.db, owner, "doomed")
	require.NoError(t, f.svc.Join(ctx, member.ID, c.ID))
	testutil.CreatePost(t, f.db, c, owner)

	err := f.svc.Delete(ctx, member.ID, c.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	require.NoError(t, f.svc.Delete(ctx, owner.ID, c.ID))

	var posts int64
	require.NoError(t, f.db.Model(&models.Post{}).Where("community_id = ?", c.ID).Count(&posts).Error)
	assert.Zero(t, posts)

	err = f.svc.Delete(ctx, owner.ID, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
