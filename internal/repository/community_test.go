package repository

import (
	"context"
	"testing"

	"huddle/internal/likes"
	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCommunityRepository_CreateMakesCreatorAdmin(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)

	c := &models.Community{Name: "Go Nuts", Slug: "go-nuts", CreatedByUserID: owner.ID}
	require.NoError(t, repo.Create(ctx, c))
	require.NotZero(t, c.ID)

	role, member, err := repo.GetRole(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, models.CommunityRoleAdmin, role)

	exists, err := repo.SlugExists(ctx, "go-nuts")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &models.Community{Name: "Go Nuts", Slug: "go-nuts", CreatedByUserID: owner.ID}
	err = repo.Create(ctx, dup)
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestCommunityRepository_Membership(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	joiner := testutil.CreateUser(t, db)
	c := testutil.CreateCommunity(t, db, owner, "members")

	require.NoError(t, repo.AddMember(ctx, c.ID, joiner.ID, models.CommunityRoleMember))
	require.NoError(t, repo.AddMember(ctx, c.ID, joiner.ID, models.CommunityRoleMember))

	role, member, err := repo.GetRole(ctx, c.ID, joiner.ID)
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, models.CommunityRoleMember, role)

	mine, err := repo.ListForUser(ctx, joiner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)
	assert.Equal(t, models.CommunityRoleMember, mine[0].Role)

	require.NoError(t, repo.Leave(ctx, c.ID, joiner.ID))
	_, member, err = repo.GetRole(ctx, c.ID, joiner.ID)
	require.NoError(t, err)
	assert.False(t, member)

	err = repo.Leave(ctx, c.ID, joiner.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	err = repo.Leave(ctx, c.ID, owner.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict), "last admin stays")
}

func TestCommunityRepository_ConcurrentAdminsLeaveOneStays(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	second := testutil.CreateUser(t, db)
	c := testutil.CreateCommunity(t, db, owner, "two-admins")
	require.NoError(t, repo.AddMember(ctx, c.ID, second.ID, models.CommunityRoleAdmin))

	var g errgroup.Group
	errs := make([]error, 2)
	for i, u := range []*models.User{owner, second} {
		g.Go(func() error {
			errs[i] = repo.Leave(ctx, c.ID, u.ID)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var conflicts int
	for _, err := range errs {
		if models.IsCode(err, models.CodeConflict) {
			conflicts++
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, conflicts)

	var admins int64
	require.NoError(t, db.Model(&models.CommunityMember{}).
		Where("community_id = ? AND role = ?", c.ID, models.CommunityRoleAdmin).
		Count(&admins).Error)
	assert.Equal(t, int64(1), admins)
}

func TestCommunityRepository_ListNewestFirst(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	a := testutil.CreateCommunity(t, db, owner, "alpha")
	b := testutil.CreateCommunity(t, db, owner, "bravo")
	cc := testutil.CreateCommunity(t, db, owner, "charlie")

	all, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint{cc.ID, b.ID, a.ID}, []uint{all[0].ID, all[1].ID, all[2].ID})

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, b.ID, page[0].ID)
}

func TestCommunityRepository_UpdateKeepsID(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	c := testutil.CreateCommunity(t, db, owner, "before")

	c.Name = "After"
	c.Slug = "after"
	require.NoError(t, repo.Update(ctx, c))

	got, err := repo.GetBySlug(ctx, "after")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = repo.GetBySlug(ctx, "before")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	err = repo.Update(ctx, &models.Community{ID: 4242, Name: "x", Slug: "xyz"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCommunityRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommunityRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	c := testutil.CreateCommunity(t, db, owner, "doomed")
	post := testutil.CreatePost(t, db, c, owner)

	_, err := likes.NewEngine(NewLikeStore(db)).ToggleLike(ctx, post.ID, owner.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err = repo.GetByID(ctx, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Zero(t, testutil.CountLikes(t, db, post.ID))

	var posts, members int64
	require.NoError(t, db.Model(&models.Post{}).Where("community_id = ?", c.ID).Count(&posts).Error)
	require.NoError(t, db.Model(&models.CommunityMember{}).Where("community_id = ?", c.ID).Count(&members).Error)
	assert.Zero(t, posts)
	assert.Zero(t, members)

	err = repo.Delete(ctx, c.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ListAndLiked(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	c := testutil.CreateCommunity(t, db, owner, "listing")

	first := &models.Post{Content: "first", CommunityID: c.ID, AuthorID: owner.ID}
	require.NoError(t, posts.Create(ctx, first))
	require.NotNil(t, first.Author)
	assert.Equal(t, owner.Username, first.Author.Username)
	assert.Zero(t, first.LikesCount)

	second := &models.Post{Content: "second", CommunityID: c.ID, AuthorID: owner.ID}
	require.NoError(t, posts.Create(ctx, second))

	_, err := likes.NewEngine(NewLikeStore(db)).ToggleLike(ctx, second.ID, owner.ID)
	require.NoError(t, err)

	list, err := posts.ListByCommunity(ctx, c.ID, 200)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 1, list[0].LikesCount)
	require.NotNil(t, list[0].Author)

	liked, err := posts.LikedPostIDs(ctx, owner.ID, []uint{first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{second.ID}, liked)

	_, err = posts.GetByID(ctx, 777)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_UsernameTaken(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()
	a := testutil.CreateUser(t, db)
	b := testutil.CreateUser(t, db)

	taken, err := users.UsernameTaken(ctx, a.Username, b.ID)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = users.UsernameTaken(ctx, a.Username, a.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	b.Username = "renamed_user"
	b.Avatar = "https://example.com/b.png"
	require.NoError(t, users.Update(ctx, b))
	got, err := users.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed_user", got.Username)
}

func TestPostRepository_CreateWithUnknownAuthorStoresNothing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db)
	c := testutil.CreateCommunity(t, db, owner, "orphans")

	p := &models.Post{Content: "ghost", CommunityID: c.ID, AuthorID: 9999}
	err := posts.Create(ctx, p)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Zero(t, p.ID)
	assert.Nil(t, p.Author)

	var n int64
	require.NoError(t, db.Model(&models.Post{}).Count(&n).Error)
	assert.Zero(t, n)
}
