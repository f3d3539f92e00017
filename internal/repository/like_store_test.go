package repository

import (
	"context"
	"errors"
	"net"
	"testing"

	"huddle/internal/likes"
	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestLikeStore_TwoUsersScenario(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	owner := testutil.CreateUser(t, db)
	userA := testutil.CreateUser(t, db)
	userB := testutil.CreateUser(t, db)
	community := testutil.CreateCommunity(t, db, owner, "scenario")
	post := testutil.CreatePost(t, db, community, owner)

	engine := likes.NewEngine(NewLikeStore(db))
	ctx := context.Background()

	res, err := engine.ToggleLike(ctx, post.ID, userA.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.NewCount)
	assert.Equal(t, community.ID, res.CommunityID)

	res, err = engine.ToggleLike(ctx, post.ID, userB.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, 2, res.NewCount)

	res, err = engine.ToggleLike(ctx, post.ID, userA.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, 1, res.NewCount)

	assert.Equal(t, 1, testutil.LikesCount(t, db, post.ID))
	var rows []models.Like
	require.NoError(t, db.Where("post_id = ?", post.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, userB.ID, rows[0].UserID)
}

func TestLikeStore_ConcurrentUsersKeepCounterEqualToRows(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	owner := testutil.CreateUser(t, db)
	community := testutil.CreateCommunity(t, db, owner, "concurrent")
	post := testutil.CreatePost(t, db, community, owner)

	const n = 50
	users := make([]*models.User, n)
	for i := range users {
		users[i] = testutil.CreateUser(t, db)
	}

	engine := likes.NewEngine(NewLikeStore(db))
	var g errgroup.Group
	for _, u := range users {
		userID := u.ID
		g.Go(func() error {
			_, err := engine.ToggleLike(context.Background(), post.ID, userID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, n, testutil.LikesCount(t, db, post.ID))
	assert.Equal(t, n, testutil.CountLikes(t, db, post.ID))
}

func TestLikeStore_UnknownPostLeavesNoTrace(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	user := testutil.CreateUser(t, db)

	engine := likes.NewEngine(NewLikeStore(db))
	_, err := engine.ToggleLike(context.Background(), 9999, user.ID)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Zero(t, testutil.CountLikes(t, db, 9999))
}

func TestLikeStore_RecountLikesRepairsDrift(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	owner := testutil.CreateUser(t, db)
	community := testutil.CreateCommunity(t, db, owner, "drift")
	drifted := testutil.CreatePost(t, db, community, owner)
	healthy := testutil.CreatePost(t, db, community, owner)

	store := NewLikeStore(db)
	engine := likes.NewEngine(store)
	_, err := engine.ToggleLike(context.Background(), drifted.ID, owner.ID)
	require.NoError(t, err)
	_, err = engine.ToggleLike(context.Background(), healthy.ID, owner.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", drifted.ID).
		UpdateColumn("likes_count", 7).Error)

	fixed, err := store.RecountLikes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), fixed)
	assert.Equal(t, 1, testutil.LikesCount(t, db, drifted.ID))
	assert.Equal(t, 1, testutil.LikesCount(t, db, healthy.ID))

	count, err := store.LikeCount(context.Background(), drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	fixed, err = store.RecountLikes(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestLikeStore_ConnectionFailureIsStoreUnavailable(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewLikeStore(db)

	mock.ExpectBegin().WillReturnError(&net.OpError{
		Op: "dial", Net: "tcp", Err: errors.New("connection refused"),
	})

	called := false
	err := store.Atomically(context.Background(), func(likes.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, models.IsCode(err, models.CodeStoreUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeStore_RetriesSerializationFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewLikeStore(db)
	store.backoff = 0

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := store.Atomically(context.Background(), func(likes.Tx) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeStore_RetriesExhaustedIsStoreUnavailable(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewLikeStore(db)
	store.backoff = 0

	for i := 0; i <= store.maxRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	err := store.Atomically(context.Background(), func(likes.Tx) error {
		return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeStoreUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeStore_AppErrorsAreNotRetried(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewLikeStore(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.Atomically(context.Background(), func(likes.Tx) error {
		return models.NewNotFoundError("Post", 1)
	})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
