// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"

	"huddle/internal/database"
	"huddle/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory database with the full schema.
// The pool is pinned to one connection so the in-memory database survives
// and concurrent transactions serialize the way a single sqlite writer does.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser persists a user with generated identity fields.
func CreateUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		Username: gofakeit.Username() + gofakeit.DigitN(6),
		Email:    gofakeit.DigitN(8) + gofakeit.Email(),
		Avatar:   gofakeit.URL(),
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateCommunity persists a community with owner as its admin.
func CreateCommunity(t *testing.T, db *gorm.DB, owner *models.User, slug string) *models.Community {
	t.Helper()
	c := &models.Community{
		Name:            slug,
		Slug:            slug,
		Description:     gofakeit.Sentence(6),
		CreatedByUserID: owner.ID,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create community: %v", err)
	}
	if err := db.Create(&models.CommunityMember{
		CommunityID: c.ID, UserID: owner.ID, Role: models.CommunityRoleAdmin,
	}).Error; err != nil {
		t.Fatalf("create admin membership: %v", err)
	}
	return c
}

// CreatePost persists a post authored by author in community.
func CreatePost(t *testing.T, db *gorm.DB, community *models.Community, author *models.User) *models.Post {
	t.Helper()
	p := &models.Post{
		Content:     gofakeit.Sentence(10),
		CommunityID: community.ID,
		AuthorID:    author.ID,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

// CountLikes returns the number of like rows for postID.
func CountLikes(t *testing.T, db *gorm.DB, postID uint) int {
	t.Helper()
	var n int64
	if err := db.Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
		t.Fatalf("count likes: %v", err)
	}
	return int(n)
}

// LikesCount returns the persisted counter for postID.
func LikesCount(t *testing.T, db *gorm.DB, postID uint) int {
	t.Helper()
	var p models.Post
	if err := db.Select("likes_count").First(&p, postID).Error; err != nil {
		t.Fatalf("load post: %v", err)
	}
	return p.LikesCount
}
