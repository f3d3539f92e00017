package models

import "time"

// Post is a piece of content published into a community.
// LikesCount is persisted and must always equal the number of Like rows
// referencing the post; it is only ever changed in the same transaction as
// the corresponding Like insert or delete.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	CommunityID uint       `gorm:"not null;index:idx_post_community_created,priority:1" json:"communityId"`
	Community   *Community `gorm:"foreignKey:CommunityID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID    uint       `gorm:"not null;index" json:"authorId"`
	// Author is private; public payloads carry Author.AsAuthor().
	Author     *User `gorm:"foreignKey:AuthorID" json:"-"`
	LikesCount int   `gorm:"not null;default:0" json:"likesCount"`
	// LikedByMe is computed per requesting user
	LikedByMe bool      `gorm:"-" json:"likedByMe"`
	CreatedAt time.Time `gorm:"index:idx_post_community_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Like is the relation between a user and a post. Rows are hard-deleted on
// unlike so the unique index always reflects current state.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_post_user,priority:1" json:"postId"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_post_user,priority:2;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
