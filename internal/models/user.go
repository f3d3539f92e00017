// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a member of the platform.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:32;uniqueIndex;not null" json:"username"`
	Email       string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	GoogleID    *string   `gorm:"size:64;uniqueIndex" json:"-"`
	Avatar      string    `json:"avatar"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Author is the public projection of a user embedded in posts and events.
type Author struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Profile is what any signed-in user may see of another user.
type Profile struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
}

// AsProfile projects the user for other users to read.
func (u *User) AsProfile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Avatar: u.Avatar, Description: u.Description}
}

// AsAuthor projects the user for public payloads.
func (u *User) AsAuthor() Author {
	if u == nil {
		return Author{}
	}
	return Author{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
