// Package feed defines the realtime events fanned out to community rooms and
// the dispatcher that turns committed mutations into them.
package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"huddle/internal/models"
)

// Event type tags on the wire.
const (
	TypeNewPost    = "new_post"
	TypeUpdateLike = "update_like"
)

const roomPrefix = "community:"

// Event is one of the closed set of feed events.
type Event interface {
	Type() string
	isEvent()
}

// Author is the public author projection carried in post payloads.
type Author = models.Author

// PostPayload is a post as rendered to feed clients.
type PostPayload struct {
	ID          uint      `json:"id"`
	CommunityID uint      `json:"communityId"`
	Author      Author    `json:"author"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	LikesCount  int       `json:"likesCount"`
}

// NewPost announces a freshly created post.
type NewPost struct {
	Post PostPayload `json:"post"`
}

// LikeChanged carries the authoritative like state after a toggle.
type LikeChanged struct {
	PostID   uint `json:"postId"`
	Liked    bool `json:"liked"`
	NewCount int  `json:"newCount"`
}

func (NewPost) Type() string     { return TypeNewPost }
func (LikeChanged) Type() string { return TypeUpdateLike }

func (NewPost) isEvent()     {}
func (LikeChanged) isEvent() {}

// PayloadFromPost projects a persisted post.
func PayloadFromPost(p *models.Post) PostPayload {
	return PostPayload{
		ID:          p.ID,
		CommunityID: p.CommunityID,
		Author:      p.Author.AsAuthor(),
		Content:     p.Content,
		CreatedAt:   p.CreatedAt,
		LikesCount:  p.LikesCount,
	}
}

// RoomID names the room of a community.
func RoomID(communityID uint) string {
	return roomPrefix + strconv.FormatUint(uint64(communityID), 10)
}

// CommunityFromRoom parses a room id produced by RoomID.
func CommunityFromRoom(roomID string) (uint, bool) {
	rest, ok := strings.CutPrefix(roomID, roomPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type newPostWire struct {
	Type string      `json:"type"`
	Post PostPayload `json:"post"`
}

type likeWire struct {
	Type     string `json:"type"`
	PostID   uint   `json:"postId"`
	Liked    bool   `json:"liked"`
	NewCount int    `json:"newCount"`
}

// Encode renders ev as its tagged JSON form.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case NewPost:
		return json.Marshal(newPostWire{Type: TypeNewPost, Post: e.Post})
	case *NewPost:
		return json.Marshal(newPostWire{Type: TypeNewPost, Post: e.Post})
	case LikeChanged:
		return json.Marshal(likeWire{Type: TypeUpdateLike, PostID: e.PostID, Liked: e.Liked, NewCount: e.NewCount})
	case *LikeChanged:
		return json.Marshal(likeWire{Type: TypeUpdateLike, PostID: e.PostID, Liked: e.Liked, NewCount: e.NewCount})
	default:
		return nil, fmt.Errorf("unknown feed event %T", ev)
	}
}

// Decode parses a tagged event. Unknown types are rejected.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode feed event: %w", err)
	}

	switch head.Type {
	case TypeNewPost:
		var w newPostWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return NewPost{Post: w.Post}, nil
	case TypeUpdateLike:
		var w likeWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		return LikeChanged{PostID: w.PostID, Liked: w.Liked, NewCount: w.NewCount}, nil
	default:
		return nil, fmt.Errorf("unknown feed event type %q", head.Type)
	}
}
