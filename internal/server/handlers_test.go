package server_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"huddle/internal/models"
	"huddle/internal/service"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/health/live", nil, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	resp = h.do(http.MethodGet, "/health/ready", nil, "", &ready)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["redis"])
	assert.Equal(t, "healthy", ready.Checks["database"])
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db)

	resp := h.do(http.MethodGet, "/api/user/me", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/user/me", nil, "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var me models.User
	resp = h.do(http.MethodGet, "/api/user/me", nil, h.token(user.ID), &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, user.ID, me.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: h.token(user.ID)})
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "session cookie is accepted")
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db)
	tok := h.token(user.ID)

	resp := h.do(http.MethodPost, "/api/auth/logout", nil, tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "token" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared)

	resp = h.do(http.MethodGet, "/api/user/me", nil, tok, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSTicketIsSingleUse(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db)

	var issued struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	resp := h.do(http.MethodPost, "/api/ws/ticket", nil, h.token(user.ID), &issued)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, issued.Ticket)
	assert.Equal(t, 60, issued.ExpiresIn)
	assert.Equal(t, 60*time.Second, h.mr.TTL("ws_ticket:"+issued.Ticket))

	// A plain GET passes authentication and is refused for not upgrading.
	resp = h.do(http.MethodGet, "/api/ws?ticket="+issued.Ticket, nil, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.False(t, h.mr.Exists("ws_ticket:"+issued.Ticket))

	resp = h.do(http.MethodGet, "/api/ws?ticket="+issued.Ticket, nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCommunityAndPostFlow(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db)
	member := testutil.CreateUser(t, h.db)
	ownerTok, memberTok := h.token(owner.ID), h.token(member.ID)

	var community models.Community
	resp := h.do(http.MethodPost, "/api/community", map[string]string{"name": "Night Owls", "description": "late"}, ownerTok, &community)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "night-owls", community.Slug)

	var errResp models.ErrorResponse
	resp = h.do(http.MethodPost, "/api/post", map[string]any{"content": "hello", "communityId": community.ID}, memberTok, &errResp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, errResp.Code)

	resp = h.do(http.MethodPost, "/api/community/"+itoa(community.ID)+"/join", nil, memberTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var post service.PostView
	resp = h.do(http.MethodPost, "/api/post", map[string]any{"content": "hello", "communityId": community.ID}, memberTok, &post)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, models.Author{ID: member.ID, Username: member.Username, Avatar: member.Avatar}, post.Author)
	assert.False(t, post.LikedByMe)

	var toggled struct {
		Liked    bool `json:"liked"`
		NewCount int  `json:"newCount"`
	}
	resp = h.do(http.MethodPost, "/api/post/"+itoa(post.ID)+"/like", nil, ownerTok, &toggled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, toggled.Liked)
	assert.Equal(t, 1, toggled.NewCount)

	resp = h.do(http.MethodPost, "/api/post/abc/like", nil, ownerTok, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid post ID", errResp.Error)

	resp = h.do(http.MethodPost, "/api/post/9999/like", nil, ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var detail struct {
		Community models.Community `json:"community"`
		Role      string           `json:"role"`
		Posts     []map[string]any `json:"posts"`
	}
	resp = h.do(http.MethodGet, "/api/community/night-owls", nil, ownerTok, &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ADMIN", detail.Role)
	require.Len(t, detail.Posts, 1)
	got := detail.Posts[0]
	assert.EqualValues(t, 1, got["likesCount"])
	assert.Equal(t, true, got["likedByMe"])
	assert.EqualValues(t, community.ID, got["communityId"])
	assert.Equal(t, map[string]any{
		"id":       float64(member.ID),
		"username": member.Username,
		"avatar":   member.Avatar,
	}, got["author"], "authors carry only their public fields")
	assert.NotContains(t, got, "likes_count")

	var explored []models.Community
	resp = h.do(http.MethodGet, "/api/community/explore", nil, memberTok, &explored)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, explored, 1)
	assert.Equal(t, community.ID, explored[0].ID)

	var mine []models.CommunityWithRole
	resp = h.do(http.MethodGet, "/api/community/mine", nil, memberTok, &mine)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, mine, 1)
	assert.Equal(t, models.CommunityRoleMember, mine[0].Role)

	resp = h.do(http.MethodDelete, "/api/community/"+itoa(community.ID)+"/exit", nil, ownerTok, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(http.MethodPut, "/api/community/"+itoa(community.ID), map[string]string{"name": "Early Birds"}, memberTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var renamed models.Community
	resp = h.do(http.MethodPut, "/api/community/"+itoa(community.ID), map[string]string{"name": "Early Birds"}, ownerTok, &renamed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, community.ID, renamed.ID)
	assert.Equal(t, "early-birds", renamed.Slug)

	resp = h.do(http.MethodDelete, "/api/community/"+itoa(community.ID), nil, ownerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.do(http.MethodGet, "/api/community/early-birds", nil, ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateMe(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db)

	var updated models.User
	resp := h.do(http.MethodPut, "/api/user/me", map[string]string{"username": "night_owl"}, h.token(user.ID), &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "night_owl", updated.Username)

	resp = h.do(http.MethodPut, "/api/user/me", map[string]string{"username": "x"}, h.token(user.ID), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCommunityDetailHidesAuthorEmail(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db)
	viewer := testutil.CreateUser(t, h.db)
	c := testutil.CreateCommunity(t, h.db, owner, "private-bits")
	testutil.CreatePost(t, h.db, c, owner)

	resp := h.do(http.MethodGet, "/api/community/private-bits", nil, h.token(viewer.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.NotContains(t, string(body), `"email"`)
	assert.NotContains(t, string(body), owner.Email)
	assert.Contains(t, string(body), owner.Username)
}

func TestUserProfileAndDescription(t *testing.T) {
	h := newHarness(t)
	me := testutil.CreateUser(t, h.db)
	other := testutil.CreateUser(t, h.db)

	resp := h.do(http.MethodPut, "/api/user/me", map[string]string{"description": "builds bikes"}, h.token(other.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile map[string]any
	resp = h.do(http.MethodGet, "/api/user/"+itoa(other.ID), nil, h.token(me.ID), &profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"id":          float64(other.ID),
		"username":    other.Username,
		"avatar":      other.Avatar,
		"description": "builds bikes",
	}, profile)

	resp = h.do(http.MethodGet, "/api/user/9999", nil, h.token(me.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = h.do(http.MethodGet, "/api/user/abc", nil, h.token(me.ID), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteMeRevokesEveryToken(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db)
	leaver := testutil.CreateUser(t, h.db)
	c := testutil.CreateCommunity(t, h.db, owner, "farewell")
	post := testutil.CreatePost(t, h.db, c, owner)

	first, second := h.token(leaver.ID), h.token(leaver.ID)
	resp := h.do(http.MethodPost, "/api/post/"+itoa(post.ID)+"/like", nil, first, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, testutil.LikesCount(t, h.db, post.ID))

	resp = h.do(http.MethodDelete, "/api/user/me", nil, first, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, testutil.LikesCount(t, h.db, post.ID))
	assert.Zero(t, testutil.CountLikes(t, h.db, post.ID))

	resp = h.do(http.MethodPost, "/api/post/"+itoa(post.ID)+"/like", nil, second, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, testutil.CountLikes(t, h.db, post.ID))

	var errResp models.ErrorResponse
	resp = h.do(http.MethodDelete, "/api/user/me", nil, h.token(owner.ID), &errResp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, errResp.Code)
}
