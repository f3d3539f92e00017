package server

import (
	"huddle/internal/models"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/post
// @Summary Create post
// @Description Post into a community the caller is a member of. Members connected to the community room receive a new_post event.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{content=string,communityId=int} true "Post"
// @Success 201 {object} service.PostView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /post [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content     string `json:"content"`
		CommunityID uint   `json:"communityId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:      userID(c),
		CommunityID: req.CommunityID,
		Content:     req.Content,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(service.NewPostView(post))
}

// ToggleLike handles POST /api/post/:postId/like
// @Summary Toggle like
// @Description Flip the caller's like on a post and return the committed state
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} object{liked=bool,newCount=int}
// @Failure 404 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /post/{postId}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	res, err := s.postService.ToggleLike(c.UserContext(), userID(c), postID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"liked":    res.Liked,
		"newCount": res.NewCount,
	})
}
