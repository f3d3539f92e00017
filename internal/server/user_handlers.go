package server

import (
	"huddle/internal/models"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/user/me
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /user/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.Me(c.UserContext(), userID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user)
}

// UpdateMe handles PUT /api/user/me
// @Summary Update current user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{username=string,avatar=string,description=string} true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /user/me [put]
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	var req struct {
		Username    *string `json:"username"`
		Avatar      *string `json:"avatar"`
		Description *string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateMe(c.UserContext(), service.UpdateProfileInput{
		UserID:      userID(c),
		Username:    req.Username,
		Avatar:      req.Avatar,
		Description: req.Description,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(user)
}

// DeleteMe handles DELETE /api/user/me
// @Summary Delete account
// @Description Delete the caller with their posts, likes and memberships. Every token of the account stops working.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 409 {object} models.ErrorResponse
// @Router /user/me [delete]
func (s *Server) DeleteMe(c *fiber.Ctx) error {
	uid := userID(c)
	if err := s.userService.DeleteAccount(c.UserContext(), uid); err != nil {
		return models.Respond(c, err)
	}
	s.revokeUser(c, uid)
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "account deleted"})
}

// GetUserProfile handles GET /api/user/:userId
// @Summary User profile
// @Description Public profile of any user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /user/{userId} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	profile, err := s.userService.Profile(c.UserContext(), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}

// GetMyFeatures handles GET /api/user/me/features
// @Summary Feature flags for the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]bool
// @Router /user/me/features [get]
func (s *Server) GetMyFeatures(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(userID(c)))
}
