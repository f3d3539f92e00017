package server

import (
	"huddle/internal/models"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateCommunity handles POST /api/community
// @Summary Create community
// @Description Create a community; the caller becomes its admin
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,description=string} true "Community"
// @Success 201 {object} models.Community
// @Failure 400 {object} models.ErrorResponse
// @Router /community [post]
func (s *Server) CreateCommunity(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	community, err := s.communityService.Create(c.UserContext(), service.CreateCommunityInput{
		UserID:      userID(c),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(community)
}

// GetMyCommunities handles GET /api/community/mine
// @Summary My communities
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CommunityWithRole
// @Router /community/mine [get]
func (s *Server) GetMyCommunities(c *fiber.Ctx) error {
	communities, err := s.communityService.ListMine(c.UserContext(), userID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(communities)
}

// ExploreCommunities handles GET /api/community/explore
// @Summary Explore communities
// @Description Every community, newest first
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} models.Community
// @Router /community/explore [get]
func (s *Server) ExploreCommunities(c *fiber.Ctx) error {
	communities, err := s.communityService.Explore(c.UserContext(),
		c.QueryInt("limit", service.DefaultExploreLimit), c.QueryInt("offset", 0))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(communities)
}

// GetCommunityDetail handles GET /api/community/:slug
// @Summary Community page
// @Description Community header, caller role and the 200 newest posts
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Community slug"
// @Success 200 {object} service.CommunityDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /community/{slug} [get]
func (s *Server) GetCommunityDetail(c *fiber.Ctx) error {
	detail, err := s.communityService.Detail(c.UserContext(), userID(c), c.Params("slug"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(detail)
}

// JoinCommunity handles POST /api/community/:communityId/join
// @Summary Join community
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Param communityId path int true "Community ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /community/{communityId}/join [post]
func (s *Server) JoinCommunity(c *fiber.Ctx) error {
	communityID, err := parseID(c, "communityId")
	if err != nil {
		return nil
	}
	if err := s.communityService.Join(c.UserContext(), userID(c), communityID); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "community joined"})
}

// ExitCommunity handles DELETE /api/community/:communityId/exit
// @Summary Leave community
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Param communityId path int true "Community ID"
// @Success 200 {object} object{message=string}
// @Failure 409 {object} models.ErrorResponse
// @Router /community/{communityId}/exit [delete]
func (s *Server) ExitCommunity(c *fiber.Ctx) error {
	communityID, err := parseID(c, "communityId")
	if err != nil {
		return nil
	}
	if err := s.communityService.Exit(c.UserContext(), userID(c), communityID); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "community exited"})
}

// UpdateCommunity handles PUT /api/community/:communityId
// @Summary Update community
// @Description Admin only. A new name yields a new slug; the id is kept.
// @Tags communities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param communityId path int true "Community ID"
// @Param request body object{name=string,description=string} true "Fields to change"
// @Success 200 {object} models.Community
// @Failure 403 {object} models.ErrorResponse
// @Router /community/{communityId} [put]
func (s *Server) UpdateCommunity(c *fiber.Ctx) error {
	communityID, err := parseID(c, "communityId")
	if err != nil {
		return nil
	}
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	community, err := s.communityService.Update(c.UserContext(), service.UpdateCommunityInput{
		UserID:      userID(c),
		CommunityID: communityID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(community)
}

// DeleteCommunity handles DELETE /api/community/:communityId
// @Summary Delete community
// @Tags communities
// @Produce json
// @Security BearerAuth
// @Param communityId path int true "Community ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /community/{communityId} [delete]
func (s *Server) DeleteCommunity(c *fiber.Ctx) error {
	communityID, err := parseID(c, "communityId")
	if err != nil {
		return nil
	}
	if err := s.communityService.Delete(c.UserContext(), userID(c), communityID); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "community deleted"})
}
