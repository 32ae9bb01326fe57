package server

import (
	"github.com/gofiber/fiber/v2"
)

// Follow handles POST /api/follows
// @Summary Follow a user
// @Description Following an already followed user returns the existing edge with 200
// @Tags follows
// @Accept json
// @Produce json
// @Param request body object{following_id=int} true "User to follow"
// @Success 200 {object} models.Follow
// @Success 201 {object} models.Follow
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /follows [post]
func (s *Server) Follow(c *fiber.Ctx) error {
	var req struct {
		FollowingID uint `json:"following_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.FollowingID == 0 {
		return s.respondError(c, fieldRequired("following_id"))
	}

	result, err := s.followService.Follow(c.UserContext(), viewerID(c), req.FollowingID)
	if err != nil {
		return s.respondError(c, err)
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(result.Follow)
}

// Unfollow handles DELETE /api/follows/:userId
func (s *Server) Unfollow(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.followService.Unfollow(c.UserContext(), viewerID(c), userID); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
