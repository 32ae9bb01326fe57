package server

import (
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flag state
// @Tags admin
// @Produce json
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := viewerID(c)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}

// SoftDeleteUser handles POST /api/admin/users/:id/soft-delete
// @Summary Disable an account
// @Description The account keeps its data but can no longer log in
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/soft-delete [post]
func (s *Server) SoftDeleteUser(c *fiber.Ctx) error {
	return s.setUserDeleted(c, true)
}

// RestoreUser handles POST /api/admin/users/:id/restore
func (s *Server) RestoreUser(c *fiber.Ctx) error {
	return s.setUserDeleted(c, false)
}

func (s *Server) setUserDeleted(c *fiber.Ctx, deleted bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.SetDeleted(c.UserContext(), id, deleted)
	if err != nil {
		return s.respondError(c, err)
	}
	observability.GlobalLogger.InfoContext(c.UserContext(), "admin changed account state",
		"admin_id", viewerID(c),
		"user_id", id,
		"deleted", deleted,
	)
	return c.JSON(user)
}
