package server

import (
	"strings"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media
// @Summary Upload a media file ahead of a post
// @Description The returned reference can be sent in the media list of POST /posts
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image or video"
// @Param media_type formData string false "image (default) or video"
// @Param caption formData string false "Caption"
// @Success 201 {object} models.Media
// @Failure 400 {object} models.ErrorResponse
// @Router /media [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	content, err := readFormFile(file)
	if err != nil {
		return s.respondError(c, err)
	}

	saved, err := s.mediaService.Save(c.UserContext(), service.UploadMediaInput{
		UserID:      viewerID(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
		Type:        models.MediaType(strings.ToLower(strings.TrimSpace(c.FormValue("media_type")))),
		Caption:     c.FormValue("caption"),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}
