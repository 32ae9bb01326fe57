package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts?sort=latest|trending
// @Summary List posts
// @Tags posts
// @Produce json
// @Param sort query string false "latest or trending"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)

	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Sort:     c.Query("sort"),
		ViewerID: viewerID(c),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetFeed handles GET /api/posts/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)

	posts, err := s.postService.Feed(c.UserContext(), viewerID(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetExplore handles GET /api/posts/explore
func (s *Server) GetExplore(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)

	posts, err := s.postService.Explore(c.UserContext(), viewerID(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)

	posts, err := s.postService.SearchPosts(c.UserContext(), c.Query("q"), viewerID(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Accepts multipart uploads (media_files with matching media_types and media_captions) or a JSON body referencing media uploaded earlier
// @Tags posts
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param description formData string false "Description"
// @Param location formData string false "Location"
// @Param hashtags formData []string false "Hashtags"
// @Param media_files formData file false "Media files"
// @Param media_types formData []string false "image or video per file"
// @Param media_captions formData []string false "Caption per file"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := service.CreatePostInput{UserID: viewerID(c)}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		in.Description = firstValue(form, "description")
		in.Location = firstValue(form, "location")
		in.Hashtags = formValues(form, "hashtags")

		uploads, err := readUploads(form)
		if err != nil {
			return s.respondError(c, err)
		}
		in.Uploads = uploads
	} else {
		var req struct {
			Description string         `json:"description"`
			Location    string         `json:"location"`
			Hashtags    []string       `json:"hashtags"`
			Media       []models.Media `json:"media"`
		}
		if err := parseBody(c, &req); err != nil {
			return nil
		}
		in.Description = req.Description
		in.Location = req.Location
		in.Hashtags = req.Hashtags
		in.Media = req.Media
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// readUploads pairs every media file with its type and caption. The three
// lists must be the same length.
func readUploads(form *multipart.Form) ([]service.UploadMediaInput, error) {
	files := form.File["media_files"]
	types := formValues(form, "media_types")
	captions := formValues(form, "media_captions")

	if len(types) != len(files) {
		return nil, models.NewFieldValidationError(map[string]string{
			"media_types": fmt.Sprintf("Expected %d media types, got %d.", len(files), len(types)),
		})
	}
	if len(captions) != len(files) {
		return nil, models.NewFieldValidationError(map[string]string{
			"media_captions": fmt.Sprintf("Expected %d media captions, got %d.", len(files), len(captions)),
		})
	}
	if len(files) > service.MaxMediaPerPost {
		return nil, models.NewValidationError("Too many media files (max 10)")
	}

	uploads := make([]service.UploadMediaInput, 0, len(files))
	for i, fh := range files {
		content, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, service.UploadMediaInput{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     content,
			Type:        models.MediaType(strings.ToLower(strings.TrimSpace(types[i]))),
			Caption:     captions[i],
		})
	}
	return uploads, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Failed to read uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewValidationError("Failed to read uploaded file")
	}
	return content, nil
}

// formValues accepts both "name" and "name[]" keys.
func formValues(form *multipart.Form, name string) []string {
	values := append([]string{}, form.Value[name]...)
	return append(values, form.Value[name+"[]"]...)
}

func firstValue(form *multipart.Form, name string) string {
	if v := form.Value[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Description *string   `json:"description"`
		Location    *string   `json:"location"`
		Hashtags    *[]string `json:"hashtags"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:      viewerID(c),
		PostID:      id,
		Description: req.Description,
		Location:    req.Location,
		Hashtags:    req.Hashtags,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: viewerID(c),
		PostID: id,
	}); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like or dislike a post
// @Description Reacting again with the same kind removes the reaction
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{kind=string} false "like (default) or dislike"
// @Success 200 {object} service.ReactResult
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Kind models.ReactionKind `json:"kind"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	if req.Kind == "" {
		req.Kind = models.ReactionLike
	}

	result, err := s.engagementService.React(c.UserContext(), service.ReactInput{
		UserID: viewerID(c),
		Target: models.Target{Type: models.TargetPost, ID: id},
		Kind:   req.Kind,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// UnlikePost handles DELETE /api/posts/:id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.engagementService.Unreact(c.UserContext(), viewerID(c),
		models.Target{Type: models.TargetPost, ID: id}); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetHashtags handles GET /api/hashtags?q=...
func (s *Server) GetHashtags(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)

	tags, err := s.postService.ListHashtags(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(tags)
}

// GetHashtagPosts handles GET /api/hashtags/:title/posts
func (s *Server) GetHashtagPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)

	posts, err := s.postService.HashtagPosts(c.UserContext(), c.Params("title"), viewerID(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}
