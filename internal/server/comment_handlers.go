package server

import (
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
// @Summary List a post's comments
// @Description Top-level comments with their replies embedded one level deep
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPaginationLimit)

	comments, err := s.commentService.ListComments(c.UserContext(), postID, viewerID(c), page.Limit, page.Offset)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:  viewerID(c),
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// CreateReply handles POST /api/comments/:id/reply
// @Summary Reply to a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Parent comment ID"
// @Param request body object{content=string,post_id=int} true "Reply"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Router /comments/{id}/reply [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	parentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
		PostID  *uint  `json:"post_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	reply, err := s.commentService.CreateReply(c.UserContext(), service.CreateReplyInput{
		UserID:   viewerID(c),
		ParentID: parentID,
		PostID:   req.PostID,
		Content:  req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// UpdateComment handles PUT /api/comments/:id
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    viewerID(c),
		CommentID: id,
		Content:   req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    viewerID(c),
		CommentID: id,
	}); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// React handles POST /api/reactions
// @Summary React to a post or comment
// @Tags reactions
// @Accept json
// @Produce json
// @Param request body object{target_type=string,target_id=int,kind=string} true "Reaction"
// @Success 200 {object} service.ReactResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /reactions [post]
func (s *Server) React(c *fiber.Ctx) error {
	var req struct {
		TargetType string              `json:"target_type"`
		TargetID   uint                `json:"target_id"`
		Kind       models.ReactionKind `json:"kind"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	targetType, err := models.ParseTargetType(req.TargetType)
	if err != nil {
		return s.respondError(c, err)
	}

	result, err := s.engagementService.React(c.UserContext(), service.ReactInput{
		UserID: viewerID(c),
		Target: models.Target{Type: targetType, ID: req.TargetID},
		Kind:   req.Kind,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// Unreact handles DELETE /api/reactions/:targetType/:targetId
func (s *Server) Unreact(c *fiber.Ctx) error {
	targetType, err := models.ParseTargetType(c.Params("targetType"))
	if err != nil {
		return s.respondError(c, err)
	}
	targetID, err := s.parseID(c, "targetId")
	if err != nil {
		return nil
	}

	if err := s.engagementService.Unreact(c.UserContext(), viewerID(c),
		models.Target{Type: targetType, ID: targetID}); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
