package server

import (
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/middleware"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with a username or email and return a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username_or_email=string,password=string} true "Login credentials"
// @Success 200 {object} service.LoginResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		UsernameOrEmail string `json:"username_or_email"`
		Password        string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.authService.Login(c.UserContext(), req.UsernameOrEmail, req.Password)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.completeLogin(c, result)
}

// Register handles POST /api/auth/register
// @Summary User registration
// @Description Create an account and mail an email verification code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// RequestOTP handles POST /api/auth/otp/request
// @Summary Request a login code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Registered email"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/otp/request [post]
func (s *Server) RequestOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.RequestOTP(c.UserContext(), req.Email); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "OTP sent to your email."})
}

// VerifyOTP handles POST /api/auth/otp/verify
// @Summary Log in with a one-time code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,code=string} true "Email and code"
// @Success 200 {object} service.LoginResult
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/otp/verify [post]
func (s *Server) VerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.authService.VerifyOTP(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.completeLogin(c, result)
}

// RefreshToken handles POST /api/auth/token/refresh
// @Summary Exchange a refresh token for an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh=string} true "Refresh token"
// @Success 200 {object} object{access=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/token/refresh [post]
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	access, err := s.authService.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"access": access})
}

// Logout handles POST /api/auth/logout
// @Summary End the server session
// @Tags auth
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), c.Cookies(middleware.SessionCookieName)); err != nil {
		return s.respondError(c, err)
	}
	middleware.ClearSessionCookie(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) completeLogin(c *fiber.Ctx, result *service.LoginResult) error {
	if result.SessionID != "" {
		middleware.SetSessionCookie(c, result.SessionID, s.sessionCookie())
	}
	return c.JSON(result)
}
