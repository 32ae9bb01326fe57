package service

import (
	"context"
	"strings"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/auth"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/mail"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/validation"
)

const (
	SubjectEmailVerification = "Email Verification OTP"
	SubjectLoginOTP          = "Login OTP"
)

// RegisterInput is the self-service signup payload.
type RegisterInput struct {
	Username        string `json:"username" validate:"required,username"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
}

// LoginResult is returned by password and OTP logins. SessionID names the
// server session created alongside the tokens.
type LoginResult struct {
	auth.TokenPair
	User      *models.User `json:"user"`
	SessionID string       `json:"-"`
}

// AuthService implements credential login, registration, OTP login, token
// refresh and logout.
type AuthService struct {
	users    repository.UserRepository
	otps     *OTPService
	tokens   *auth.TokenManager
	sessions auth.SessionStore
	mailer   mail.Mailer
}

func NewAuthService(
	users repository.UserRepository,
	otps *OTPService,
	tokens *auth.TokenManager,
	sessions auth.SessionStore,
	mailer mail.Mailer,
) *AuthService {
	return &AuthService{
		users:    users,
		otps:     otps,
		tokens:   tokens,
		sessions: sessions,
		mailer:   mailer,
	}
}

// Login resolves identifier as an exact username, then an email, then a
// case-insensitive username. Unknown users and wrong passwords produce the
// same error; a disabled account is reported before the password is checked.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, models.NewValidationError("Username or email and password are required")
	}

	user, err := s.findLoginUser(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		observability.LoginsTotal.WithLabelValues("password", "invalid").Inc()
		return nil, models.NewInvalidCredentialsError()
	}
	if !user.CanAuthenticate() {
		observability.LoginsTotal.WithLabelValues("password", "disabled").Inc()
		return nil, models.NewAccountDisabledError()
	}
	if !CheckPassword(user, password) {
		observability.LoginsTotal.WithLabelValues("password", "invalid").Inc()
		return nil, models.NewInvalidCredentialsError()
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	observability.LoginsTotal.WithLabelValues("password", "success").Inc()
	return result, nil
}

func (s *AuthService) findLoginUser(ctx context.Context, identifier string) (*models.User, error) {
	lookups := []func(context.Context, string) (*models.User, error){
		s.users.GetByUsername,
		s.users.GetByEmail,
		s.users.GetByUsernameFold,
	}
	for _, lookup := range lookups {
		user, err := lookup(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, nil
}

// Register creates the account, issues a verification code and mails it.
// A mail failure is logged; the account is still created.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = validation.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password, in.Username, in.Email, in.FirstName, in.LastName); err != nil {
		return nil, models.NewFieldValidationError(map[string]string{"password": err.Error()})
	}

	if existing, err := s.users.GetByUsernameFold(ctx, in.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("A user with that username already exists.")
	}
	if existing, err := s.users.GetByEmail(ctx, in.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("A user with that email already exists.")
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  hashed,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IsActive:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	otp, err := s.otps.Issue(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.Send(ctx, user.Email, SubjectEmailVerification, mail.OTPBody(otp.Code, s.otps.Expiry())); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "verification mail failed",
			"user_id", user.ID, "error", err.Error())
	}

	return user, nil
}

// RequestOTP mails a login code to a registered address.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewFieldValidationError(map[string]string{"email": "Enter a valid email address."})
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewFieldValidationError(map[string]string{"email": "User with this email does not exist."})
	}

	otp, err := s.otps.Issue(ctx, user.Email)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, user.Email, SubjectLoginOTP, mail.OTPBody(otp.Code, s.otps.Expiry())); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// VerifyOTP consumes the code and logs the matching user in.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*LoginResult, error) {
	email = validation.NormalizeEmail(email)
	ok, err := s.otps.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.LoginsTotal.WithLabelValues("otp", "invalid").Inc()
		return nil, models.NewInvalidOTPError()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: "No user is registered with this email"}
	}
	if !user.CanAuthenticate() {
		observability.LoginsTotal.WithLabelValues("otp", "disabled").Inc()
		return nil, models.NewAccountDisabledError()
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	observability.LoginsTotal.WithLabelValues("otp", "success").Inc()
	return result, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	if strings.TrimSpace(refresh) == "" {
		return "", models.NewValidationError("Refresh token is required")
	}
	claims, err := s.tokens.Parse(refresh, auth.TokenRefresh)
	if err != nil {
		return "", models.NewUnauthorizedError("Token is invalid or expired")
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", models.NewUnauthorizedError("Token is invalid or expired")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return "", models.NewUnauthorizedError("User not found")
		}
		return "", err
	}
	if !user.CanAuthenticate() {
		return "", models.NewAccountDisabledError()
	}

	access, err := s.tokens.Issue(user.ID, user.Username, auth.TokenAccess)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return access, nil
}

// Logout ends the server session. Issued tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" || s.sessions == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	result := &LoginResult{TokenPair: pair, User: user}
	if s.sessions != nil {
		sid, err := s.sessions.Create(ctx, user.ID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		result.SessionID = sid
	}
	return result, nil
}
