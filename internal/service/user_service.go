package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo repository.UserRepository
}

// UpdateProfileInput carries a partial profile update; nil fields are left alone.
type UpdateProfileInput struct {
	UserID    uint
	FirstName *string
	LastName  *string
	Bio       *string
	Phone     *string
	Location  *string
	Website   *string
	Avatar    *string
}

type ChangePasswordInput struct {
	UserID      uint
	OldPassword string
	NewPassword string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// HashPassword returns the bcrypt hash stored in users.password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetProfile(ctx, id)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin && user.CanAuthenticate(), nil
}

func (s *UserService) Search(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.userRepo.Search(ctx, query, limit, offset)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const (
		maxNameLen     = 150
		maxBioLen      = 500
		maxPhoneLen    = 32
		maxLocationLen = 255
	)

	fields := map[string]string{}
	set := func(dst *string, v *string, field string, limit int) {
		if v == nil {
			return
		}
		trimmed := strings.TrimSpace(*v)
		if utf8.RuneCountInString(trimmed) > limit {
			fields[field] = fmt.Sprintf("Ensure this field has no more than %d characters.", limit)
			return
		}
		*dst = trimmed
	}
	set(&user.FirstName, in.FirstName, "first_name", maxNameLen)
	set(&user.LastName, in.LastName, "last_name", maxNameLen)
	set(&user.Bio, in.Bio, "bio", maxBioLen)
	set(&user.Phone, in.Phone, "phone", maxPhoneLen)
	set(&user.Location, in.Location, "location", maxLocationLen)
	set(&user.Website, in.Website, "website", maxLocationLen)
	set(&user.Avatar, in.Avatar, "avatar", maxLocationLen)
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.userRepo.GetProfile(ctx, user.ID)
}

func (s *UserService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	if !CheckPassword(user, in.OldPassword) {
		return models.NewFieldValidationError(map[string]string{"old_password": "Wrong password."})
	}
	if err := validation.ValidatePassword(in.NewPassword, user.Username, user.Email, user.FirstName, user.LastName); err != nil {
		return models.NewFieldValidationError(map[string]string{"new_password": err.Error()})
	}

	hashed, err := HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	return s.userRepo.Update(ctx, user)
}

// SetDeleted soft-deletes or restores an account. A deleted account keeps its
// rows but can no longer authenticate.
func (s *UserService) SetDeleted(ctx context.Context, targetID uint, deleted bool) (*models.User, error) {
	if err := s.userRepo.SetDeleted(ctx, targetID, deleted); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	if err := s.userRepo.SetAdmin(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}
