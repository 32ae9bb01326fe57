package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
)

const DefaultOTPExpiry = 10 * time.Minute

// PurgeOptions selects codes for retention cleanup.
type PurgeOptions struct {
	OlderThan   time.Duration
	UsedOnly    bool
	ExpiredOnly bool
	DryRun      bool
}

// OTPService issues and verifies single-use email codes. Issuing a new code
// never invalidates earlier ones; each code expires on its own.
type OTPService struct {
	repo   repository.OTPRepository
	expiry time.Duration
	now    func() time.Time
}

func NewOTPService(repo repository.OTPRepository, expiry time.Duration) *OTPService {
	if expiry <= 0 {
		expiry = DefaultOTPExpiry
	}
	return &OTPService{repo: repo, expiry: expiry, now: time.Now}
}

// Expiry is the lifetime of newly issued codes.
func (s *OTPService) Expiry() time.Duration {
	return s.expiry
}

func (s *OTPService) Issue(ctx context.Context, email string) (*models.OTP, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, models.NewValidationError("Email is required")
	}
	code, err := generateOTPCode(models.OTPLength)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	now := s.now()
	otp := &models.OTP{Email: email, Code: code, CreatedAt: now, ExpiresAt: now.Add(s.expiry)}
	if err := s.repo.Create(ctx, otp); err != nil {
		return nil, err
	}
	return otp, nil
}

// Verify consumes the code if it is valid. It returns true at most once per code.
func (s *OTPService) Verify(ctx context.Context, email, code string) (bool, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || len(code) != models.OTPLength {
		observability.OTPVerificationsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}

	ok, err := s.repo.Consume(ctx, email, code, s.now())
	if err != nil {
		observability.OTPVerificationsTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if ok {
		observability.OTPVerificationsTotal.WithLabelValues("accepted").Inc()
	} else {
		observability.OTPVerificationsTotal.WithLabelValues("rejected").Inc()
	}
	return ok, nil
}

// Purge deletes, or with DryRun only counts, codes older than OlderThan.
func (s *OTPService) Purge(ctx context.Context, opts PurgeOptions) (int64, error) {
	if opts.OlderThan < 0 {
		return 0, models.NewValidationError("Retention must not be negative")
	}
	now := s.now()
	filter := repository.OTPPurgeFilter{
		CreatedBefore: now.Add(-opts.OlderThan),
		UsedOnly:      opts.UsedOnly,
		ExpiredOnly:   opts.ExpiredOnly,
		Now:           now,
	}
	if opts.DryRun {
		return s.repo.Count(ctx, filter)
	}

	deleted, err := s.repo.Purge(ctx, filter)
	if err != nil {
		return 0, err
	}
	observability.GlobalLogger.InfoContext(ctx, "purged otp codes",
		"deleted", deleted,
		"created_before", filter.CreatedBefore,
		"used_only", opts.UsedOnly,
		"expired_only", opts.ExpiredOnly,
	)
	return deleted, nil
}

// generateOTPCode returns n uniformly random decimal digits.
func generateOTPCode(n int) (string, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
