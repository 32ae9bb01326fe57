package repository

import (
	"context"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"gorm.io/gorm"
)

// OTPPurgeFilter selects OTP rows for retention cleanup.
type OTPPurgeFilter struct {
	// CreatedBefore bounds the sweep by age.
	CreatedBefore time.Time
	// UsedOnly and ExpiredOnly narrow the sweep. When both are set a row
	// matching either qualifies.
	UsedOnly    bool
	ExpiredOnly bool
	// Now is the reference time for ExpiredOnly.
	Now time.Time
}

// OTPRepository stores one-time codes.
type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) error
	// Consume marks the newest matching valid code used. It reports whether a
	// code was consumed; only one caller can win for a given row.
	Consume(ctx context.Context, email, code string, now time.Time) (bool, error)
	Count(ctx context.Context, filter OTPPurgeFilter) (int64, error)
	Purge(ctx context.Context, filter OTPPurgeFilter) (int64, error)
}

type otpRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewOTPRepository returns a GORM-backed OTPRepository.
func NewOTPRepository(db *gorm.DB) OTPRepository {
	return &otpRepository{db: db, logger: observability.NewRepoLogger("otps")}
}

func (r *otpRepository) Create(ctx context.Context, otp *models.OTP) error {
	defer observability.TrackQuery("insert", "otps")()

	if err := r.db.WithContext(ctx).Create(otp).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	return nil
}

const consumeOTPSQL = `UPDATE otps SET used = ? WHERE id = (
	SELECT id FROM otps
	WHERE email = ? AND code = ? AND used = ? AND expires_at > ?
	ORDER BY created_at DESC, id DESC
	LIMIT 1
) AND used = ?`

func (r *otpRepository) Consume(ctx context.Context, email, code string, now time.Time) (bool, error) {
	defer observability.TrackQuery("update", "otps")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "consume", "otps")
	defer span.End()

	res := r.db.WithContext(ctx).Exec(consumeOTPSQL, true, email, code, false, now, false)
	if res.Error != nil {
		observability.RecordErrorInContext(ctx, res.Error)
		r.logger.LogError(ctx, res.Error, "consume")
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *otpRepository) scope(ctx context.Context, f OTPPurgeFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.OTP{}).Where("created_at < ?", f.CreatedBefore)
	// The filters narrow together: --used --expired means used and expired.
	if f.UsedOnly {
		q = q.Where("used = ?", true)
	}
	if f.ExpiredOnly {
		q = q.Where("expires_at < ?", f.Now)
	}
	return q
}

func (r *otpRepository) Count(ctx context.Context, f OTPPurgeFilter) (int64, error) {
	var n int64
	if err := r.scope(ctx, f).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *otpRepository) Purge(ctx context.Context, f OTPPurgeFilter) (int64, error) {
	defer observability.TrackQuery("delete", "otps")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "purge", "otps")
	defer span.End()

	res := r.scope(ctx, f).Delete(&models.OTP{})
	if res.Error != nil {
		observability.RecordErrorInContext(ctx, res.Error)
		r.logger.LogError(ctx, res.Error, "purge")
		return 0, models.NewInternalError(res.Error)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"deleted": res.RowsAffected})
	return res.RowsAffected, nil
}
