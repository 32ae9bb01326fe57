package models

import "time"

// OTPLength is the number of decimal digits in a one-time code.
const OTPLength = 6

// OTP is a single-use email verification or login code.
// Email is deliberately not a foreign key: codes can be issued before the
// account exists.
type OTP struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:254;not null;index:idx_otps_email_code" json:"email"`
	Code      string    `gorm:"size:6;not null;index:idx_otps_email_code" json:"-"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
}

// TableName specifies the table name for GORM
func (OTP) TableName() string {
	return "otps"
}

// IsValid reports whether the code is still usable at now.
func (o *OTP) IsValid(now time.Time) bool {
	return !o.Used && now.Before(o.ExpiresAt)
}
