// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// commonPasswords is a short deny-list of passwords seen in every breach corpus.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password12": {},
	"password123": {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"sunshine":   {},
	"princess":   {},
	"football":   {},
	"baseball":   {},
	"welcome1":   {},
	"admin123":   {},
	"letmein1":   {},
	"abc12345":   {},
	"11111111":   {},
	"00000000":   {},
	"passw0rd":   {},
	"trustno1":   {},
	"superman":   {},
	"starwars":   {},
	"whatever":   {},
}

// ValidatePassword checks if a password meets security requirements.
// userAttrs are values such as the username or email that the password must not contain.
func ValidatePassword(password string, userAttrs ...string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	if n > maxPasswordLength {
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLength)
	}

	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fmt.Errorf("password cannot be entirely numeric")
	}

	lower := strings.ToLower(password)
	if _, common := commonPasswords[lower]; common {
		return fmt.Errorf("password is too common")
	}

	for _, attr := range userAttrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if i := strings.IndexByte(attr, '@'); i > 0 {
			attr = attr[:i]
		}
		if len(attr) >= 3 && strings.Contains(lower, attr) {
			return fmt.Errorf("password is too similar to your account details")
		}
	}

	return nil
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}

	if len(username) > 150 {
		return fmt.Errorf("username must not exceed 150 characters")
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, and @/./+/-/_ characters")
	}

	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}

	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}

	return nil
}

// NormalizeEmail lowercases the domain part; the local part is kept as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email
	}
	return email[:at] + strings.ToLower(email[at:])
}
