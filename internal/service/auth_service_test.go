package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/auth"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	to, subject, body string
}

// fakeMailer records messages and fails when err is set.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

var otpInBody = regexp.MustCompile(`[0-9]{6}`)

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	code := otpInBody.FindString(m.sent[len(m.sent)-1].body)
	require.NotEmpty(t, code)
	return code
}

type authFixture struct {
	svc      *AuthService
	db       *gorm.DB
	mailer   *fakeMailer
	sessions *auth.MemorySessionStore
	tokens   *auth.TokenManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &authFixture{
		db:       db,
		mailer:   &fakeMailer{},
		sessions: auth.NewMemorySessionStore(time.Hour),
		tokens:   auth.NewTokenManager(auth.TokenConfig{Secret: "test-secret", Issuer: "espa"}),
	}
	f.svc = NewAuthService(
		repository.NewUserRepository(db),
		NewOTPService(repository.NewOTPRepository(db), 0),
		f.tokens,
		f.sessions,
		f.mailer,
	)
	return f
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:        "newbie",
		Email:           "Newbie@Example.COM",
		Password:        "Sunny-Orchard-77",
		PasswordConfirm: "Sunny-Orchard-77",
		FirstName:       "New",
		LastName:        "Comer",
	}
}

func TestAuthService_RegisterThenOTPLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "Newbie@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "Sunny-Orchard-77", user.Password)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, SubjectEmailVerification, f.mailer.sent[0].subject)
	assert.Contains(t, f.mailer.sent[0].body, "valid for 10 minutes")

	code := f.mailer.lastCode(t)
	result, err := f.svc.VerifyOTP(ctx, "Newbie@EXAMPLE.com", code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.Access)
	assert.NotEmpty(t, result.Refresh)

	uid, ok, err := f.sessions.Lookup(ctx, result.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, user.ID, uid)

	_, err = f.svc.VerifyOTP(ctx, "Newbie@example.com", code)
	assertCode(t, err, models.CodeInvalidOTP)
}

func TestAuthService_RegisterRejects(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "taken")

	tests := []struct {
		name   string
		mutate func(in *RegisterInput)
		code   string
		field  string
	}{
		{"missing first name", func(in *RegisterInput) { in.FirstName = " " }, models.CodeValidation, "first_name"},
		{"bad username", func(in *RegisterInput) { in.Username = "no spaces" }, models.CodeValidation, "username"},
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }, models.CodeValidation, "email"},
		{"confirm mismatch", func(in *RegisterInput) { in.PasswordConfirm = "other" }, models.CodeValidation, "password_confirm"},
		{"common password", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "password123", "password123" }, models.CodeValidation, "password"},
		{"password like username", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "newbie-rocks-1", "newbie-rocks-1" }, models.CodeValidation, "password"},
		{"username taken in other case", func(in *RegisterInput) { in.Username = "TAKEN" }, models.CodeConflict, ""},
		{"email taken", func(in *RegisterInput) { in.Email = "taken@example.com" }, models.CodeConflict, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)
			_, err := f.svc.Register(ctx, in)
			assertCode(t, err, tt.code)
			if tt.field != "" {
				var appErr *models.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Contains(t, appErr.Fields, tt.field)
			}
		})
	}
}

func TestAuthService_RegisterSurvivesMailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer.err = errors.New("smtp down")

	user, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "Alice")
	disabled := testutil.CreateUser(t, f.db, "disabled")
	require.NoError(t, f.db.Model(disabled).Update("is_active", false).Error)

	tests := []struct {
		name       string
		identifier string
		password   string
		code       string
	}{
		{"username", "Alice", testutil.DefaultPassword, ""},
		{"email", "Alice@example.com", testutil.DefaultPassword, ""},
		{"folded username", "aLICE", testutil.DefaultPassword, ""},
		{"wrong password", "Alice", "wrong", models.CodeInvalidCredentials},
		{"unknown user", "ghost", testutil.DefaultPassword, models.CodeInvalidCredentials},
		{"disabled before password check", "disabled", "wrong", models.CodeAccountDisabled},
		{"missing password", "Alice", "", models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.svc.Login(ctx, tt.identifier, tt.password)
			if tt.code != "" {
				assertCode(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, alice.ID, result.User.ID)
			assert.NotEmpty(t, result.SessionID)
		})
	}
}

func TestAuthService_RequestOTP(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "bob")

	err := f.svc.RequestOTP(ctx, "nobody@example.com")
	assertValidationError(t, err)

	err = f.svc.RequestOTP(ctx, "not-an-email")
	assertValidationError(t, err)

	require.NoError(t, f.svc.RequestOTP(ctx, "bob@example.com"))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, SubjectLoginOTP, f.mailer.sent[0].subject)
	assert.Equal(t, "bob@example.com", f.mailer.sent[0].to)

	f.mailer.err = errors.New("smtp down")
	err = f.svc.RequestOTP(ctx, "bob@example.com")
	assertCode(t, err, models.CodeInternal)
}

func TestAuthService_VerifyOTP_UnregisteredEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	otp, err := NewOTPService(repository.NewOTPRepository(f.db), 0).Issue(ctx, "ghost@example.com")
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(ctx, "ghost@example.com", otp.Code)
	assertCode(t, err, models.CodeNotFound)
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "carol")

	result, err := f.svc.Login(ctx, "carol", testutil.DefaultPassword)
	require.NoError(t, err)

	access, err := f.svc.Refresh(ctx, result.Refresh)
	require.NoError(t, err)
	claims, err := f.tokens.Parse(access, auth.TokenAccess)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, uid)

	_, err = f.svc.Refresh(ctx, result.Access)
	assertUnauthorizedError(t, err)

	_, err = f.svc.Refresh(ctx, "")
	assertValidationError(t, err)

	require.NoError(t, f.svc.Logout(ctx, result.SessionID))
	_, ok, err := f.sessions.Lookup(ctx, result.SessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.Logout(ctx, ""))
}
