package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/auth"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	to, subject, body string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

var otpPattern = regexp.MustCompile(`\d{6}`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail was sent")
	code := otpPattern.FindString(m.sent[len(m.sent)-1].body)
	require.NotEmpty(t, code)
	return code
}

func (m *captureMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.subject)
	}
	return out
}

type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memoryStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[key] = data
	return "/media/" + key, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

type testServer struct {
	*Server
	app    *fiber.App
	db     *gorm.DB
	rdb    *redis.Client
	mailer *captureMailer
	store  *memoryStore
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		JWTSecret:      "test-secret",
		JWTIssuer:      "espa-api",
		JWTAudience:    "espa-client",
		AllowedOrigins: "http://localhost:5173",
		FeatureFlags:   "trending_feed=on,otp_login=on,activity_ws=on",
		SessionTTL:     time.Hour,
		OTPExpiry:      5 * time.Minute,
	}
}

func newTestServer(t *testing.T, tweak ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := testConfig()
	for _, fn := range tweak {
		fn(cfg)
	}

	db := testutil.NewDB(t)
	_, rdb := testutil.NewRedis(t)
	mailer := &captureMailer{}
	store := &memoryStore{}

	srv, err := NewServerWithDeps(cfg, db, rdb, WithMailer(mailer), WithMediaStore(store))
	require.NoError(t, err)

	return &testServer{
		Server: srv,
		app:    srv.NewApp(),
		db:     db,
		rdb:    rdb,
		mailer: mailer,
		store:  store,
	}
}

// tokenFor signs an access token for user.
func (ts *testServer) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := ts.tokens.Issue(user.ID, user.Username, auth.TokenAccess)
	require.NoError(t, err)
	return token
}

type request struct {
	method  string
	path    string
	body    interface{}
	token   string
	cookies []*http.Cookie
	header  map[string]string
}

func (ts *testServer) do(t *testing.T, r request) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := r.body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(r.method, r.path, reader)
	if r.body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if r.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+r.token)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decodeJSON[models.ErrorResponse](t, resp).Code
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
