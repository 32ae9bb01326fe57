package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T, monitorPings bool) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return gormDB, mock
}

// --- humanizeParam (pure function, no HTTP) ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"commentId", "comment ID"},
		{"targetId", "target ID"},
		{"parentCommentId", "parent comment ID"},
		{"title", "title"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePagination ---

func paginationApp() *fiber.App {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})
	return app
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limit  float64
		offset float64
	}{
		{"defaults", "", 25, 0},
		{"custom", "?limit=10&offset=30", 10, 30},
		{"capped", "?limit=1000", maxPaginationLimit, 0},
		{"non-positive limit", "?limit=0&offset=-5", 25, 0},
		{"garbage", "?limit=abc", 25, 0},
	}

	app := paginationApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.limit, body["limit"])
			assert.Equal(t, tt.offset, body["offset"])
		})
	}
}

// --- parseID ---

func TestParseID(t *testing.T) {
	tests := []struct {
		param  string
		value  string
		status int
		msg    string
	}{
		{"id", "42", http.StatusOK, ""},
		{"id", "abc", http.StatusBadRequest, "Invalid ID"},
		{"id", "0", http.StatusBadRequest, "Invalid ID"},
		{"id", "-3", http.StatusBadRequest, "Invalid ID"},
		{"userId", "abc", http.StatusBadRequest, "Invalid user ID"},
		{"targetId", "abc", http.StatusBadRequest, "Invalid target ID"},
	}
	for _, tt := range tests {
		t.Run(tt.param+"="+tt.value, func(t *testing.T) {
			app := fiber.New()
			s := &Server{}
			app.Get("/items/:"+tt.param, func(c *fiber.Ctx) error {
				id, err := s.parseID(c, tt.param)
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			req := httptest.NewRequest(http.MethodGet, "/items/"+tt.value, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.msg != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.msg, body.Error)
				assert.Equal(t, models.CodeValidation, body.Code)
			}
		})
	}
}

// --- mapServiceError ---

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", models.NewValidationError("bad"), fiber.StatusBadRequest},
		{"mismatched parent", models.NewMismatchedParentError(1, 2), fiber.StatusBadRequest},
		{"self follow", models.NewSelfFollowError(), fiber.StatusBadRequest},
		{"invalid otp", models.NewInvalidOTPError(), fiber.StatusBadRequest},
		{"invalid credentials", models.NewInvalidCredentialsError(), fiber.StatusUnauthorized},
		{"account disabled", models.NewAccountDisabledError(), fiber.StatusUnauthorized},
		{"unauthorized", models.NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{"forbidden", models.NewForbiddenError("no"), fiber.StatusForbidden},
		{"not found", models.NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{"user not found", models.NewUserNotFoundError(1), fiber.StatusNotFound},
		{"conflict", models.NewConflictError("taken"), fiber.StatusConflict},
		{"internal", models.NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, mapServiceError(tt.err))
		})
	}
}

// --- AdminRequired middleware ---

func adminApp(t *testing.T, userID uint) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	gormDB, mock := setupMockDB(t, false)
	s := &Server{userService: service.NewUserService(repository.NewUserRepository(gormDB))}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	app.Get("/admin", s.AdminRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app, mock
}

func userRows(isAdmin, isDeleted bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "is_active", "is_admin", "is_deleted"}).
		AddRow(1, "root", "root@example.com", true, isAdmin, isDeleted)
}

func TestAdminRequired_AllowsAdmin(t *testing.T) {
	app, mock := adminApp(t, 1)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(userRows(true, false))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRequired_RejectsNonAdmin(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
	}{
		{"regular user", userRows(false, false)},
		{"deleted admin", userRows(true, true)},
		{"unknown user", sqlmock.NewRows([]string{"id"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, mock := adminApp(t, 1)
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).WillReturnRows(tt.rows)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "Admin access required", body.Error)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdminRequired_DatabaseFailure(t *testing.T) {
	app, mock := adminApp(t, 1)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnError(errors.New("connection reset"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- health checks ---

func TestReadinessCheck_Healthy(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, request{method: http.MethodGet, path: "/health/ready"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]interface{}](t, resp)
	assert.Equal(t, "healthy", body["status"])

	resp = ts.do(t, request{method: http.MethodGet, path: "/health/live"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestReadinessCheck_DatabaseDown(t *testing.T) {
	gormDB, mock := setupMockDB(t, true)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	_, rdb := testutil.NewRedis(t)

	s := &Server{db: gormDB, redis: rdb}
	app := fiber.New()
	app.Get("/health/ready", s.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["database"])
	assert.Equal(t, "healthy", body.Checks["redis"])
}
