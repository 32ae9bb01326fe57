package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRequired(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "nico")

	resp := ts.do(t, request{method: http.MethodGet, path: "/api/admin/feature-flags"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, request{method: http.MethodGet, path: "/api/admin/feature-flags", token: ts.tokenFor(t, user)})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, errorCode(t, resp))
}

func TestAdmin_FeatureFlags(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "olga")
	require.NoError(t, ts.db.Model(admin).Update("is_admin", true).Error)

	resp := ts.do(t, request{method: http.MethodGet, path: "/api/admin/feature-flags", token: ts.tokenFor(t, admin)})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeJSON[struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}](t, resp)
	assert.Equal(t, "on", body.Raw["otp_login"])
	assert.True(t, body.Evaluated["activity_ws"])
}

func TestAdmin_SoftDeleteAndRestore(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "pete")
	require.NoError(t, ts.db.Model(admin).Update("is_admin", true).Error)
	target := testutil.CreateUser(t, ts.db, "ruth")
	adminToken := ts.tokenFor(t, admin)

	login := func() *http.Response {
		return ts.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: fiber.Map{
			"username_or_email": "ruth",
			"password":          testutil.DefaultPassword,
		}})
	}

	resp := ts.do(t, request{method: http.MethodPost, path: fmt.Sprintf("/api/admin/users/%d/soft-delete", target.ID), token: adminToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = login()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeAccountDisabled, errorCode(t, resp))

	resp = ts.do(t, request{method: http.MethodGet, path: fmt.Sprintf("/api/users/%d", target.ID)})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "deleted profiles are hidden")

	resp = ts.do(t, request{method: http.MethodPost, path: fmt.Sprintf("/api/admin/users/%d/restore", target.ID), token: adminToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = login()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = ts.do(t, request{method: http.MethodPost, path: "/api/admin/users/9999/soft-delete", token: adminToken})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
