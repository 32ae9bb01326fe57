package server

import (
	"net/http"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/middleware"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify_BearerIsPromotedToSession(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "frank")

	resp := ts.do(t, request{method: http.MethodGet, path: "/api/profile", token: ts.tokenFor(t, user)})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	session := findCookie(resp, middleware.SessionCookieName)
	require.NotNil(t, session, "a bearer identity opens a session")
	assert.True(t, session.HttpOnly)

	resp = ts.do(t, request{method: http.MethodGet, path: "/api/profile", cookies: []*http.Cookie{session}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Nil(t, findCookie(resp, middleware.SessionCookieName), "session requests are not promoted again")
	assert.Equal(t, "frank", decodeJSON[map[string]interface{}](t, resp)["username"])
}

func TestIdentify_TokenCookie(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "gina")

	resp := ts.do(t, request{method: http.MethodGet, path: "/api/profile", cookies: []*http.Cookie{
		{Name: middleware.TokenCookieName, Value: ts.tokenFor(t, user)},
	}})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestIdentify_InvalidBearerFallsBackToSession(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "hank")

	sid, err := ts.sessions.Create(t.Context(), user.ID)
	require.NoError(t, err)

	resp := ts.do(t, request{
		method:  http.MethodGet,
		path:    "/api/profile",
		token:   "not-a-jwt",
		cookies: []*http.Cookie{{Name: middleware.SessionCookieName, Value: sid}},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestIdentify_InvalidBearerIsAnonymous(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, request{method: http.MethodGet, path: "/api/profile", token: "not-a-jwt"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, request{method: http.MethodGet, path: "/api/posts", token: "not-a-jwt"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "public routes ignore bad credentials")
}

func TestIdentify_RefreshTokenIsNotAccess(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "iris")

	pair, err := ts.tokens.IssuePair(user.ID, user.Username)
	require.NoError(t, err)

	resp := ts.do(t, request{method: http.MethodGet, path: "/api/profile", token: pair.Refresh})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestIdentify_DisabledUserLosesSession(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "jack")

	sid, err := ts.sessions.Create(t.Context(), user.ID)
	require.NoError(t, err)
	require.NoError(t, ts.db.Model(user).Update("is_deleted", true).Error)

	resp := ts.do(t, request{
		method:  http.MethodGet,
		path:    "/api/profile",
		cookies: []*http.Cookie{{Name: middleware.SessionCookieName, Value: sid}},
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	_, ok, err := ts.sessions.Lookup(t.Context(), sid)
	require.NoError(t, err)
	assert.False(t, ok, "the stale session is dropped")

	resp = ts.do(t, request{method: http.MethodGet, path: "/api/profile", token: ts.tokenFor(t, user)})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
