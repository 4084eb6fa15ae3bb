package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs-labo46/ec-payments/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type okResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func mustMakeJWT(t *testing.T, key string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func newServer() *echo.Echo {
	e := echo.New()
	g := e.Group("", middleware.AuthJWT(secret))
	g.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, okResponse{
			UserID: c.Get(middleware.CtxUserIDKey).(int64),
			Role:   c.Get(middleware.CtxUserRoleKey).(string),
		})
	})
	admin := e.Group("/admin", middleware.AuthJWT(secret), middleware.AdminRoleGuard())
	admin.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func call(e *echo.Echo, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func Test_AuthJWT_OK(t *testing.T) {
	e := newServer()
	tok := mustMakeJWT(t, secret, jwt.MapClaims{"sub": 42, "role": "USER", "exp": time.Now().Add(time.Minute).Unix()}, jwt.SigningMethodHS256)

	rec := call(e, "/me", "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var got okResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, okResponse{UserID: 42, Role: "USER"}, got)
}

func Test_AuthJWT_SubAsString(t *testing.T) {
	e := newServer()
	tok := mustMakeJWT(t, secret, jwt.MapClaims{"sub": "7", "role": "ADMIN"}, jwt.SigningMethodHS256)

	rec := call(e, "/me", "bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_AuthJWT_Rejects(t *testing.T) {
	valid := jwt.MapClaims{"sub": 1, "role": "USER"}
	cases := map[string]string{
		"no header":     "",
		"not bearer":    "Basic abc",
		"empty token":   "Bearer ",
		"wrong secret":  "Bearer " + mustMakeJWT(t, "other", valid, jwt.SigningMethodHS256),
		"wrong method":  "Bearer " + mustMakeJWT(t, secret, valid, jwt.SigningMethodHS512),
		"expired":       "Bearer " + mustMakeJWT(t, secret, jwt.MapClaims{"sub": 1, "role": "USER", "exp": time.Now().Add(-time.Minute).Unix()}, jwt.SigningMethodHS256),
		"missing role":  "Bearer " + mustMakeJWT(t, secret, jwt.MapClaims{"sub": 1}, jwt.SigningMethodHS256),
		"zero sub":      "Bearer " + mustMakeJWT(t, secret, jwt.MapClaims{"sub": 0, "role": "USER"}, jwt.SigningMethodHS256),
		"garbage token": "Bearer not.a.jwt",
	}
	e := newServer()
	for name, authz := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(e, "/me", authz)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func Test_AdminRoleGuard(t *testing.T) {
	e := newServer()

	user := mustMakeJWT(t, secret, jwt.MapClaims{"sub": 1, "role": "USER"}, jwt.SigningMethodHS256)
	rec := call(e, "/admin/ping", "Bearer "+user)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := mustMakeJWT(t, secret, jwt.MapClaims{"sub": 1, "role": "ADMIN"}, jwt.SigningMethodHS256)
	rec = call(e, "/admin/ping", "Bearer "+admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_AuthJWT_EmptySecretRejectsEverything(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, middleware.AuthJWT(""))

	tok := mustMakeJWT(t, "", jwt.MapClaims{"sub": 1, "role": "USER"}, jwt.SigningMethodHS256)
	rec := call(e, "/x", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_RequireRole(t *testing.T) {
	e := echo.New()
	h := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/either", h, middleware.AuthJWT(secret), middleware.RequireRole(middleware.RoleUser, middleware.RoleAdmin))
	e.GET("/norole", h, middleware.RequireRole(middleware.RoleAdmin))

	for _, role := range []string{"USER", "ADMIN"} {
		tok := mustMakeJWT(t, secret, jwt.MapClaims{"sub": 3, "role": role}, jwt.SigningMethodHS256)
		assert.Equal(t, http.StatusNoContent, call(e, "/either", "Bearer "+tok).Code, role)
	}

	other := mustMakeJWT(t, secret, jwt.MapClaims{"sub": 3, "role": "SUPPORT"}, jwt.SigningMethodHS256)
	rec := call(e, "/either", "Bearer "+other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

	//AuthJWTを通っていなければroleが無い
	rec = call(e, "/norole", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
