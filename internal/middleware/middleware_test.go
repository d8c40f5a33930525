package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/gallery-sim/backend/internal/auth"
	"github.com/gallery-sim/backend/internal/authz"
	"github.com/gallery-sim/backend/pkg/apperr"
)

type staticPrincipals map[uuid.UUID]authz.Principal

func (s staticPrincipals) Get(_ context.Context, id uuid.UUID) (authz.Principal, error) {
	p, ok := s[id]
	if !ok {
		return authz.Principal{}, apperr.NotFound("user")
	}
	return p, nil
}

func newRouter(jwtSvc *auth.JWTService, principals staticPrincipals, perms ...authz.SystemPermission) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(jwtSvc), Claims(principals, zap.NewNop()))
	r.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, Principal(c).Email) })
	r.GET("/admin", RequireSystemPermission(perms...), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndClaims(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	user := uuid.New()
	principals := staticPrincipals{user: {UserID: user, Email: "a@example.com"}}
	r := newRouter(jwtSvc, principals, authz.ManageUsers)

	token, err := jwtSvc.Generate(user, "a@example.com")
	assert.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/open", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/open", "garbage").Code)

	w := do(r, "/open", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@example.com", w.Body.String())

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", token).Code)

	principals[user] = authz.Principal{UserID: user, SystemPermissions: []authz.SystemPermission{authz.ManageUsers}}
	assert.Equal(t, http.StatusOK, do(r, "/admin", token).Code)
}

func TestClaimsRejectsDeletedUser(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	r := newRouter(jwtSvc, staticPrincipals{})
	token, _ := jwtSvc.Generate(uuid.New(), "gone@example.com")
	assert.Equal(t, http.StatusUnauthorized, do(r, "/open", token).Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:4200"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:4200", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
