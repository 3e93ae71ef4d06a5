package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinrooster/tedecom-v1/internal/models"
	"github.com/tinrooster/tedecom-v1/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(a *Authenticator) *gin.Engine {
	r := gin.New()
	protected := r.Group("/", a.Middleware())
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c)})
	})
	protected.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginAndMiddleware(t *testing.T) {
	db := testutil.NewDB(t)
	a := New(db, "test-secret", time.Hour)
	user := testutil.CreateUser(t, db, "tech", models.RoleTechnician)

	token, got, err := a.Login(context.Background(), "tech", "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	router := newRouter(a)
	assert.Equal(t, http.StatusOK, get(router, "/me", token).Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/admin", token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/me", "garbage").Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := testutil.NewDB(t)
	a := New(db, "test-secret", time.Hour)
	user := testutil.CreateUser(t, db, "viewer", models.RoleViewer)

	_, _, err := a.Login(context.Background(), "viewer", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login(context.Background(), "nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, db.Model(user).Update("is_active", false).Error)
	_, _, err = a.Login(context.Background(), "viewer", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "admin", models.RoleAdmin)

	token, err := New(db, "other-secret", time.Hour).GenerateToken(user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(newRouter(New(db, "test-secret", time.Hour)), "/me", token).Code)
}

func TestInactiveUserForbidden(t *testing.T) {
	db := testutil.NewDB(t)
	a := New(db, "test-secret", time.Hour)
	user := testutil.CreateUser(t, db, "admin", models.RoleAdmin)

	token, err := a.GenerateToken(user)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, get(newRouter(a), "/admin", token).Code)

	require.NoError(t, db.Model(user).Update("is_active", false).Error)
	assert.Equal(t, http.StatusForbidden, get(newRouter(a), "/me", token).Code)
}

func TestRequirePermission(t *testing.T) {
	db := testutil.NewDB(t)
	a := New(db, "test-secret", time.Hour)

	r := gin.New()
	protected := r.Group("/", a.Middleware())
	protected.GET("/download", RequirePermission(models.PermissionDownloadReports), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	protected.GET("/create", RequirePermission(models.PermissionManageReports), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	protected.GET("/templates", RequirePermission(models.PermissionManageTemplates), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tokens := map[models.Role]string{}
	for _, role := range []models.Role{models.RoleAdmin, models.RoleTechnician, models.RoleViewer} {
		token, err := a.GenerateToken(testutil.CreateUser(t, db, string(role), role))
		require.NoError(t, err)
		tokens[role] = token
	}

	tests := []struct {
		role models.Role
		path string
		want int
	}{
		{models.RoleViewer, "/download", http.StatusNoContent},
		{models.RoleViewer, "/create", http.StatusForbidden},
		{models.RoleTechnician, "/create", http.StatusNoContent},
		{models.RoleTechnician, "/templates", http.StatusForbidden},
		{models.RoleAdmin, "/templates", http.StatusNoContent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, get(r, tt.path, tokens[tt.role]).Code, "%s %s", tt.role, tt.path)
	}
}
