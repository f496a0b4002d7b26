package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"customerportal/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderErrors(c *gin.Context) {
	c.Next()
	if len(c.Errors) > 0 {
		status, body := common.BuildErrorResponse(c.Errors.Last().Err, false)
		c.JSON(status, body)
	}
}

func newAuthTestRouter(svc *JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(renderErrors, Authenticate(svc))
	handlers := append(extra, func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c.Request.Context())
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/probe", handlers...)
	return r
}

func TestAuthenticateAnonymousPassesThrough(t *testing.T) {
	r := newAuthTestRouter(newTestJWTService(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestAuthenticateValidToken(t *testing.T) {
	svc := newTestJWTService(t)
	issued, err := svc.Issue(IssueParams{UserID: "u-42"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	w := httptest.NewRecorder()
	newAuthTestRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-42", w.Body.String())
}

func TestAuthenticateInvalidTokenIsRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	newAuthTestRouter(newTestJWTService(t)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"invalid or expired token"`)
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(t)
	r := newAuthTestRouter(svc, RequireRole(RoleAdmin))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer, err := svc.Issue(IssueParams{UserID: "viewer", Roles: []string{RoleCustomerViewer}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+viewer.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, err := svc.Issue(IssueParams{UserID: "admin", Roles: []string{RoleAdmin}})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
