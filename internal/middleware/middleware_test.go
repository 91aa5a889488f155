package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/clinic-agenda-api/internal/models"
	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*models.JWTClaims, error) {
	return s.claims, s.err
}

func newRouter(validator TokenValidator, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/agenda", JWT(validator), RequireRoles(roles...), func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})
	return r
}

func TestJWTMiddleware(t *testing.T) {
	practitioner := &models.JWTClaims{UserID: "owner-1", Role: models.RolePractitioner}
	cases := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", validator: stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}, status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", validator: stubValidator{claims: practitioner}, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(tc.validator, models.RoleAdmin, models.RolePractitioner)
			req := httptest.NewRequest(http.MethodGet, "/agenda", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireRolesForbidden(t *testing.T) {
	r := newRouter(stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.UserRole("GUEST")}}, models.RolePractitioner)
	req := httptest.NewRequest(http.MethodGet, "/agenda", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJWTMiddlewarePropagatesErrorStatus(t *testing.T) {
	r := newRouter(stubValidator{err: errors.New("unexpected")}, models.RolePractitioner)
	req := httptest.NewRequest(http.MethodGet, "/agenda", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseMetaCacheHit(t *testing.T) {
	r := newRouter(stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}, models.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/agenda", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache_hit":true`)
}

type recordingObserver struct {
	routes   []string
	statuses []int
}

func (r *recordingObserver) ObserveHTTPRequest(_ string, route string, status int, _ time.Duration) {
	r.routes = append(r.routes, route)
	r.statuses = append(r.statuses, status)
}

func TestMetricsLabelsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer, "/metrics"))
	r.GET("/appointments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/appointments/a1", "/appointments/a2", "/missing", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []string{"/appointments/:id", "/appointments/:id", unmatchedRoute}, observer.routes)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusNotFound}, observer.statuses)
}

func TestSetMetaWithoutResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, ExtractMeta(c))
	SetMeta(c, "count", 3)
	assert.Equal(t, 3, ExtractMeta(c)["count"])
}
