package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/clinic-agenda-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	return c, rec
}

func TestErrorRecordsServerFailures(t *testing.T) {
	c, rec := newContext()
	Error(c, errors.New("db down"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, c.Errors, 1)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)

	c, rec = newContext()
	Error(c, appErrors.Clone(appErrors.ErrNotFound, "appointment not found"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, c.Errors)
}

func TestJSONOmitsEmptyMeta(t *testing.T) {
	c, rec := newContext()
	JSON(c, http.StatusOK, map[string]int{"n": 1}, nil, map[string]interface{}{})

	assert.JSONEq(t, `{"data":{"n":1}}`, rec.Body.String())
}

func TestAttachment(t *testing.T) {
	c, rec := newContext()
	Attachment(c, "agenda 2024.csv", "text/csv", []byte("a,b\n"))

	assert.Equal(t, `attachment; filename="agenda 2024.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}
