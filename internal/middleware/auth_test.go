package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	userID uuid.UUID
	err    error
}

func (s *stubValidator) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	return s.userID, s.err
}

func newAuthRouter(validator TokenValidator) (*gin.Engine, *uuid.UUID) {
	gin.SetMode(gin.TestMode)
	var captured uuid.UUID
	r := gin.New()
	r.GET("/protected", Auth(validator), func(c *gin.Context) {
		captured = c.MustGet("user_id").(uuid.UUID)
		c.Status(http.StatusOK)
	})
	return r, &captured
}

func TestAuth_ValidTokenSetsUserID(t *testing.T) {
	userID := uuid.New()
	r, captured := newAuthRouter(&stubValidator{userID: userID})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, *captured)
}

func TestAuth_MissingHeader(t *testing.T) {
	r, _ := newAuthRouter(&stubValidator{userID: uuid.New()})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization header is required")
}

func TestAuth_MalformedHeader(t *testing.T) {
	r, _ := newAuthRouter(&stubValidator{userID: uuid.New()})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_RejectedToken(t *testing.T) {
	r, _ := newAuthRouter(&stubValidator{err: errors.New("expired")})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid or expired token")
}
