package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-core/internal/auth"
	"chat-core/internal/models"
	"chat-core/internal/repositories/memory"
)

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := auth.NewValidator("secret")
	store := memory.NewStore()

	router := gin.New()
	router.GET("/me", AuthMiddleware(validator, store), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("userID"), "username": c.GetString("username")})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := validator.IssueToken(auth.Identity{UserID: 7, Username: "gina"}, time.Minute)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"username":"gina"}`, w.Body.String())

	user, err := store.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "gina", user.Username)
}

func TestAuthMiddlewareKeepsProfileForBareToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := auth.NewValidator("secret")
	store := memory.NewStore()
	require.NoError(t, store.UpsertUser(context.Background(), models.User{ID: 7, Username: "gina", AvatarURL: "https://cdn/g.png"}))

	router := gin.New()
	router.GET("/me", AuthMiddleware(validator, store), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	token, err := validator.IssueToken(auth.Identity{UserID: 7}, time.Minute)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	user, err := store.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "gina", user.Username)
	assert.Equal(t, "https://cdn/g.png", user.AvatarURL)
}
