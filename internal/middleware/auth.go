package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/auth"
	"chat-core/internal/models"
)

// TokenValidator resolves a bearer token to the caller's identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Identity, error)
}

// ProfileSyncer mirrors display fields from token claims into the user table.
type ProfileSyncer interface {
	UpsertUser(ctx context.Context, user models.User) error
}

// AuthMiddleware validates the bearer token and sets userID and username on
// the context. profiles may be nil.
func AuthMiddleware(validator TokenValidator, profiles ProfileSyncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		identity, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		SyncProfile(c.Request.Context(), profiles, identity)
		c.Set("userID", identity.UserID)
		c.Set("username", identity.Username)
		c.Next()
	}
}

// SyncProfile upserts the caller's profile. Claims without display fields
// leave the stored ones alone. Failures are logged only.
func SyncProfile(ctx context.Context, profiles ProfileSyncer, identity auth.Identity) {
	if profiles == nil {
		return
	}
	user := models.User{ID: identity.UserID, Username: identity.Username, AvatarURL: identity.AvatarURL}
	if err := profiles.UpsertUser(ctx, user); err != nil {
		log.Printf("profile sync failed user_id=%d: %v", identity.UserID, err)
	}
}
