package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/techsoc/backend/internal/auth"
	"github.com/techsoc/backend/internal/models"
	"github.com/techsoc/backend/internal/roles"
	"github.com/techsoc/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the derived user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextUserName is the key for the display name in gin context.
	ContextUserName = "user_name"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Role   models.Role
}

// JWT returns a middleware that validates the issuer token and sets the caller
// identity in context. The role is always re-derived from the email.
func JWT(jwtService *auth.JWTService, resolver roles.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		SetIdentity(c, Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
			Name:   claims.Name,
			Role:   resolver.Resolve(claims.Email),
		})
		c.Next()
	}
}

// SetIdentity stores id in the gin context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(ContextUserID, id.UserID)
	c.Set(ContextUserEmail, id.Email)
	c.Set(ContextUserName, id.Name)
	c.Set(ContextUserRole, string(id.Role))
}

// CurrentIdentity returns the caller set by JWT.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return Identity{}, false
	}
	userID, ok := v.(uuid.UUID)
	if !ok {
		return Identity{}, false
	}
	return Identity{
		UserID: userID,
		Email:  c.GetString(ContextUserEmail),
		Name:   c.GetString(ContextUserName),
		Role:   models.Role(c.GetString(ContextUserRole)),
	}, true
}
