package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	contextTenantID = "tenant_id"
	contextUserID   = "user_id"
)

// Claims are the session token claims the portal cares about. Identity
// issuance lives outside this service; we only verify and resolve which
// tenant a session may act on.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Middleware verifies the bearer token and records the caller's tenant and
// user on the request context. Every engine operation downstream takes the
// tenant ID explicitly from here.
func Middleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session has no tenant"})
			return
		}

		c.Set(contextTenantID, tenantID)
		c.Set(contextUserID, claims.Subject)
		c.Next()
	}
}

// TenantID returns the tenant resolved for the current request.
func TenantID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(contextTenantID)
	if !ok {
		return uuid.Nil, false
	}
	tenantID, ok := value.(uuid.UUID)
	return tenantID, ok
}

// UserID returns the authenticated user for the current request.
func UserID(c *gin.Context) (string, bool) {
	value, ok := c.Get(contextUserID)
	if !ok {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("malformed authorization header")
	}
	return parts[1], nil
}
