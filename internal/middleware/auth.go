package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"community-chat/internal/observability"
)

// Platform roles carried in access tokens.
const (
	RoleAdmin    = "admin"
	RoleSubAdmin = "subAdmin"
	RoleUser     = "user"
)

const (
	userIDKey = "userID"
	roleKey   = "userRole"
)

// Claims is the access token payload issued by the account service.
type Claims struct {
	UserID int    `json:"userID"`
	Role   string `json:"userRole"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	return claims, nil
}

// AuthMiddleware validates the bearer token and stores the caller in the gin context.
func AuthMiddleware(verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := observability.BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// RequireRoles rejects callers whose platform role is not listed.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	}
}

// UserID returns the authenticated user id, or 0.
func UserID(c *gin.Context) int {
	return c.GetInt(userIDKey)
}

// Role returns the authenticated platform role.
func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}

// IsAdmin reports whether the caller is a platform admin.
func IsAdmin(c *gin.Context) bool {
	return Role(c) == RoleAdmin
}

// SetIdentity stores a caller in the context; handler tests use it in place of AuthMiddleware.
func SetIdentity(c *gin.Context, userID int, role string) {
	c.Set(userIDKey, userID)
	c.Set(roleKey, role)
}
