package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"cpesync/internal/apperr"
	"cpesync/internal/store"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Claims is the session token payload. Student tokens carry the account id;
// admin tokens carry only the role. The admin principal is a capability
// granted by the static admin code, not a stored account, and must never be
// routed through account lookups.
type Claims struct {
	AccountID string `json:"accountId,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func SignStudentToken(secret, accountID string, ttl time.Duration) (string, error) {
	return sign(secret, Claims{
		AccountID: accountID,
		Role:      RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cpesync",
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(ttl)),
		},
	})
}

func SignAdminToken(secret string, ttl time.Duration) (string, error) {
	return sign(secret, Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cpesync",
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(ttl)),
		},
	})
}

func sign(secret string, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Auth validates the bearer token and stores the claims on the context.
// Student claims are checked against the store so tokens for deleted
// accounts stop working; admin claims are not, by design of the principal.
func Auth(st store.Store, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			apperr.Abort(c, apperr.Auth("Missing or invalid authorization header"))
			return
		}
		tokenStr := strings.TrimSpace(header[len("Bearer "):])

		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			apperr.Abort(c, apperr.Auth("Invalid token"))
			return
		}
		if claims.Role == RoleStudent {
			if _, err := st.AccountByID(c.Request.Context(), claims.AccountID); err != nil {
				apperr.Abort(c, apperr.Auth("Invalid token"))
				return
			}
		}
		c.Set("claims", claims)
		c.Next()
	}
}

// ClaimsFrom returns the verified claims set by Auth.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	val, ok := c.Get("claims")
	if !ok {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			apperr.Abort(c, apperr.Auth("Unauthorized"))
			return
		}
		if claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(403, gin.H{"error": "Forbidden", "kind": "auth"})
			return
		}
		c.Next()
	}
}

// RequireSelfOrAdmin allows admins through and students only when the named
// route parameter is their own account id.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			apperr.Abort(c, apperr.Auth("Unauthorized"))
			return
		}
		if claims.Role == RoleAdmin {
			c.Next()
			return
		}
		if claims.Role != RoleStudent || claims.AccountID != c.Param(param) {
			c.AbortWithStatusJSON(403, gin.H{"error": "Forbidden", "kind": "auth"})
			return
		}
		c.Next()
	}
}
