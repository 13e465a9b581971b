package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Domenick1991/carpool/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserID = "auth.userID"
	ctxRole   = "auth.role"
)

// Claims is what the external identity provider puts in its tokens: a
// stable user id plus a role. Nothing else is trusted from the token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware verifies the bearer token and exposes the caller's identity
// to handlers via UserID and Role.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization format"})
			return
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxRole, domain.Role(claims.Role))
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func Role(c *gin.Context) domain.Role {
	if v, ok := c.Get(ctxRole); ok {
		if role, ok := v.(domain.Role); ok {
			return role
		}
	}
	return ""
}
