package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ContextUserIDKey holds the authenticated uuid.UUID on the gin context.
const ContextUserIDKey = "user_id"

var ErrInvalidToken = errors.New("invalid token")

type TokenValidator interface {
	ValidateToken(token string) (uuid.UUID, error)
}

// JWTValidator checks HS256 tokens signed with the shared secret.
type JWTValidator struct {
	secretKey []byte
}

func NewJWTValidator(secretKey string) *JWTValidator {
	return &JWTValidator{secretKey: []byte(secretKey)}
}

func (v *JWTValidator) ValidateToken(tokenString string) (uuid.UUID, error) {
	if len(v.secretKey) == 0 {
		return uuid.Nil, fmt.Errorf("%w: no secret configured", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return v.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}

	for _, key := range []string{"sub", "userId", "user_id"} {
		if raw, ok := claims[key].(string); ok && raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
			}
			return id, nil
		}
	}
	return uuid.Nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
}

// AuthMiddleware validates JWT token from Authorization header
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "No authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		userID, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": "UNAUTHORIZED", "message": message},
	})
}
