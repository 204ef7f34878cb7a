package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"alumnet-chat/internal/services"
	"alumnet-chat/internal/transport/httpdto"
	"alumnet-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware verifies the bearer token issued by the portal's
// account system and puts the caller's user id on the request context.
// Token issuance itself lives outside this service.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			unauthorized(c)
			return
		}

		userID, err := parseSubject(token, secret)
		if err != nil {
			unauthorized(c)
			return
		}

		ctx := services.WithUserID(c.Request.Context(), userID)
		ctx = context.WithValue(ctx, logger.UserIdKey, strconv.FormatInt(userID, 10))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseSubject(tokenString, secret string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q", subject)
	}
	return userID, nil
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	c.Abort()
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
