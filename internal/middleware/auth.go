package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// AuthMiddleware 认证中间件
// 配置了 jwtSecret 时要求 HS256 Bearer Token，用户ID取自 sub；否则读取 X-User-ID 请求头
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID string

		if jwtSecret != "" {
			authHeader := c.GetHeader("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				abortUnauthorized(c, "missing bearer token")
				return
			}
			id, err := ParseUserID(strings.TrimPrefix(authHeader, "Bearer "), jwtSecret)
			if err != nil {
				abortUnauthorized(c, "invalid or expired token")
				return
			}
			userID = id
		} else {
			userID = strings.TrimSpace(c.GetHeader("X-User-ID"))
			if userID == "" {
				abortUnauthorized(c, "missing X-User-ID header")
				return
			}
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// ParseUserID 校验 Token 并返回 sub
func ParseUserID(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid subject in token")
	}
	return sub, nil
}

// GetUserID 从上下文获取当前用户ID
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": http.StatusUnauthorized,
		"msg":  msg,
	})
}
