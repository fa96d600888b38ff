package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gsPatrick/finance-os/models"
)

// userCacheTTL bounds how long a cached identity is trusted before the
// database is consulted again.
const userCacheTTL = 15 * time.Minute

// cachedIdentity is the identity payload stored in Redis per user.
type cachedIdentity struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
}

// Auth validates the bearer token (Authorization header or auth_token
// cookie), resolves the user through the Redis cache or the database,
// and injects the user id into the Gin context.
func Auth(db *gorm.DB, rdb *redis.Client, jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)

	return func(c *gin.Context) {
		tokenStr, err := c.Cookie("auth_token")
		if err != nil || tokenStr == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				abortUnauthorized(c, "authorization token not provided")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				abortUnauthorized(c, "invalid Authorization header format")
				return
			}
			tokenStr = parts[1]
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid token claims")
			return
		}
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			abortUnauthorized(c, "invalid user id in token")
			return
		}
		userID := uint(userIDFloat)

		cacheKey := fmt.Sprintf("user:%d:identity", userID)
		if rdb != nil {
			cached, err := rdb.Get(c.Request.Context(), cacheKey).Result()
			if err == nil {
				var identity cachedIdentity
				if json.Unmarshal([]byte(cached), &identity) == nil {
					c.Set("userID", identity.UserID)
					c.Next()
					return
				}
				slog.Warn("failed to unmarshal cached identity", "user_id", userID)
			} else if err != redis.Nil {
				slog.Error("redis GET failed", "error", err, "user_id", userID)
			}
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			abortUnauthorized(c, "user from token no longer exists")
			return
		}

		if rdb != nil {
			payload, _ := json.Marshal(cachedIdentity{UserID: user.ID, Email: user.Email})
			if err := rdb.Set(context.Background(), cacheKey, payload, userCacheTTL).Err(); err != nil {
				slog.Error("redis SET failed", "error", err, "user_id", userID)
			}
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// UserID extracts the authenticated user id set by Auth.
func UserID(c *gin.Context) uint {
	return c.GetUint("userID")
}
