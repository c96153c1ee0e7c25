package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/livescore/livescore-backend/internal/models"
	jwtutil "github.com/livescore/livescore-backend/pkg/jwt"
)

const (
	ContextUserID = "userId"
	ContextRole   = "role"
)

// Auth JWT 인증 미들웨어
func Auth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Authorization 헤더에서 토큰 추출
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// "Bearer <token>" 형식 파싱
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.Verify(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		// 검증 성공 - 사용자 정보를 context에 저장
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, string(models.ParseRole(claims.Role)))

		c.Next()
	}
}

// ActorFromContext Auth가 저장한 사용자 정보로 Actor 구성
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	userID, ok := c.Get(ContextUserID)
	if !ok {
		return models.Actor{}, false
	}
	id, ok := userID.(int64)
	if !ok || id <= 0 {
		return models.Actor{}, false
	}

	return models.Actor{ID: id, Role: models.ParseRole(c.GetString(ContextRole))}, true
}

// VerifyQueryToken ?token= 값이 있으면 검증해서 Actor 반환 (없거나 잘못되면 nil)
func VerifyQueryToken(c *gin.Context, jwtManager *jwtutil.JWTManager) *models.Actor {
	token := c.Query("token")
	if token == "" {
		return nil
	}

	claims, err := jwtManager.Verify(token)
	if err != nil {
		return nil
	}
	return &models.Actor{ID: claims.UserID, Role: models.ParseRole(claims.Role)}
}
