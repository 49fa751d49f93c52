package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modu-market/backend/internal/model"
	"github.com/modu-market/backend/internal/token"
)

const authUserKey = "auth_user"

// AuthMiddleware parses the Bearer access token and stores the verified
// identity on the request context. Refresh tokens are rejected here: they
// are only good for the refresh endpoint's store lookup.
func AuthMiddleware(codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortWithCode(c, http.StatusUnauthorized, model.CodeUnauthorized)
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims, err := codec.Verify(tokenStr)
		if err != nil || claims.Kind != token.KindAccess {
			abortWithCode(c, http.StatusUnauthorized, model.CodeInvalidToken)
			return
		}

		c.Set(authUserKey, &model.AuthUser{
			Email: claims.Subject,
			Role:  claims.Role,
		})
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated user carries role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil {
			abortWithCode(c, http.StatusUnauthorized, model.CodeUnauthorized)
			return
		}
		if user.Role != role {
			abortWithCode(c, http.StatusForbidden, model.CodeForbidden)
			return
		}
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func abortWithCode(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, model.CommonError{Status: status, Code: code})
}
