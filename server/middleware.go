package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/fieldops/dispatch/engine/core"
	"github.com/fieldops/dispatch/engine/user"
	"github.com/fieldops/dispatch/engine/userctx"
	"github.com/fieldops/dispatch/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// LoggerMiddleware returns a Gin middleware for request logging.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		ctx := logger.ContextWithLogger(c.Request.Context(), log)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.Info("request completed",
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
			"path", path,
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

// CORSMiddleware returns a Gin middleware for CORS.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().
			Set("Access-Control-Allow-Headers",
				"Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, "+
					"Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AuthMiddleware validates the bearer token as an HS256 JWT signed with
// the shared secret, loads the subject's account and attaches it to the
// request context. Token issuance lives in the identity collaborator;
// this side only verifies.
func AuthMiddleware(secret string, users user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			abortProblem(c, http.StatusUnauthorized, "a bearer token is required")
			return
		}
		token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortProblem(c, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			abortProblem(c, http.StatusUnauthorized, "token carries no subject")
			return
		}
		userID, err := core.ParseID(subject)
		if err != nil {
			abortProblem(c, http.StatusUnauthorized, "token subject is not a valid user id")
			return
		}
		u, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			abortProblem(c, http.StatusUnauthorized, "unknown user")
			return
		}
		c.Request = c.Request.WithContext(userctx.WithUser(c.Request.Context(), u))
		c.Next()
	}
}

func abortProblem(c *gin.Context, status int, detail string) {
	problem := &core.Problem{
		Status: status,
		Title:  http.StatusText(status),
		Detail: detail,
	}
	c.AbortWithStatusJSON(status, core.BuildProblemBody(problem))
}
