package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/turf/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userContextKey  = "auth_user"
	bearerPrefix    = "Bearer "
)

func requestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := strings.TrimSpace(ctx.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set(requestIDKey, id)
		ctx.Header(requestIDHeader, id)
		ctx.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		status := ctx.Writer.Status()
		fields := []zap.Field{
			zap.String("method", ctx.Request.Method),
			zap.String("route", ctx.FullPath()),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", ctx.ClientIP()),
			zap.String(requestIDKey, ctx.GetString(requestIDKey)),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if timeout <= 0 {
			ctx.Next()
			return
		}
		requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(requestCtx)
		ctx.Next()
	}
}

func (server *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(ctx *gin.Context, recovered any) {
		server.logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String(requestIDKey, ctx.GetString(requestIDKey)),
			zap.Stack("stack"),
		)
		server.abortWithError(ctx, fmt.Errorf("panic: %v", recovered))
	})
}

// requireRoles authenticates the bearer token and admits only the listed roles.
func (server *Server) requireRoles(roles ...auth.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, bearerPrefix)
		token = strings.TrimSpace(token)
		if !found || token == "" {
			server.abortWithError(ctx, fmt.Errorf("%w: missing bearer token", auth.ErrInvalidToken))
			return
		}
		user, err := server.auth.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			server.abortWithError(ctx, err)
			return
		}
		if err := auth.Authorize(user, roles...); err != nil {
			server.abortWithError(ctx, err)
			return
		}
		ctx.Set(userContextKey, user)
		ctx.Next()
	}
}

func currentUser(ctx *gin.Context) (auth.User, bool) {
	value, ok := ctx.Get(userContextKey)
	if !ok {
		return auth.User{}, false
	}
	user, ok := value.(auth.User)
	return user, ok
}

var errMissingUser = fmt.Errorf("%w: no authenticated user", auth.ErrInvalidToken)
