package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"PPRelay/logger"
	"PPRelay/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog writes one zap line per request once the handler chain is done.
// Websocket upgrades log when the session ends.
func AccessLog() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			log.Warn(c.Errors.String(), fields...)
			return
		}
		log.Info("request", fields...)
	}
}

// Recovery turns a handler panic into a 500 and logs it with the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[http] panic recovered",
					zap.String("path", c.FullPath()),
					zap.Error(errs.ErrPanic(r)),
					zap.ByteString("stack", debug.Stack()))
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
