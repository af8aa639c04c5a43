package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"study-planner/internal/config"
	"study-planner/internal/service"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		entry := config.Logger.WithFields(logrus.Fields{
			"request_id": c.GetString(ctxRequestID),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"elapsed":    time.Since(started).String(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

// allocationTrigger makes sure today's allocation exists before the request is
// handled. A store failure aborts the request.
func allocationTrigger(trigger service.DayTrigger, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if trigger == nil {
			c.Next()
			return
		}
		if _, err := trigger.EnsureToday(c.Request.Context(), now()); err != nil {
			_ = c.Error(err)
			writeError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
