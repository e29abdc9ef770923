package middleware

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"
)

// HoneybadgerMiddleware sends error/warning notifications to Honeybadger.
// On panic, it notifies Honeybadger and re-panics to allow gin.Recovery to handle the response.
// Errors attached with c.Error are reported with their error class as a tag.
func HoneybadgerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	apiKey := os.Getenv("HONEYBADGER_API_KEY")
	if apiKey == "" {
		logger.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    os.Getenv("EXPLORER_ENV"),
	})

	logger.Info("Honeybadger error reporting is enabled.")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				honeybadger.Notify(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.Request.URL.Path),
					c.Request, honeybadger.Context{"stack": string(debug.Stack())}, honeybadger.Tags{"panic", "http"})
				logger.Error("Recovered from panic, notified Honeybadger: ", rec)
				panic(rec)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if status < 400 || status == 404 {
			return
		}
		tags := honeybadger.Tags{"http", "4XX"}
		if status >= 500 {
			tags = honeybadger.Tags{"http", "5XX"}
		}
		for _, ginErr := range c.Errors {
			tags = append(tags, ErrorClass(ginErr.Err))
		}

		msg := fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path)
		if last := c.Errors.Last(); last != nil {
			msg = fmt.Sprintf("%s: %v", msg, last.Err)
		}
		if status >= 500 {
			honeybadger.Notify("Error: "+msg, c.Request, tags)
		} else {
			honeybadger.Notify("Warning: "+msg, tags)
		}
		logger.Warnf("Honeybadger reported %s", msg)
	}
}

// ErrorClass names the errdefs class of err, used for tagging and response codes.
func ErrorClass(err error) string {
	switch {
	case errdefs.IsInvalidArgument(err):
		return "invalid_argument"
	case errdefs.IsNotFound(err):
		return "not_found"
	case errdefs.IsAlreadyExists(err):
		return "already_exists"
	case errdefs.IsConflict(err):
		return "conflict"
	case errdefs.IsFailedPrecondition(err):
		return "failed_precondition"
	case errdefs.IsPermissionDenied(err):
		return "permission_denied"
	case errdefs.IsUnauthorized(err):
		return "unauthenticated"
	case errdefs.IsDataLoss(err):
		return "data_loss"
	case errdefs.IsDeadlineExceeded(err):
		return "deadline_exceeded"
	case errdefs.IsCanceled(err):
		return "canceled"
	default:
		return "unknown"
	}
}
