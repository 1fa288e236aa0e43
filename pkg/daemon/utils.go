package daemon

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ginLogger logs one line per daemon request. Client errors are warnings and
// server errors are errors. Successful requests and event streams, which stay
// open for as long as `battsense watch` runs, are only logged at debug level.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Handlers may rewrite the path.
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		ms := int(math.Ceil(float64(time.Since(start).Nanoseconds()) / 1e6))
		status := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status": status,
			"ms":     ms,
			"method": c.Request.Method,
			"route":  c.FullPath(),
			"bytes":  max(c.Writer.Size(), 0),
		})

		msg := fmt.Sprintf("%s %s %d (%dms)", c.Request.Method, path, status, ms)
		if len(c.Errors) > 0 {
			msg += ": " + c.Errors.Last().Error()
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(msg)
		case status >= http.StatusBadRequest:
			entry.Warn(msg)
		default:
			entry.Debug(msg)
		}
	}
}

// abortWithError writes err as the JSON body and records it on the context
// so ginLogger reports it.
func abortWithError(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}
