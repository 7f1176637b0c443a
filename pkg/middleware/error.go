package middleware

import (
	"net/http"

	"settlement-engine/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders errors attached to the gin context through c.Error as the
// errutil JSON envelope. Non-BaseError values become opaque 500s so provider
// and database detail never reaches callers.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil || c.Writer.Written() {
			return
		}

		if v, ok := err.Err.(errutil.BaseError); ok {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, errutil.BaseError{
			Code:    errutil.StatusInternal,
			Message: "internal error",
		}.JSON())
	}
}
