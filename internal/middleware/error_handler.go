package middleware

import (
	"github.com/gin-gonic/gin"

	"dialogues/pkg/errors"
)

// ErrorHandler отдает последнюю ошибку из c.Errors, если хендлер
// сам ничего не записал
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		apiErr := errors.FromError(c.Errors.Last().Err)
		c.JSON(apiErr.Code, apiErr)
	}
}
