package gateway

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "collabedge/internal/errors"
)

// ErrorHandler converts errors attached by handlers into JSON responses.
func ErrorHandler(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			appErr := apperrors.AsAppError(err)

			if appErr.Code >= 500 {
				log.Error().Err(appErr).Str("path", c.Request.URL.Path).Msg("request failed")
			} else {
				log.Info().Err(appErr).Str("path", c.Request.URL.Path).Msg("request rejected")
			}

			c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
		}
	}
}
