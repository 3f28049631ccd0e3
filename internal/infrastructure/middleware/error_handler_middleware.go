package middleware

import (
	"net/http"

	"kalonconnect/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	OK      bool                   `json:"ok"`
	Error   string                 `json:"error"`
	Code    errors.ErrorCode       `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func errorBody(appErr *errors.AppError) ErrorResponse {
	return ErrorResponse{
		OK:      false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Context,
	}
}

// AbortWithError writes err in the standard error shape and stops the chain.
// Errors that aren't AppErrors are mapped from their domain sentinel.
func AbortWithError(c *gin.Context, err error) {
	appErr := errors.FromDomain(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, errorBody(appErr))
}

// ErrorHandlerMiddleware renders errors handlers attached with c.Error
// but did not write themselves.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr := errors.FromDomain(err)

		if appErr.HTTPStatus >= 500 {
			logger.Errorw("application error",
				"code", appErr.Code,
				"error", err,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		} else {
			logger.Infow("request rejected",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		if !c.Writer.Written() {
			c.JSON(appErr.HTTPStatus, errorBody(appErr))
		}
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(errors.NewInternalError("internal server error")))
			}
		}()

		c.Next()
	}
}
