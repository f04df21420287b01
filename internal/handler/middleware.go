package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/qsplatform/buildcore/internal"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

type APIKeyReader interface {
	GetAPIKeyByValue(ctx context.Context, value string) (*store.APIKey, error)
}

// APIKeyMiddleware resolves the API key header into the calling identity.
// Requests without the header continue anonymously, unknown keys are
// rejected.
func APIKeyMiddleware(apiKeys APIKeyReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := c.Request().Header.Get(internal.APIKeyHeader)
			if value == "" {
				return next(c)
			}
			ak, err := apiKeys.GetAPIKeyByValue(c.Request().Context(), value)
			if errors.Is(err, sql.ErrNoRows) {
				return newError(nil, http.StatusUnauthorized, "invalid api key")
			}
			if err != nil {
				return newError(err, http.StatusInternalServerError, "unable to verify api key")
			}
			c.Set(ctxAPIKey, ak)
			return next(c)
		}
	}
}

func RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if getCtxAPIKey(c) == nil {
			return newError(nil, http.StatusUnauthorized, "api key required")
		}
		return next(c)
	}
}

func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
