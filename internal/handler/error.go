package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/jenkins"
	"github.com/qsplatform/buildcore/internal/logger"
	"github.com/qsplatform/buildcore/internal/service"
	"github.com/qsplatform/buildcore/internal/store"
	"go.uber.org/zap"
)

func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	message := "something went wrong"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
		if he.Internal != nil {
			logger.L().Error("handler internal error",
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Error(he.Internal),
			)
		}
	} else {
		logger.L().Error("handler error", zap.String("path", c.Request().URL.Path), zap.Error(err))
	}

	if err := c.JSON(status, map[string]string{"message": message}); err != nil {
		logger.L().Error("writing error response", zap.Error(err))
	}
}

func newError(err error, status int, message string) error {
	e := echo.NewHTTPError(status, message)
	if err != nil {
		e = e.WithInternal(err)
	}
	return e
}

// serviceError maps errors returned by services to HTTP errors. Anything
// unrecognised becomes a 500 carrying message.
func serviceError(err error, message string) error {
	var (
		nf      *service.NotFoundError
		invalid *service.InvalidInputError
		svcErr  *jenkins.ServiceError
	)
	switch {
	case errors.As(err, &nf):
		return newError(err, http.StatusNotFound, nf.Error())
	case errors.As(err, &invalid):
		return newError(err, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, sql.ErrNoRows):
		return newError(err, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrQueueFull):
		return newError(err, http.StatusServiceUnavailable, "build queue is full")
	case errors.Is(err, service.ErrCredentialInUse):
		return newError(err, http.StatusConflict, "credential is in use by a job")
	case errors.As(err, &svcErr), errors.Is(err, jenkins.ErrNoData):
		return newError(err, http.StatusBadGateway, "ci server request failed")
	case store.IsUniqueConstraintError(err):
		return newError(err, http.StatusConflict, "already exists")
	case store.IsForeignKeyConstraintError(err):
		return newError(err, http.StatusConflict, "referenced by other records")
	}
	return newError(err, http.StatusInternalServerError, message)
}
