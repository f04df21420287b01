package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/store"
)

func SetupSettingRoutes(g *echo.Group, settingService SettingServicer) {
	h := NewSettingHandler(settingService)
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings/:key", h.PutSetting)
}

type SettingServicer interface {
	ListSettings(ctx context.Context) ([]*store.SiteSetting, error)
	UpdateSetting(ctx context.Context, key, value string) error
}

type SettingHandler struct {
	settingService SettingServicer
}

func NewSettingHandler(settingService SettingServicer) *SettingHandler {
	return &SettingHandler{settingService}
}

func (h *SettingHandler) GetSettings(c echo.Context) error {
	settings, err := h.settingService.ListSettings(c.Request().Context())
	if err != nil {
		return serviceError(err, "unable to list settings")
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *SettingHandler) PutSetting(c echo.Context) error {
	p := new(SettingParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid setting data")
	}
	if err := h.settingService.UpdateSetting(c.Request().Context(), p.Key, p.Value); err != nil {
		return serviceError(err, "unable to update setting")
	}
	return c.NoContent(http.StatusNoContent)
}
