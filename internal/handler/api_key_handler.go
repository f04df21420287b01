package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/store"
)

func SetupAPIKeyRoutes(g *echo.Group, apiKeyService APIKeyServicer) {
	h := NewAPIKeyHandler(apiKeyService)
	g.GET("/api-keys", h.GetAPIKeys)
	g.POST("/api-keys", h.PostAPIKey)
	g.DELETE("/api-keys/:id", h.DeleteAPIKey)
}

type APIKeyServicer interface {
	CreateAPIKey(ctx context.Context, userID *int64) (*store.APIKey, error)
	DeleteAPIKey(ctx context.Context, id int64) error
	ListAPIKeys(ctx context.Context) ([]*store.APIKey, error)
}

type APIKeyHandler struct {
	apiKeyService APIKeyServicer
}

func NewAPIKeyHandler(apiKeyService APIKeyServicer) *APIKeyHandler {
	return &APIKeyHandler{apiKeyService}
}

func (h *APIKeyHandler) GetAPIKeys(c echo.Context) error {
	keys, err := h.apiKeyService.ListAPIKeys(c.Request().Context())
	if err != nil {
		return serviceError(err, "unable to list api keys")
	}
	return c.JSON(http.StatusOK, keys)
}

// PostAPIKey creates a key owned by user_id, or by the caller when the body
// names no user.
func (h *APIKeyHandler) PostAPIKey(c echo.Context) error {
	p := new(APIKeyParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid api key data")
	}
	userID := p.UserID
	if userID == nil {
		userID = getCtxUserID(c)
	}
	ak, err := h.apiKeyService.CreateAPIKey(c.Request().Context(), userID)
	if err != nil {
		return serviceError(err, "unable to create api key")
	}
	return c.JSON(http.StatusCreated, ak)
}

func (h *APIKeyHandler) DeleteAPIKey(c echo.Context) error {
	p := new(APIKeyParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid api key id")
	}
	if err := h.apiKeyService.DeleteAPIKey(c.Request().Context(), p.ID); err != nil {
		return serviceError(err, "unable to delete api key")
	}
	return c.NoContent(http.StatusNoContent)
}
