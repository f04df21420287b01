package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/store"
)

func SetupCredentialRoutes(g *echo.Group, credentialService CredentialServicer) {
	h := NewCredentialHandler(credentialService)
	g.GET("/credentials", h.GetCredentials)
	g.POST("/credentials", h.PostCredential)
	g.DELETE("/credentials/:credential_id", h.DeleteCredential)
}

type CredentialServicer interface {
	CreateCredential(ctx context.Context, name, baseURL, username, secret string) (*store.JobCredential, error)
	ListCredentials(ctx context.Context, activeOnly bool) ([]*store.JobCredential, error)
	DeleteCredential(ctx context.Context, credentialID int64) error
}

type CredentialHandler struct {
	credentialService CredentialServicer
}

func NewCredentialHandler(credentialService CredentialServicer) *CredentialHandler {
	return &CredentialHandler{credentialService}
}

func (h *CredentialHandler) GetCredentials(c echo.Context) error {
	creds, err := h.credentialService.ListCredentials(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return serviceError(err, "unable to list credentials")
	}
	return c.JSON(http.StatusOK, creds)
}

func (h *CredentialHandler) PostCredential(c echo.Context) error {
	p := new(CredentialParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid credential data")
	}
	cred, err := h.credentialService.CreateCredential(
		c.Request().Context(), p.Name, p.BaseURL, p.Username, p.Secret,
	)
	if err != nil {
		return serviceError(err, "unable to create credential")
	}
	return c.JSON(http.StatusCreated, cred)
}

func (h *CredentialHandler) DeleteCredential(c echo.Context) error {
	p := new(CredentialParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid credential id")
	}
	if err := h.credentialService.DeleteCredential(c.Request().Context(), p.CredentialID); err != nil {
		return serviceError(err, "unable to delete credential")
	}
	return c.NoContent(http.StatusNoContent)
}
