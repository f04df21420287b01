package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/store"
)

func SetupUserRoutes(g *echo.Group, userService UserServicer) {
	h := NewUserHandler(userService)
	g.POST("/users", h.PostUser)
	g.GET("/users/:user_id", h.GetUser)
	g.PATCH("/users/:user_id/email", h.PatchUserEmail)
	g.DELETE("/users/:user_id", h.DeleteUser)
}

type UserServicer interface {
	GetUserByID(ctx context.Context, userID int64) (*store.User, error)
	CreateUser(ctx context.Context, username string, email *string) (*store.User, error)
	UpdateUserEmail(ctx context.Context, userID int64, email *string) error
	DeleteUser(ctx context.Context, userID int64) error
}

type UserHandler struct {
	userService UserServicer
}

func NewUserHandler(userService UserServicer) *UserHandler {
	return &UserHandler{userService}
}

func (h *UserHandler) PostUser(c echo.Context) error {
	p := new(UserParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user data")
	}
	u, err := h.userService.CreateUser(c.Request().Context(), p.Username, p.Email)
	if err != nil {
		return serviceError(err, "unable to create user")
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	p := new(UserParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user id")
	}
	u, err := h.userService.GetUserByID(c.Request().Context(), p.UserID)
	if err != nil {
		return serviceError(err, "unable to read user")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) PatchUserEmail(c echo.Context) error {
	p := new(UserParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user data")
	}
	if err := h.userService.UpdateUserEmail(c.Request().Context(), p.UserID, p.Email); err != nil {
		return serviceError(err, "unable to update email")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	p := new(UserParams)
	if err := c.Bind(p); err != nil {
		return newError(err, http.StatusBadRequest, "invalid user id")
	}
	if err := h.userService.DeleteUser(c.Request().Context(), p.UserID); err != nil {
		return serviceError(err, "unable to delete user")
	}
	return c.NoContent(http.StatusNoContent)
}
