package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/qsplatform/buildcore/internal/store"
)

const ctxAPIKey = "api_key"

func getCtxAPIKey(c echo.Context) *store.APIKey {
	if ak, ok := c.Get(ctxAPIKey).(*store.APIKey); ok {
		return ak
	}
	return nil
}

// getCtxUserID returns the user the request acts as, nil when anonymous.
func getCtxUserID(c echo.Context) *int64 {
	if ak := getCtxAPIKey(c); ak != nil {
		return ak.KeyUserID
	}
	return nil
}
