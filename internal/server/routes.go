package server

import (
	"github.com/rs-labo46/ec-payments/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health   *handler.HealthHandler
	Webhook  *handler.WebhookHandler
	Checkout *handler.CheckoutHandler
	Admin    *handler.AdminHandler
}

// authはAuthJWT。webhookとhealthzには付けない
func RegisterRoutes(e *echo.Echo, h Handlers, auth echo.MiddlewareFunc) {
	h.Health.RegisterRoutes(e)
	h.Webhook.RegisterRoutes(e)
	h.Checkout.RegisterRoutes(e, auth)
	h.Admin.RegisterRoutes(e, auth)
}
