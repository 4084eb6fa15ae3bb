package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs-labo46/ec-payments/internal/payment"
	"github.com/rs-labo46/ec-payments/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// Stripeのwebhook本文の上限
const maxWebhookBodyBytes = 64 * 1024

type webhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (payment.Event, error)
}

type eventProcessor interface {
	HandleEvent(ctx context.Context, ev payment.Event) error
}

type WebhookHandler struct {
	verifier webhookVerifier
	uc       eventProcessor
	logger   *log.Logger
}

func NewWebhookHandler(verifier webhookVerifier, uc eventProcessor, logger *log.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, uc: uc, logger: logger}
}

type WebhookAck struct {
	Received bool `json:"received"`
}

// 署名で認証するのでJWTは付けない
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/stripe", h.stripe)
}

func (h *WebhookHandler) stripe(c echo.Context) error {
	//上限+1まで読んで超えたら拒否
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if len(body) > maxWebhookBodyBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
	}

	ev, err := h.verifier.Verify(body, c.Request().Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrSecretNotConfigured):
		h.logger.Errorj(log.JSON{"msg": "webhook secret is not configured"})
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "webhook not configured"})
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.Warnj(log.JSON{"msg": "webhook signature rejected", "error": err.Error()})
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid signature"})
	case errors.Is(err, payment.ErrMalformedEvent):
		h.logger.Warnj(log.JSON{"msg": "malformed webhook event", "error": err.Error()})
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed event"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	if err := h.uc.HandleEvent(c.Request().Context(), ev); err != nil {
		//Stripeは2xx以外を再送する
		if he, ok := usecase.AsHTTPError(err); ok && he.Status >= http.StatusInternalServerError {
			h.logger.Errorj(log.JSON{"msg": "webhook processing failed", "event_id": ev.EventID(), "event_type": ev.EventType(), "error": err.Error()})
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, WebhookAck{Received: true})
}
