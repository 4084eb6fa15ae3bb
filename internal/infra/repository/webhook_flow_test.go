package repository_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	"github.com/rs-labo46/ec-payments/internal/handler"
	"github.com/rs-labo46/ec-payments/internal/infra/logging"
	"github.com/rs-labo46/ec-payments/internal/payment"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_flow_secret"

// 署名検証→確定処理→DBまで本物でつなぐ
func newWebhookFlow(t *testing.T, gdb *gorm.DB) *echo.Echo {
	t.Helper()
	e := echo.New()
	handler.NewWebhookHandler(
		payment.NewStripeVerifier(webhookSecret, 5*time.Minute),
		newSettlement(t, gdb),
		logging.NewWithOutput("test", "debug", &bytes.Buffer{}),
	).RegisterRoutes(e)
	return e
}

func completedBody(eventID, sessionID string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": %q,
    "object": "checkout.session",
    "payment_intent": "pi_flow",
    "payment_status": "paid",
    "amount_total": 2000,
    "currency": "jpy"
  }}
}`, eventID, sessionID))
}

func signBody(body []byte, secret string) string {
	at := time.Now()
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(webhook.ComputeSignature(at, body, secret)))
}

func sendWebhook(e *echo.Echo, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Stripe-Signature", sig)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func Test_WebhookFlow_BadSignatureChangesNothing(t *testing.T) {
	gdb := openTestDB(t)
	seedVariant(t, gdb, 1, 5)
	o, txn := seedPendingOrder(t, gdb, 7, "cs_flow", now, seedLine{1, 2, 1000})
	e := newWebhookFlow(t, gdb)

	body := completedBody("evt_flow", "cs_flow")
	tampered := bytes.Replace(body, []byte(`"amount_total": 2000`), []byte(`"amount_total": 1`), 1)
	require.NotEqual(t, body, tampered)

	cases := map[string]struct {
		body []byte
		sig  string
	}{
		"tampered body": {tampered, signBody(body, webhookSecret)},
		"wrong secret":  {body, signBody(body, "whsec_other")},
		"no signature":  {body, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := sendWebhook(e, tc.body, tc.sig)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"invalid signature"}`, rec.Body.String())
		})
	}

	assert.Equal(t, model.TransactionStatusPending, reload[model.Transaction](t, gdb, txn.ID).Status)
	assert.Equal(t, model.OrderStatusPending, reload[model.Order](t, gdb, o.ID).Status)
	assert.Equal(t, int64(5), stockOf(t, gdb, 1))
	assert.Zero(t, count(t, gdb, &model.StockMovement{}, ""))
	assert.Zero(t, count(t, gdb, &model.AuditLog{}, ""))
	assert.Zero(t, count(t, gdb, &model.WebhookEvent{}, ""))

	//正しく署名された同じイベントは確定する
	rec := sendWebhook(e, body, signBody(body, webhookSecret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.TransactionStatusCompleted, reload[model.Transaction](t, gdb, txn.ID).Status)
	assert.Equal(t, int64(3), stockOf(t, gdb, 1))

	var ev model.WebhookEvent
	require.NoError(t, gdb.WithContext(context.Background()).First(&ev, "event_id = ?", "evt_flow").Error)
	assert.Equal(t, "cs_flow", ev.SessionID)
}
