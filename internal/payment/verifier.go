package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	//シークレット未設定（500）
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	//署名不一致・ヘッダ不正・タイムスタンプ切れ（400）
	ErrInvalidSignature = errors.New("invalid webhook signature")
	//署名は正しいが中身が読めない（400）
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// Stripeの署名検証
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(secret string, tolerance time.Duration) *StripeVerifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeVerifier{secret: secret, tolerance: tolerance}
}

// 生のbodyとStripe-Signatureヘッダを検証して型付きイベントにする。
// 失敗したら何も返さない（fail closed）。
func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	if v.secret == "" {
		return nil, ErrSecretNotConfigured
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return toEvent(ev, payload)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func toEvent(ev stripe.Event, raw []byte) (Event, error) {
	meta := Meta{ID: ev.ID, Type: string(ev.Type), Raw: raw}
	if meta.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}

	switch meta.Type {
	case TypeCheckoutCompleted:
		s, err := decodeSession(ev)
		if err != nil {
			return nil, err
		}
		return CheckoutCompleted{Meta: meta, Session: s}, nil

	case TypeCheckoutAsyncSucceeded:
		s, err := decodeSession(ev)
		if err != nil {
			return nil, err
		}
		return CheckoutAsyncSucceeded{Meta: meta, Session: s}, nil

	case TypeCheckoutExpired, TypeCheckoutAsyncFailed:
		s, err := decodeSession(ev)
		if err != nil {
			return nil, err
		}
		reason := "expired"
		if meta.Type == TypeCheckoutAsyncFailed {
			reason = "async_payment_failed"
		}
		return CheckoutFailed{Meta: meta, Session: s, Reason: reason}, nil

	default:
		return Unhandled{Meta: meta}, nil
	}
}

func decodeSession(ev stripe.Event) (CheckoutSession, error) {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return CheckoutSession{}, fmt.Errorf("%w: missing data.object", ErrMalformedEvent)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if cs.ID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: missing session id", ErrMalformedEvent)
	}

	out := CheckoutSession{
		SessionID:         cs.ID,
		PaymentStatus:     string(cs.PaymentStatus),
		AmountTotal:       cs.AmountTotal,
		Currency:          string(cs.Currency),
		ClientReferenceID: cs.ClientReferenceID,
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	return out, nil
}
