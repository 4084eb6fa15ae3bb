package payment

// プロバイダのイベント種別
const (
	TypeCheckoutCompleted          = "checkout.session.completed"
	TypeCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	TypeCheckoutAsyncFailed        = "checkout.session.async_payment_failed"
	TypeCheckoutExpired            = "checkout.session.expired"
	paymentStatusPaid              = "paid"
	paymentStatusNoPaymentRequired = "no_payment_required"
)

// 検証済みのWebhookイベント。
// 実装はこのパッケージの型だけ（CheckoutCompleted / CheckoutAsyncSucceeded / CheckoutFailed / Unhandled）。
type Event interface {
	EventID() string
	EventType() string
	Payload() []byte
	isEvent()
}

// 全イベント共通
type Meta struct {
	ID   string
	Type string
	Raw  []byte
}

func (m Meta) EventID() string   { return m.ID }
func (m Meta) EventType() string { return m.Type }
func (m Meta) Payload() []byte   { return m.Raw }

// checkout sessionのうち確定処理で使う部分
type CheckoutSession struct {
	SessionID         string
	PaymentIntentID   string
	PaymentStatus     string
	AmountTotal       int64
	Currency          string
	ClientReferenceID string
}

// 支払い済みか（非同期決済はunpaidで届く）
func (s CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == paymentStatusPaid || s.PaymentStatus == paymentStatusNoPaymentRequired
}

// checkout.session.completed
type CheckoutCompleted struct {
	Meta
	Session CheckoutSession
}

// checkout.session.async_payment_succeeded
type CheckoutAsyncSucceeded struct {
	Meta
	Session CheckoutSession
}

// checkout.session.expired / checkout.session.async_payment_failed
type CheckoutFailed struct {
	Meta
	Session CheckoutSession
	Reason  string
}

// 扱わないイベント。受信だけしてACKする
type Unhandled struct {
	Meta
}

func (CheckoutCompleted) isEvent()      {}
func (CheckoutAsyncSucceeded) isEvent() {}
func (CheckoutFailed) isEvent()         {}
func (Unhandled) isEvent()              {}
