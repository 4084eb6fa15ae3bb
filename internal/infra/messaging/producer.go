package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// kafka.Writerのうち使う部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// order.paidを非同期で送るProducer。
// Publishはinboxに積むだけで、書き込みはStartしたgoroutineがやる。
type Producer struct {
	w       messageWriter
	inbox   chan kafka.Message
	service string
	logger  *log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewProducer(brokers []string, topic string, service string, buf int, logger *log.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, service, buf, logger)
}

func newProducer(w messageWriter, service string, buf int, logger *log.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		service: service,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				p.logger.Errorj(log.JSON{"msg": "kafka write failed", "key": string(m.Key), "error": err.Error()})
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			p.logger.Warnj(log.JSON{"msg": "kafka writer close failed", "error": err.Error()})
		}
	}()
}

// 注文IDをキーにして同じ注文のイベント順を保つ
func (p *Producer) PublishOrderPaid(ctx context.Context, in OrderPaidPayload) error {
	b, err := BuildOrderPaid(p.service, in, time.Now().UTC())
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(in.OrderID, 10)),
		Value: b,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(EventOrderPaid)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inboxを閉じて残りを書き切るまで待つ
func (p *Producer) Close() {
	p.closeOnce.Do(func() { close(p.inbox) })
	<-p.done
}

// 金額は最小通貨単位から10進文字列にする（jpyは小数なし）
func FormatAmount(minor int64, currency string) string {
	exp := int32(-2)
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd":
		exp = 0
	}
	return decimal.New(minor, exp).StringFixed(-exp)
}

func BuildOrderPaid(service string, in OrderPaidPayload, now time.Time) ([]byte, error) {
	if in.Amount == "" {
		in.Amount = FormatAmount(in.AmountMinor, in.Currency)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal order.paid payload: %w", err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    now,
		Producer:      service,
		CorrelationID: in.SessionID,
		Payload:       payload,
	}
	return json.Marshal(env)
}
