package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel は AMQP チャネルのうちレシート送信で使う操作
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer はブローカーへ接続してチャネルと接続のクローザーを返す
type Dialer func(url string) (Channel, io.Closer, error)

// DialAMQP は amqp091-go で接続する Dialer
func DialAMQP(url string) (Channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("AMQP接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("AMQPチャネルの作成に失敗: %w", err)
	}
	return ch, conn, nil
}

// Message はキューに送るレシートのメッセージ
type Message struct {
	BookingID string    `json:"booking_id"`
	Receipt   string    `json:"receipt"`
	IssuedAt  time.Time `json:"issued_at"`
}

// AMQPSink はレシートを RabbitMQ の永続キューへ送る
// 送信ごとに接続し、失敗してもリクエストの処理は続けられるようエラーを返すだけにする
type AMQPSink struct {
	url   string
	queue string
	dial  Dialer
	now   func() time.Time
}

// NewAMQPSink は AMQPSink を作成する。dial が nil の場合は DialAMQP を使う
func NewAMQPSink(url, queue string, dial Dialer) *AMQPSink {
	if dial == nil {
		dial = DialAMQP
	}
	return &AMQPSink{url: url, queue: queue, dial: dial, now: time.Now}
}

// Name はメトリクス用の出力先名
func (s *AMQPSink) Name() string { return "amqp" }

// Export はレシートをキューへ送る
func (s *AMQPSink) Export(ctx context.Context, bookingID string, text string) error {
	ch, conn, err := s.dial(s.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("キュー宣言に失敗: %w", err)
	}

	body, err := json.Marshal(Message{BookingID: bookingID, Receipt: text, IssuedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("メッセージのエンコードに失敗: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    bookingID,
		Timestamp:    s.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
		return fmt.Errorf("レシートの送信に失敗 (booking=%s): %w", bookingID, err)
	}
	return nil
}
