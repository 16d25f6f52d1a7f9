package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-capacity-reservation/internal/queue"
)

// AMQPNotifier publishes notifications as persistent JSON messages to the
// durable joinrequest.events queue.  The connection is dialed on first use
// and redialed after the broker drops it.
type AMQPNotifier struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewAMQPNotifier returns a notifier for the broker at url.  No connection
// is made until the first Notify.
func NewAMQPNotifier(url string) *AMQPNotifier {
	return &AMQPNotifier{url: url}
}

func (p *AMQPNotifier) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	p.conn = conn
	return conn, nil
}

// Notify publishes n.  Errors are logged and returned so the caller can
// ignore them without interrupting the request flow.
func (p *AMQPNotifier) Notify(ctx context.Context, n queue.Notification) error {
	conn, err := p.connection()
	if err != nil {
		log.Printf("rabbitmq: %v", err)
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.NotificationQueueName, // name
		true,                        // durable
		false,                       // autoDelete
		false,                       // exclusive
		false,                       // noWait
		nil,                         // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("rabbitmq: marshal notification failed: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(n.Kind),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                          // default exchange
		queue.NotificationQueueName, // routing key = queue name
		false,                       // mandatory
		false,                       // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// Close releases the broker connection, if any.
func (p *AMQPNotifier) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
