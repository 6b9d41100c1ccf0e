// Package amqp delivers token notices to RabbitMQ queues, where a mailer
// picks them up.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"darim/internal/domain"
	"darim/internal/logging"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ domain.Notifier = (*Notifier)(nil)

const (
	SignUpQueue        = "darim.signup_token"
	PasswordResetQueue = "darim.password_token"
)

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Channel() (channel, error)
	Close() error
}

type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) Channel() (channel, error) {
	return c.Connection.Channel()
}

var dial = func(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// Notifier publishes one persistent JSON message per notice. Each publish
// opens its own connection.
type Notifier struct {
	url string
	log logging.Logger
	now func() time.Time
}

// NewNotifier creates a Notifier for the broker at url.
func NewNotifier(url string, log logging.Logger) *Notifier {
	return &Notifier{url: url, log: log, now: time.Now}
}

type signUpMessage struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Pin       string    `json:"pin"`
	ExpiresAt time.Time `json:"expires_at"`
}

type passwordResetMessage struct {
	Email             string    `json:"email"`
	TokenID           string    `json:"token_id"`
	TemporaryPassword string    `json:"temporary_password"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// SignUpTokenIssued publishes the registration pin.
func (n *Notifier) SignUpTokenIssued(ctx context.Context, notice domain.SignUpNotice) error {
	return n.publish(ctx, SignUpQueue, signUpMessage(notice))
}

// PasswordTokenIssued publishes the reset token and temporary password.
func (n *Notifier) PasswordTokenIssued(ctx context.Context, notice domain.PasswordResetNotice) error {
	return n.publish(ctx, PasswordResetQueue, passwordResetMessage(notice))
}

func (n *Notifier) publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}

	conn, err := dial(n.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	n.log.Debug(ctx, "notice published", "queue", queue)
	return nil
}
