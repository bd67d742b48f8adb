package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/orientati/user-service/config"
	"github.com/orientati/user-service/pkg/events"
	"github.com/orientati/user-service/pkg/helpers"
	"github.com/orientati/user-service/pkg/mailer"
	mailtpl "github.com/orientati/user-service/pkg/mailer/templates"
)

const (
	prefetchCount = 16
	deliverWithin = 15 * time.Second
	drainWait     = 2 * time.Second
)

// emailEvent is the envelope shape consumed from the email topic.
type emailEvent struct {
	Type string              `json:"type"`
	Data events.EmailPayload `json:"data"`
}

type worker struct {
	mg     *mailer.Mailgun
	logger *logrus.Logger
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if !cfg.MailSendEnabled {
		logger.Warn("MAIL_SEND_ENABLED=false, exiting without consuming")
		return
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("mailgun credentials missing")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.WithError(err).Fatal("broker dial failed")
	}
	defer func() { _ = conn.Close() }()

	msgs, ch, err := subscribe(conn, cfg.RabbitMQEmailQueue)
	if err != nil {
		logger.WithError(err).Fatal("queue setup failed")
	}

	w := &worker{
		mg:     mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender),
		logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			w.process(ctx, msg)
		}
	}()

	logger.WithField("queue", cfg.RabbitMQEmailQueue).Info("email worker consuming")
	<-ctx.Done()
	logger.Info("email worker stopping")

	// Closing the channel ends the delivery stream; give in-flight
	// messages a moment to finish.
	_ = ch.Close()
	select {
	case <-done:
	case <-time.After(drainWait):
	}
}

// subscribe mirrors the publisher's exchange declaration so either process
// may start first, then binds a durable queue to every routing key on the
// email topic.
func subscribe(conn *amqp.Connection, queue string) (<-chan amqp.Delivery, *amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(events.TopicEmail, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.QueueBind(queue, "#", events.TopicEmail, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return msgs, ch, nil
}

// process renders and sends one queued email. Payloads that can never
// succeed are dropped; delivery failures are requeued for another attempt.
func (w *worker) process(ctx context.Context, msg amqp.Delivery) {
	var evt emailEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		w.logger.WithError(err).Error("undecodable message dropped")
		_ = msg.Nack(false, false)
		return
	}
	job := evt.Data
	if job.To == "" || job.TemplateName == "" {
		w.logger.WithField("type", evt.Type).Error("incomplete email payload dropped")
		_ = msg.Nack(false, false)
		return
	}

	text, html, err := mailtpl.Render(job.TemplateName, job.Context)
	if err != nil {
		w.logger.WithError(err).WithField("template", job.TemplateName).Error("render failed, dropping")
		_ = msg.Nack(false, false)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, deliverWithin)
	defer cancel()
	if err := w.mg.Send(sendCtx, job.To, job.Subject, text, html); err != nil {
		w.logger.WithError(err).WithField("to", job.To).Error("send failed, requeueing")
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
