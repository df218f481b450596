package events

import (
	"context"
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpDispatcher publishes events to a RabbitMQ topic exchange while still
// delivering them to in-process subscribers.
type amqpDispatcher struct {
	local    Dispatcher
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *zap.Logger
}

// NewAMQPDispatcher connects to RabbitMQ and declares the topic exchange.
// Events fan out to both local subscribers and the exchange with routing key
// "workflow.<event_type>".
func NewAMQPDispatcher(url, exchange string, logger *zap.Logger) (Dispatcher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &amqpDispatcher{
		local:    NewInMemoryDispatcher(),
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish delivers to local subscribers, then to the exchange. A broker
// failure is logged but does not fail the publish: side-effect delivery is
// best effort.
func (d *amqpDispatcher) Publish(ctx context.Context, event Event) error {
	if err := d.local.Publish(ctx, event); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	publishErr := d.channel.PublishWithContext(ctx, d.exchange, "workflow."+string(event.Type), false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if publishErr != nil {
		d.logger.Warn("amqp publish failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(publishErr))
	}
	return nil
}

// Subscribe registers an in-process handler.
func (d *amqpDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.local.Subscribe(eventType, handler)
}

// Close releases the AMQP connection.
func (d *amqpDispatcher) Close() error {
	if err := d.channel.Close(); err != nil {
		d.logger.Warn("close amqp channel", zap.Error(err))
	}
	return d.conn.Close()
}
