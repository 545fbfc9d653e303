package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPQueue is a Queue on a durable RabbitMQ queue.
// Messages are persistent JSON intents; consumers ack manually.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
	log  *zap.Logger

	// Channel publishes are serialized.
	pubMu sync.Mutex
}

func DialAMQP(url, queueName string, log *zap.Logger) (*AMQPQueue, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queueName, err)
	}
	return &AMQPQueue{conn: conn, ch: ch, name: q.Name, log: log}, nil
}

func (q *AMQPQueue) Publish(ctx context.Context, in Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	return q.ch.Publish(
		"",     // default exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    in.ID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

func (q *AMQPQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	msgs, err := q.ch.Consume(
		q.name,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("amqp consume: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var in Intent
				if err := json.Unmarshal(m.Body, &in); err != nil {
					q.log.Warn("dropping malformed intent", zap.Error(err), zap.String("message_id", m.MessageId))
					_ = m.Ack(false)
					continue
				}
				d := Delivery{
					Intent: in,
					ack:    func() error { return m.Ack(false) },
					nack:   func(requeue bool) error { return m.Nack(false, requeue) },
				}
				select {
				case out <- d:
				case <-ctx.Done():
					_ = m.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *AMQPQueue) Close() error {
	chErr := q.ch.Close()
	connErr := q.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}
