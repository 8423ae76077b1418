package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"madrasah-backend/entity"
	"madrasah-backend/log"
)

const ActivityExchange = "activity"

// Publisher fans committed writes out to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, a entity.Activity) error
	Close() error
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, entity.Activity) error { return nil }
func (Nop) Close() error                                   { return nil }

type AMQP struct {
	Conn *amqp.Connection
}

// Dial connects to RabbitMQ, retrying with a doubling delay, and declares the
// activity topic exchange.
func Dial(ctx context.Context, connString string) (*AMQP, error) {
	log.Logger.Info("Trying to connect to rabbitmq...")

	var conn *amqp.Connection
	t := time.Second
	for i := 0; i < 6; i++ {
		var err error
		conn, err = amqp.Dial(connString)
		if err == nil {
			break
		}
		if i == 5 {
			return nil, err
		}
		log.Logger.Debug("rabbitmq dial failed", zap.Error(err), zap.Duration("retryIn", t))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t):
		}
		t *= 2
	}
	log.Logger.Info("Connected to rabbitmq")

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		ActivityExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &AMQP{Conn: conn}, nil
}

func (e *AMQP) Close() error {
	return e.Conn.Close()
}

// NewActivity stamps an activity with a fresh id and the current time.
func NewActivity(collection string, action entity.Action, id primitive.ObjectID) entity.Activity {
	return entity.Activity{
		ID:         uuid.New().String(),
		Collection: collection,
		Action:     action,
		DocumentID: id,
		Time:       time.Now().UTC(),
	}
}
