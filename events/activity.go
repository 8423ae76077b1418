package events

import (
	"context"
	"encoding/json"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"madrasah-backend/entity"
	"madrasah-backend/log"
)

func (e *AMQP) Publish(ctx context.Context, a entity.Activity) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}

	rch, err := e.Conn.Channel()
	if err != nil {
		return err
	}
	defer rch.Close()

	return rch.Publish(ActivityExchange, a.RoutingKey(), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   a.ID,
		Timestamp:   a.Time,
		Body:        b,
	})
}

// Consume binds a private queue to the activity exchange with the given
// routing pattern ("#" for everything, "notices.*" for one board) and
// delivers decoded activities until ctx is done.
func (e *AMQP) Consume(ctx context.Context, pattern string) (<-chan entity.Activity, error) {
	rch, err := e.Conn.Channel()
	if err != nil {
		return nil, err
	}
	q, err := rch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		rch.Close()
		return nil, err
	}

	err = rch.QueueBind(
		q.Name,
		pattern,
		ActivityExchange,
		false,
		nil,
	)
	if err != nil {
		rch.Close()
		return nil, err
	}

	msgs, err := rch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		rch.Close()
		return nil, err
	}

	ch := make(chan entity.Activity)
	go func() {
		defer close(ch)
		defer func() {
			if err := rch.Close(); err != nil {
				log.Logger.Error("unable to close channel", zap.Error(err))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				a, err := decode(d.Body)
				if err != nil {
					log.Logger.Error("unable to decode event", zap.Error(err))
					continue
				}

				select {
				case ch <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func decode(body []byte) (entity.Activity, error) {
	var a entity.Activity
	err := json.Unmarshal(body, &a)
	return a, err
}
