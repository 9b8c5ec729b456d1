package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default queue name
	DefaultQueueName = "task_reclassify_jobs"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "task_reclassify_jobs_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "task_jobs"
	// DefaultDelayedExchangeName is the default delayed exchange name (requires plugin)
	DefaultDelayedExchangeName = "task_jobs_delayed"
	// DefaultWaitQueueName parks delayed jobs until their TTL dead-letters them
	// back to the work queue. Used when the delayed exchange plugin is missing.
	DefaultWaitQueueName = "task_reclassify_jobs_wait"

	jobsRoutingKey = "jobs"
	dlqRoutingKey  = "dlq"
	waitRoutingKey = "wait"
)

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	queueName           string
	dlqName             string
	waitQueueName       string
	exchangeName        string
	delayedExchangeName string
	delayed             bool
	logger              *zap.Logger
}

// NewRabbitMQQueue connects to amqpURL and declares the job topology
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		waitQueueName:       DefaultWaitQueueName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
		logger:              logger,
	}

	if err := queue.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// binding attaches a queue to an exchange under a routing key
type binding struct {
	queue, key, exchange string
}

// setup declares the topology: a direct exchange routing "jobs" to the work
// queue and "dlq" to the dead letter queue, plus the optional delayed
// exchange from the rabbitmq_delayed_message_exchange plugin.
func (q *RabbitMQQueue) setup() error {
	if err := q.declareDelayedExchange(); err != nil {
		return err
	}

	if err := q.channel.ExchangeDeclare(q.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{name: q.dlqName},
		{name: q.queueName, args: amqp.Table{
			"x-dead-letter-exchange":    q.exchangeName,
			"x-dead-letter-routing-key": dlqRoutingKey,
		}},
		{name: q.waitQueueName, args: amqp.Table{
			"x-dead-letter-exchange":    q.exchangeName,
			"x-dead-letter-routing-key": jobsRoutingKey,
		}},
	}
	for _, decl := range queues {
		if _, err := q.channel.QueueDeclare(decl.name, true, false, false, false, decl.args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", decl.name, err)
		}
	}

	bindings := []binding{
		{queue: q.dlqName, key: dlqRoutingKey, exchange: q.exchangeName},
		{queue: q.queueName, key: jobsRoutingKey, exchange: q.exchangeName},
		{queue: q.waitQueueName, key: waitRoutingKey, exchange: q.exchangeName},
	}
	if q.delayed {
		bindings = append(bindings, binding{queue: q.queueName, key: jobsRoutingKey, exchange: q.delayedExchangeName})
	}
	for _, b := range bindings {
		if err := q.channel.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// declareDelayedExchange records whether delayed delivery is available. A
// broker without the plugin closes the channel, which is reopened here.
func (q *RabbitMQQueue) declareDelayedExchange() error {
	err := q.channel.ExchangeDeclare(
		q.delayedExchangeName,
		"x-delayed-message",
		true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"},
	)
	q.delayed = err == nil
	if err == nil {
		return nil
	}

	q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
	if q.channel.IsClosed() {
		ch, openErr := q.conn.Channel()
		if openErr != nil {
			return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
		}
		q.channel = ch
	}
	return nil
}

// Enqueue adds a job to the queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	exchangeName, routingKey, publishing, err := q.publishingFor(job, time.Now())
	if err != nil {
		return err
	}

	err = q.channel.PublishWithContext(
		ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// publishingFor encodes job and picks its route. A job due later goes through
// the delayed exchange when available and through the wait queue otherwise.
func (q *RabbitMQQueue) publishingFor(job *Job, now time.Time) (string, string, amqp.Publishing, error) {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return "", "", amqp.Publishing{}, fmt.Errorf("failed to marshal job: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         jobJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
	}

	if job.NotAfter != nil {
		if ttl := job.NotAfter.Sub(now); ttl > 0 {
			publishing.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}

	exchangeName, routingKey := q.exchangeName, jobsRoutingKey
	if job.NotBefore != nil {
		if delay := job.NotBefore.Sub(now); delay > 0 {
			if q.delayed {
				exchangeName = q.delayedExchangeName
				publishing.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
			} else {
				// The broker drops the expiration when it dead-letters the
				// message, so NotAfter is enforced by the consumer alone.
				routingKey = waitRoutingKey
				publishing.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
			}
		}
	}

	return exchangeName, routingKey, publishing, nil
}

// Consume returns a channel of messages from the queue using async delivery.
// Expired jobs are dead-lettered and jobs before their NotBefore are requeued.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	// prefetchCount=1 gives fair dispatch across workers.
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack (false = manual ack required)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					_ = delivery.Nack(false, false)
					q.logger.Warn("job_decode_failed", zap.String("message_id", delivery.MessageId), zap.Error(err))
					continue
				}

				now := time.Now()
				if job.IsExpired(now) {
					_ = delivery.Nack(false, false)
					q.logger.Info("job_expired", zap.String("job_id", job.ID.String()))
					continue
				}
				if !job.ShouldProcess(now) {
					_ = delivery.Nack(false, true)
					continue
				}

				msg := &Message{
					Job:         &job,
					DeliveryTag: delivery.DeliveryTag,
					Channel:     consumeCh,
				}

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// HealthCheck reports an error when the broker connection or publish channel is closed
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	if q.channel == nil || q.channel.IsClosed() {
		return fmt.Errorf("rabbitmq channel closed")
	}
	return nil
}

// PurgeOlderThan acks DLQ messages published more than retention ago.
// Younger messages are left unacked and return to the queue when the
// dedicated channel closes.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open purge channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	state, err := ch.QueueDeclarePassive(q.dlqName, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	purged := 0
	for i := 0; i < state.Messages; i++ {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		delivery, ok, err := ch.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			break
		}
		if deadLetteredAt(delivery).Before(cutoff) {
			if err := delivery.Ack(false); err != nil {
				return purged, fmt.Errorf("failed to ack DLQ message: %w", err)
			}
			purged++
		}
	}
	return purged, nil
}

// deadLetteredAt prefers the broker's x-death time over the publish timestamp.
func deadLetteredAt(d amqp.Delivery) time.Time {
	if deaths, ok := d.Headers["x-death"].([]interface{}); ok && len(deaths) > 0 {
		if entry, ok := deaths[0].(amqp.Table); ok {
			if t, ok := entry["time"].(time.Time); ok {
				return t
			}
		}
	}
	return d.Timestamp
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
