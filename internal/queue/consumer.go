package queue

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Handler processes one consumed record. Implementations call Record.Commit
// once the record has reached a terminal outcome; uncommitted records are
// redelivered after a rebalance.
type Handler func(ctx context.Context, rec *Record)

// Record is a consumed message bound to its consumer group session so the
// handler can commit it at-least-once.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string][]byte

	session   sarama.ConsumerGroupSession
	message   *sarama.ConsumerMessage
	committed atomic.Bool
}

// Commit marks the record consumed and flushes the offset. Safe to call more
// than once; only the first call takes effect.
func (r *Record) Commit() {
	if r == nil || r.session == nil || r.message == nil {
		return
	}
	if !r.committed.CompareAndSwap(false, true) {
		return
	}
	r.session.MarkMessage(r.message, "")
	r.session.Commit()
}

// Consumer wraps a Sarama consumer group with manual offset commits and a
// rejoin loop that survives broker disruptions.
type Consumer struct {
	logger zerolog.Logger

	group   sarama.ConsumerGroup
	groupID string
	topics  []string
	handler Handler

	rejoinBackoff time.Duration

	ready atomic.Bool
}

// NewConsumer constructs a Consumer joining the supplied consumer group.
func NewConsumer(brokers []string, groupID string, topics []string, handler Handler, logger zerolog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("queue consumer: at least one broker is required")
	}
	if groupID == "" {
		return nil, errors.New("queue consumer: group id is required")
	}
	if len(topics) == 0 {
		return nil, errors.New("queue consumer: at least one topic is required")
	}
	if handler == nil {
		return nil, errors.New("queue consumer: handler is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	cfg := consumerConfig()

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("queue consumer: join group %q: %w", groupID, err)
	}

	c := &Consumer{
		logger:        logger.With().Str("component", "queue_consumer").Str("group", groupID).Logger(),
		group:         group,
		groupID:       groupID,
		topics:        topics,
		handler:       handler,
		rejoinBackoff: 2 * time.Second,
	}

	go c.consumeGroupErrors()

	return c, nil
}

// Consume runs the consume loop until the context is cancelled. Rebalances
// return from the inner Consume call and the loop rejoins.
func (c *Consumer) Consume(ctx context.Context) error {
	gh := &groupHandler{consumer: c}

	for {
		err := c.group.Consume(ctx, c.topics, gh)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			c.ready.Store(false)
			c.logger.Error().Err(err).Msg("consume loop error, rejoining")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.rejoinBackoff):
			}
		}
	}
}

// IsReady reports whether the consumer currently holds partition claims.
func (c *Consumer) IsReady() bool {
	return c.ready.Load()
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) consumeGroupErrors() {
	for err := range c.group.Errors() {
		c.logger.Error().Err(err).Msg("consumer group error")
	}
}

type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.ready.Store(true)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.consumer.ready.Store(false)
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			headers := make(map[string][]byte, len(msg.Headers))
			for _, hdr := range msg.Headers {
				headers[string(hdr.Key)] = hdr.Value
			}

			rec := &Record{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Key:       msg.Key,
				Value:     msg.Value,
				Headers:   headers,
				session:   session,
				message:   msg,
			}

			h.consumer.handler(session.Context(), rec)
		}
	}
}

func consumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	// Commits are explicit per record so redelivery covers crashed handlers.
	cfg.Consumer.Offsets.AutoCommit.Enable = false
	cfg.Consumer.Return.Errors = true
	return cfg
}
