package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"

	defaultDialTimeout = 5 * time.Second
)

var errNoBrokers = errors.New("kafka brokers are required")

// Client owns the shared writer and builds consumer-group readers.
type Client struct {
	brokers []string
	writer  *kafka.Writer
	readers []*kafka.Reader
}

// NewClient prepares a writer for the configured brokers and verifies one of
// them answers.
func NewClient(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Client, error) {
	brokers := cleanBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}

	c := &Client{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}

	if err := c.Ping(ctx); err != nil {
		_ = c.writer.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "brokers", strings.Join(brokers, ",")), "kafka client initialized")
	}
	return c, nil
}

func cleanBrokers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Ping dials the first reachable broker.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || len(c.brokers) == 0 {
		return errors.New("kafka client not initialized")
	}
	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	var errs error
	for _, broker := range c.brokers {
		conn, err := kafka.DialContext(dialCtx, "tcp", broker)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dial %s: %w", broker, err))
			continue
		}
		_ = conn.Close()
		return nil
	}
	return errs
}

// Message is a transport-neutral record handed to the writer.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Publish writes one message and waits for the broker acknowledgement.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	if c == nil || c.writer == nil {
		return errors.New("kafka writer not initialized")
	}
	if msg.Topic == "" {
		return errors.New("topic is required")
	}
	return c.writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: toHeaders(msg.Headers),
	})
}

// Reader builds a consumer-group reader across topics. The client closes it
// on Close.
func (c *Client) Reader(groupID string, topics []string) *kafka.Reader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	c.readers = append(c.readers, r)
	return r
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var err error
	for _, r := range c.readers {
		err = multierr.Append(err, r.Close())
	}
	if c.writer != nil {
		err = multierr.Append(err, c.writer.Close())
	}
	return err
}

func toHeaders(in map[string]string) []kafka.Header {
	if len(in) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(in))
	for k, v := range in {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

// HeaderValue returns the first header named key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
