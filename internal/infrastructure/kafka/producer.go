package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/ml-recommender/internal/cfg"
	"github.com/DRSN-tech/ml-recommender/internal/metrics"
	"github.com/DRSN-tech/ml-recommender/internal/usecase"
	"github.com/DRSN-tech/ml-recommender/pkg/e"
	"github.com/DRSN-tech/ml-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

// recommendationServedMessage — JSON-представление события в топике.
type recommendationServedMessage struct {
	EventID   string           `json:"event_id"`
	RequestID string           `json:"request_id"`
	Timestamp int64            `json:"timestamp"`
	Sections  []sectionMessage `json:"sections"`
	Total     int              `json:"total"`
}

type sectionMessage struct {
	Granularity int `json:"granularity"`
	ClusterID   int `json:"cluster_id"`
	ClusterSize int `json:"cluster_size"`
	Returned    int `json:"returned"`
}

// Producer публикует события о выдаче. Запись асинхронная: ошибки доставки
// только логируются в Completion.
type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchSize:    100,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			for range messages {
				metrics.RecordEventPublish(err)
			}
			if err != nil {
				logger.Warnf("Kafka producer error: %s", err.Error())
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}
}

func (p *Producer) PublishRecommendationServed(ctx context.Context, event *usecase.RecommendationServed) error {
	msg := toMessage(event)
	value, err := json.Marshal(msg)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.RequestID),
		Value: value,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// EnsureTopic создаёт топик, если его ещё нет.
func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// toMessage строит сообщение события. Пустой request id заменяется на event id,
// чтобы ключ партиционирования не был пустым.
func toMessage(event *usecase.RecommendationServed) recommendationServedMessage {
	sections := make([]sectionMessage, len(event.Sections))
	for i, s := range event.Sections {
		sections[i] = sectionMessage{
			Granularity: int(s.Granularity),
			ClusterID:   s.ClusterID,
			ClusterSize: s.ClusterSize,
			Returned:    s.Returned,
		}
	}

	msg := recommendationServedMessage{
		EventID:   uuid.NewString(),
		RequestID: event.RequestID,
		Timestamp: event.Timestamp.UnixNano(),
		Sections:  sections,
		Total:     event.Total,
	}
	if msg.RequestID == "" {
		msg.RequestID = msg.EventID
	}

	return msg
}

// NopPublisher используется, когда Kafka не сконфигурирована.
type NopPublisher struct{}

func (NopPublisher) PublishRecommendationServed(context.Context, *usecase.RecommendationServed) error {
	return nil
}
