package repository

import (
	"context"
	"errors"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	pkgkafka "FinScore/pkg/kafka"
)

// KafkaLifecyclePublisher writes lifecycle events keyed by model key, so events
// for one model stay ordered within a partition.
type KafkaLifecyclePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.LifecyclePublisher = (*KafkaLifecyclePublisher)(nil)

func NewKafkaLifecyclePublisher(producer *pkgkafka.Producer, topic string) *KafkaLifecyclePublisher {
	return &KafkaLifecyclePublisher{producer: producer, topic: topic}
}

func (p *KafkaLifecyclePublisher) PublishLifecycleEvent(ctx context.Context, ev models.LifecycleEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.ModelKey), ev)
}

func (p *KafkaLifecyclePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []domrepo.LifecyclePublisher

var _ domrepo.LifecyclePublisher = MultiPublisher(nil)

func (m MultiPublisher) PublishLifecycleEvent(ctx context.Context, ev models.LifecycleEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishLifecycleEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
