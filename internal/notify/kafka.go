package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaEnvelope struct {
	Namespace string    `json:"namespace,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"description"`
	Variant   string    `json:"variant,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type namespaceKey struct{}

// WithNamespace tags notifications sent with ctx with the client namespace
// they belong to. The Kafka notifier uses it as the message key.
func WithNamespace(ctx context.Context, namespace string) context.Context {
	return context.WithValue(ctx, namespaceKey{}, namespace)
}

func namespaceFrom(ctx context.Context) string {
	ns, _ := ctx.Value(namespaceKey{}).(string)
	return ns
}

// KafkaNotifier publishes notifications to a Kafka topic. Notify only
// enqueues; a single goroutine drains the queue in batches, so a slow or
// unreachable broker never holds up the cart operation that raised the
// notification. When the queue is full new notifications are dropped and
// logged. Close flushes what is queued.
type KafkaNotifier struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *slog.Logger

	queue chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

const (
	notifyQueueSize = 1024
	notifyBatchSize = 100
)

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaNotifier(writer MessageWriter, logger *slog.Logger) *KafkaNotifier {
	k := &KafkaNotifier{
		writer:  writer,
		timeout: 5 * time.Second,
		logger:  logger,
		queue:   make(chan kafka.Message, notifyQueueSize),
		done:    make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) {
	ns := namespaceFrom(ctx)
	payload, err := json.Marshal(kafkaEnvelope{
		Namespace: ns,
		Title:     n.Title,
		Body:      n.Description,
		Variant:   n.Variant,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		k.logger.ErrorContext(ctx, "failed to encode notification", "error", err)
		return
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		k.logger.WarnContext(ctx, "notifier closed, dropping notification", "title", n.Title)
		return
	}

	select {
	case k.queue <- kafka.Message{Key: []byte(ns), Value: payload}:
	default:
		k.logger.WarnContext(ctx, "notification queue full, dropping notification", "title", n.Title)
	}
}

// Close stops accepting notifications and waits until the queued ones are
// written or have failed.
func (k *KafkaNotifier) Close() {
	k.mu.Lock()
	if !k.closed {
		k.closed = true
		close(k.queue)
	}
	k.mu.Unlock()
	<-k.done
}

func (k *KafkaNotifier) run() {
	defer close(k.done)

	batch := make([]kafka.Message, 0, notifyBatchSize)
	for msg := range k.queue {
		batch = append(batch[:0], msg)
	drain:
		for len(batch) < notifyBatchSize {
			select {
			case next, ok := <-k.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		k.write(batch)
	}
}

func (k *KafkaNotifier) write(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, batch...); err != nil {
		k.logger.Error("failed to publish notifications", "count", len(batch), "error", err)
	}
}
