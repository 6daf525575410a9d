package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// ProofPublisher hands a payment proof to whoever verifies it.
type ProofPublisher interface {
	Publish(ctx context.Context, proof *PaymentProof) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaProofPublisher writes proofs to the payment-proofs topic, keyed by
// proof id.
type KafkaProofPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaProofPublisher(writer MessageWriter) *KafkaProofPublisher {
	return &KafkaProofPublisher{writer: writer}
}

func (p *KafkaProofPublisher) Publish(ctx context.Context, proof *PaymentProof) error {
	payload, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal proof: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(proof.ID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write to kafka: %w", err)
	}
	return nil
}

// LogProofPublisher only logs proofs. Used when no broker is configured.
type LogProofPublisher struct {
	logger *slog.Logger
}

func NewLogProofPublisher(logger *slog.Logger) *LogProofPublisher {
	return &LogProofPublisher{logger: logger}
}

func (p *LogProofPublisher) Publish(ctx context.Context, proof *PaymentProof) error {
	p.logger.InfoContext(ctx, "payment proof submitted",
		"proof_id", proof.ID,
		"namespace", proof.Namespace,
		"transaction_id", proof.TransactionID,
		"total", proof.Total.StringFixed(2),
		"lines", len(proof.Lines),
	)
	return nil
}
