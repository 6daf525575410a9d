package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/marketcart/internal/domain"
	"github.com/fjod/marketcart/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartState is what checkout needs from the cart manager.
type CartState interface {
	Cart() domain.Cart
	CartTotal() decimal.Decimal
	CheckoutCart(ctx context.Context, submit func(domain.Cart) error) error
}

type SummaryLine struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Summary struct {
	Lines    []SummaryLine   `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	PayeeUPI string          `json:"payee_upi,omitempty"`
}

type Share struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// PaymentProof is the shopper's claim of an out-of-band payment. A human
// verifies it against the payee account; nothing here settles money.
type PaymentProof struct {
	ID            string            `json:"id"`
	Namespace     string            `json:"namespace"`
	TransactionID string            `json:"transaction_id"`
	Lines         []domain.CartLine `json:"lines"`
	Total         decimal.Decimal   `json:"total"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// Service runs the manual payment checkout: show the order, let the shopper
// share their transaction id with the seller, then submit and clear the cart.
type Service struct {
	publisher ProofPublisher
	notifier  notify.Notifier
	payeeUPI  string
	now       func() time.Time
}

func NewService(publisher ProofPublisher, notifier notify.Notifier, payeeUPI string) *Service {
	return &Service{
		publisher: publisher,
		notifier:  notifier,
		payeeUPI:  payeeUPI,
		now:       time.Now,
	}
}

func (s *Service) Summary(c CartState) (*Summary, error) {
	lines := c.Cart()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	summary := &Summary{
		Lines:    make([]SummaryLine, 0, len(lines)),
		Shipping: decimal.Zero,
		PayeeUPI: s.payeeUPI,
	}
	for _, line := range lines {
		summary.Lines = append(summary.Lines, SummaryLine{
			ProductID: line.ProductID,
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal(),
		})
	}
	summary.Subtotal = c.CartTotal()
	summary.Total = summary.Subtotal.Add(summary.Shipping)
	return summary, nil
}

// ShareLink builds the message the shopper sends to the seller for
// verification, plus a wa.me link carrying it.
func (s *Service) ShareLink(ctx context.Context, c CartState, transactionID string) (*Share, error) {
	txID := strings.TrimSpace(transactionID)
	if txID == "" {
		s.warn(ctx, "Transaction ID required", "Please enter your transaction ID before sharing")
		return nil, ErrTransactionIDRequired
	}
	if len(c.Cart()) == 0 {
		return nil, ErrEmptyCart
	}

	message := fmt.Sprintf(
		"Hi! I have completed the payment for my order.\n\nOrder Total: $%s\nTransaction ID: %s\n\nPlease verify and confirm my order.",
		c.CartTotal().StringFixed(2), txID,
	)
	share := &Share{
		Message: message,
		URL:     "https://wa.me/?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20"),
	}

	s.notifier.Notify(ctx, notify.Notification{
		Title:       "Opening WhatsApp",
		Description: "Share your transaction ID with the seller",
		Variant:     notify.VariantDefault,
	})
	return share, nil
}

// Complete submits the payment proof and clears the cart. The cart is kept
// when the proof cannot be published.
//
// Delivery is at least once: if clearing fails after the proof went out, the
// cart is kept and a retry publishes again. The proof id is derived from the
// namespace, transaction id and lines, so the retry carries the same id and
// consumers can drop the duplicate.
func (s *Service) Complete(ctx context.Context, namespace string, c CartState, transactionID string) (*PaymentProof, error) {
	txID := strings.TrimSpace(transactionID)
	if txID == "" {
		s.warn(ctx, "Transaction ID required", "Please enter your transaction ID")
		return nil, ErrTransactionIDRequired
	}

	var proof *PaymentProof
	err := c.CheckoutCart(ctx, func(lines domain.Cart) error {
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		p := &PaymentProof{
			ID:            proofID(namespace, txID, lines),
			Namespace:     namespace,
			TransactionID: txID,
			Lines:         lines,
			Total:         lines.Total(),
			SubmittedAt:   s.now().UTC(),
		}
		if err := s.publisher.Publish(ctx, p); err != nil {
			return fmt.Errorf("publish payment proof: %w", err)
		}
		proof = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Notification{
		Title:       "Order placed successfully!",
		Description: "You will receive a confirmation once payment is verified",
		Variant:     notify.VariantDefault,
	})
	return proof, nil
}

func proofID(namespace, txID string, lines domain.Cart) string {
	name, _ := json.Marshal(struct {
		Namespace string      `json:"ns"`
		TxID      string      `json:"tx"`
		Lines     domain.Cart `json:"lines"`
	}{namespace, txID, lines})
	return uuid.NewSHA1(uuid.NameSpaceOID, name).String()
}

func (s *Service) warn(ctx context.Context, title, description string) {
	s.notifier.Notify(ctx, notify.Notification{
		Title:       title,
		Description: description,
		Variant:     notify.VariantDestructive,
	})
}
