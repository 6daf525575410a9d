package domain

import "github.com/shopspring/decimal"

// CartLine is one product's quantity entry in the shopper's in-progress order.
type CartLine struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	ImageRef  string          `json:"imageRef,omitempty"`
	Quantity  int             `json:"quantity"`
	SellerID  string          `json:"sellerId"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds at most one line per product id, every line with quantity >= 1.
type Cart []CartLine

// ProductDescriptor is the subset of a catalog product the cart needs.
type ProductDescriptor struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	ImageRef string
	SellerID string
}

func (c Cart) Index(productID string) int {
	for i, line := range c {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c {
		total = total.Add(line.LineTotal())
	}
	return total
}

func (c Cart) Count() int {
	count := 0
	for _, line := range c {
		count += line.Quantity
	}
	return count
}

// Clone returns a copy that never aliases c and is never nil.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Normalize drops lines that break the cart invariants: empty product ids,
// quantities below one and repeated product ids (the first one wins).
func (c Cart) Normalize() Cart {
	out := make(Cart, 0, len(c))
	seen := make(map[string]struct{}, len(c))
	for _, line := range c {
		if line.ProductID == "" || line.Quantity < 1 {
			continue
		}
		if _, dup := seen[line.ProductID]; dup {
			continue
		}
		seen[line.ProductID] = struct{}{}
		out = append(out, line)
	}
	return out
}
