package cart

import "github.com/fjod/marketcart/internal/domain"

// Change reports what a transition did to a collection.
type Change int

const (
	ChangeNone Change = iota
	ChangeAdded
	ChangeIncremented
	ChangeQuantitySet
	ChangeRemoved
	ChangeCleared
)

// The transitions below are pure: they never mutate their input, never
// persist and never notify. Returned collections do not alias the input.

func addLine(c domain.Cart, p domain.ProductDescriptor) (domain.Cart, Change) {
	out := c.Clone()
	if i := out.Index(p.ID); i >= 0 {
		out[i].Quantity++
		return out, ChangeIncremented
	}
	return append(out, domain.CartLine{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.Price,
		ImageRef:  p.ImageRef,
		Quantity:  1,
		SellerID:  p.SellerID,
	}), ChangeAdded
}

func removeLine(c domain.Cart, productID string) (domain.Cart, Change) {
	i := c.Index(productID)
	if i < 0 {
		return c.Clone(), ChangeNone
	}
	out := make(domain.Cart, 0, len(c)-1)
	out = append(out, c[:i]...)
	return append(out, c[i+1:]...), ChangeRemoved
}

// setQuantity removes the line when quantity < 1.
func setQuantity(c domain.Cart, productID string, quantity int) (domain.Cart, Change) {
	if quantity < 1 {
		return removeLine(c, productID)
	}
	i := c.Index(productID)
	if i < 0 {
		return c.Clone(), ChangeNone
	}
	out := c.Clone()
	out[i].Quantity = quantity
	return out, ChangeQuantitySet
}

func clearLines(domain.Cart) (domain.Cart, Change) {
	return domain.Cart{}, ChangeCleared
}

func addWish(w domain.Wishlist, productID string) (domain.Wishlist, Change) {
	if w.Contains(productID) {
		return w.Clone(), ChangeNone
	}
	return append(w.Clone(), productID), ChangeAdded
}

func removeWish(w domain.Wishlist, productID string) (domain.Wishlist, Change) {
	out := make(domain.Wishlist, 0, len(w))
	change := ChangeNone
	for _, id := range w {
		if id == productID {
			change = ChangeRemoved
			continue
		}
		out = append(out, id)
	}
	return out, change
}
