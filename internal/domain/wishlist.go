package domain

// Wishlist is a set of product ids saved for later. Insertion order is kept
// for display only.
type Wishlist []string

func (w Wishlist) Contains(productID string) bool {
	for _, id := range w {
		if id == productID {
			return true
		}
	}
	return false
}

func (w Wishlist) Clone() Wishlist {
	out := make(Wishlist, len(w))
	copy(out, w)
	return out
}

// Normalize removes empty and repeated ids.
func (w Wishlist) Normalize() Wishlist {
	out := make(Wishlist, 0, len(w))
	seen := make(map[string]struct{}, len(w))
	for _, id := range w {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
