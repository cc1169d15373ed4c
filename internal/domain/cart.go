package domain

// CartItem is one entry of an account's cart. Quantity is optional and
// defaults to 1 at checkout.
type CartItem struct {
	OfferID  string `json:"offerId"`
	Quantity *int   `json:"quantity,omitempty"`
}

// QuantityOrDefault returns the requested quantity, 1 when unset or not positive.
func (i CartItem) QuantityOrDefault() int {
	if i.Quantity == nil || *i.Quantity <= 0 {
		return 1
	}
	return *i.Quantity
}

// PurchaseLine is what the batch purchase procedure receives per cart item.
type PurchaseLine struct {
	OfferID  string `json:"offerId"`
	Quantity int    `json:"quantity"`
}
