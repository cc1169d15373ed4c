package domain

import (
	"math/big"
	"time"
)

type Currency struct {
	ID       string `json:"id"`
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address,omitempty"`
	Decimals int32  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Image    string `json:"image,omitempty"`
}

type Asset struct {
	ID                string `json:"id"`
	ChainID           int64  `json:"chainId"`
	CollectionAddress string `json:"collectionAddress"`
	TokenID           string `json:"tokenId"`
	Name              string `json:"name"`
	Image             string `json:"image,omitempty"`
}

// Offer is a direct sale listing fetched from the marketplace API. It is
// never mutated by this service.
type Offer struct {
	ID                string     `json:"id"`
	ChainID           int64      `json:"chainId"`
	Maker             string     `json:"maker"`
	UnitPrice         *big.Int   `json:"unitPrice"`
	AvailableQuantity *big.Int   `json:"availableQuantity"`
	ExpiredAt         *time.Time `json:"expiredAt,omitempty"`
	Currency          Currency   `json:"currency"`
	Asset             Asset      `json:"asset"`
}

// Expired reports whether the offer can no longer be purchased at now.
func (o Offer) Expired(now time.Time) bool {
	return o.ExpiredAt != nil && !o.ExpiredAt.After(now)
}
