package notification

import (
	"fmt"
	"strings"
)

type EventType string

const (
	OfferPurchased     EventType = "OFFER_PURCHASED"
	BidCreated         EventType = "BID_CREATED"
	BidAccepted        EventType = "BID_ACCEPTED"
	BidExpired         EventType = "BID_EXPIRED"
	OfferExpired       EventType = "OFFER_EXPIRED"
	AuctionBidCreated  EventType = "AUCTION_BID_CREATED"
	AuctionEndedWon    EventType = "AUCTION_ENDED_WON"
	AuctionEndedNoBids EventType = "AUCTION_ENDED_NO_BIDS"
)

// Payload is the body the marketplace posts to the webhook.
type Payload struct {
	Type EventType `json:"type" validate:"required"`
	Data EventData `json:"data"`
}

// EventData carries every field any event uses. Which addresses are set
// depends on the event.
type EventData struct {
	Asset           AssetRef    `json:"asset"`
	Currency        CurrencyRef `json:"currency"`
	UnitPrice       string      `json:"unitPrice"`
	Quantity        string      `json:"quantity"`
	Seller          string      `json:"sellerAddress"`
	Buyer           string      `json:"buyerAddress"`
	Maker           string      `json:"makerAddress"`
	Owner           string      `json:"ownerAddress"`
	TransactionHash string      `json:"transactionHash"`
}

type AssetRef struct {
	ChainID           int64  `json:"chainId"`
	CollectionAddress string `json:"collectionAddress"`
	TokenID           string `json:"tokenId"`
	Name              string `json:"name"`
	Image             string `json:"image"`
}

type CurrencyRef struct {
	Decimals int32  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// Path is the storefront path of the asset page.
func (a AssetRef) Path() string {
	return fmt.Sprintf("/tokens/%d-%s-%s", a.ChainID, strings.ToLower(a.CollectionAddress), a.TokenID)
}

// Title is the asset name, falling back to its token id.
func (a AssetRef) Title() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return "#" + a.TokenID
}
