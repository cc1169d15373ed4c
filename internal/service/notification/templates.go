package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"nft-storefront/internal/price"
)

//go:embed templates/*.html
var templateFS embed.FS

// kind describes how one event becomes an email.
type kind struct {
	file      string
	subject   string
	recipient func(EventData) string
}

var kinds = map[EventType]kind{
	OfferPurchased: {
		file:      "offer_purchased.html",
		subject:   "Your NFT {{.Asset}} has been sold",
		recipient: func(d EventData) string { return d.Seller },
	},
	BidCreated: {
		file:      "bid_created.html",
		subject:   "New bid on {{.Asset}}",
		recipient: func(d EventData) string { return d.Owner },
	},
	BidAccepted: {
		file:      "bid_accepted.html",
		subject:   "Your bid on {{.Asset}} was accepted",
		recipient: func(d EventData) string { return d.Maker },
	},
	BidExpired: {
		file:      "bid_expired.html",
		subject:   "Your bid on {{.Asset}} has expired",
		recipient: func(d EventData) string { return d.Maker },
	},
	OfferExpired: {
		file:      "offer_expired.html",
		subject:   "Your listing of {{.Asset}} has expired",
		recipient: func(d EventData) string { return d.Maker },
	},
	AuctionBidCreated: {
		file:      "auction_bid_created.html",
		subject:   "New bid on your auction of {{.Asset}}",
		recipient: func(d EventData) string { return d.Seller },
	},
	AuctionEndedWon: {
		file:      "auction_ended_won.html",
		subject:   "You won the auction of {{.Asset}}",
		recipient: func(d EventData) string { return d.Buyer },
	},
	AuctionEndedNoBids: {
		file:      "auction_ended_no_bids.html",
		subject:   "Your auction of {{.Asset}} ended without bids",
		recipient: func(d EventData) string { return d.Seller },
	},
}

// view is what the templates render.
type view struct {
	AppName  string
	BaseURL  string
	Asset    string
	AssetURL string
	Image    string
	Price    string
	Quantity string
	Seller   string
	Buyer    string
	Maker    string
	TxURL    string
}

type renderer struct {
	pages    map[EventType]*template.Template
	subjects map[EventType]*texttemplate.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{
		pages:    make(map[EventType]*template.Template, len(kinds)),
		subjects: make(map[EventType]*texttemplate.Template, len(kinds)),
	}
	for t, k := range kinds {
		page, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+k.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k.file, err)
		}
		subject, err := texttemplate.New(string(t)).Parse(k.subject)
		if err != nil {
			return nil, fmt.Errorf("parse subject of %s: %w", t, err)
		}
		r.pages[t] = page
		r.subjects[t] = subject
	}
	return r, nil
}

func newView(appName, baseURL string, d EventData) view {
	v := view{
		AppName:  appName,
		BaseURL:  baseURL,
		Asset:    d.Asset.Title(),
		AssetURL: baseURL + d.Asset.Path(),
		Image:    d.Asset.Image,
		Quantity: d.Quantity,
		Seller:   d.Seller,
		Buyer:    d.Buyer,
		Maker:    d.Maker,
	}
	if v.Quantity == "" {
		v.Quantity = "1"
	}
	if d.UnitPrice != "" {
		v.Price = price.FormatString(d.UnitPrice, price.Currency{Decimals: d.Currency.Decimals, Symbol: d.Currency.Symbol})
	}
	if d.TransactionHash != "" {
		v.TxURL = fmt.Sprintf("%s/tx/%d/%s", baseURL, d.Asset.ChainID, d.TransactionHash)
	}
	return v
}

// render returns the subject and HTML body of t.
func (r *renderer) render(t EventType, v view) (string, string, error) {
	page, ok := r.pages[t]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownEvent, t)
	}
	var subject, body bytes.Buffer
	if err := r.subjects[t].Execute(&subject, v); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := page.ExecuteTemplate(&body, "layout", v); err != nil {
		return "", "", fmt.Errorf("render %s: %w", t, err)
	}
	return subject.String(), body.String(), nil
}
