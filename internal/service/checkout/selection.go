package checkout

import (
	"sort"
	"time"

	"nft-storefront/internal/domain"
)

// Line is a cart item with the offer it refers to.
type Line struct {
	Item  domain.CartItem `json:"item"`
	Offer domain.Offer    `json:"offer"`
}

type ChainGroup struct {
	ChainID int64  `json:"chainId"`
	Lines   []Line `json:"lines"`
}

// Selection is the first drawer step: the cart split by chain.
type Selection struct {
	Groups []ChainGroup `json:"groups"`
	// Unavailable lists items whose offer is unknown or expired. They can
	// not be selected.
	Unavailable []domain.CartItem `json:"unavailable"`
}

// GroupByChain groups items by the chain of their offer. Cart order is kept
// inside a group and groups are sorted by chain id.
func GroupByChain(items []domain.CartItem, offers map[string]domain.Offer, now time.Time) Selection {
	sel := Selection{Groups: []ChainGroup{}, Unavailable: []domain.CartItem{}}
	index := map[int64]int{}
	for _, it := range items {
		offer, ok := offers[it.OfferID]
		if !ok || offer.Expired(now) {
			sel.Unavailable = append(sel.Unavailable, it)
			continue
		}
		i, ok := index[offer.ChainID]
		if !ok {
			i = len(sel.Groups)
			index[offer.ChainID] = i
			sel.Groups = append(sel.Groups, ChainGroup{ChainID: offer.ChainID})
		}
		sel.Groups[i].Lines = append(sel.Groups[i].Lines, Line{Item: it, Offer: offer})
	}
	sort.SliceStable(sel.Groups, func(a, b int) bool {
		return sel.Groups[a].ChainID < sel.Groups[b].ChainID
	})
	return sel
}

// Group returns the group of chainID.
func (s Selection) Group(chainID int64) (ChainGroup, bool) {
	for _, g := range s.Groups {
		if g.ChainID == chainID {
			return g, true
		}
	}
	return ChainGroup{}, false
}
