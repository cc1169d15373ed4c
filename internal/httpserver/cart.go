package httpserver

import (
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/price"
	cartsvc "nft-storefront/internal/service/cart"
	"nft-storefront/internal/service/checkout"
)

type cartHandler struct {
	svc    CartService
	offers checkout.OfferLookup
	now    func() time.Time
}

type cartResponse struct {
	Account string            `json:"account"`
	Items   []domain.CartItem `json:"items"`
}

type groupedCartResponse struct {
	Account     string            `json:"account"`
	Groups      []groupResponse   `json:"groups"`
	Unavailable []domain.CartItem `json:"unavailable"`
}

type groupResponse struct {
	ChainID int64          `json:"chainId"`
	Lines   []lineResponse `json:"lines"`
}

type lineResponse struct {
	Item  domain.CartItem `json:"item"`
	Offer domain.Offer    `json:"offer"`
	// Price is the formatted total of the line.
	Price string `json:"price"`
}

func (h *cartHandler) get(c *gin.Context) {
	address := strings.ToLower(c.Param("address"))
	items, err := h.svc.Items(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("group") != "chain" {
		c.JSON(http.StatusOK, cartResponse{Account: address, Items: items})
		return
	}
	if h.offers == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "offer lookup not configured"})
		return
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.OfferID)
	}
	offers, err := h.offers.Offers(c.Request.Context(), ids)
	if err != nil {
		writeError(c, err)
		return
	}
	sel := checkout.GroupByChain(items, offers, h.now())
	resp := groupedCartResponse{Account: address, Groups: make([]groupResponse, 0, len(sel.Groups)), Unavailable: sel.Unavailable}
	for _, g := range sel.Groups {
		group := groupResponse{ChainID: g.ChainID, Lines: make([]lineResponse, 0, len(g.Lines))}
		for _, l := range g.Lines {
			group.Lines = append(group.Lines, lineResponse{Item: l.Item, Offer: l.Offer, Price: linePrice(l)})
		}
		resp.Groups = append(resp.Groups, group)
	}
	c.JSON(http.StatusOK, resp)
}

func linePrice(l checkout.Line) string {
	unit := l.Offer.UnitPrice
	if unit == nil {
		unit = new(big.Int)
	}
	total := new(big.Int).Mul(unit, big.NewInt(int64(l.Item.QuantityOrDefault())))
	return price.Format(total, price.Currency{Decimals: l.Offer.Currency.Decimals, Symbol: l.Offer.Currency.Symbol})
}

func (h *cartHandler) add(c *gin.Context) {
	var in cartsvc.AddInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	address := strings.ToLower(c.Param("address"))
	items, err := h.svc.Add(c.Request.Context(), address, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cartResponse{Account: address, Items: items})
}

func (h *cartHandler) has(c *gin.Context) {
	offerID := c.Param("offerId")
	if err := domain.ValidateOfferID(offerID); err != nil {
		writeError(c, err)
		return
	}
	ok, err := h.svc.Has(c.Request.Context(), c.Param("address"), offerID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not in cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"offerId": strings.ToLower(offerID), "inCart": true})
}

func (h *cartHandler) remove(c *gin.Context) {
	offerID := c.Param("offerId")
	if err := domain.ValidateOfferID(offerID); err != nil {
		writeError(c, err)
		return
	}
	if err := h.svc.Remove(c.Request.Context(), c.Param("address"), offerID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *cartHandler) clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context(), c.Param("address")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, domain.ErrInvalidOfferID):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cartsvc.ErrAlreadyInCart):
		status = http.StatusConflict
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
