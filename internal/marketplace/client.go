// Package marketplace is the typed client of the marketplace GraphQL API:
// offer lookup, fees, approvals, purchase transactions, accounts and sign-in.
package marketplace

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nft-storefront/internal/domain"
)

// TokenSource returns the bearer token for the account the client acts for.
// An empty token means the request is sent unauthenticated.
type TokenSource func(ctx context.Context) string

type Client struct {
	gql    *graphql.Client
	url    string
	apiKey string
	tokens TokenSource
	log    *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.gql = graphql.NewClient(c.url, graphql.WithHTTPClient(hc))
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for the GraphQL endpoint at url.
func New(url, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		apiKey: apiKey,
		log:    zap.NewNop(),
	}
	c.gql = graphql.NewClient(url, graphql.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, op string, req *graphql.Request, resp interface{}) error {
	req.Header.Set("X-API-KEY", c.apiKey)
	if c.tokens != nil {
		if token := c.tokens(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	start := time.Now()
	err := c.gql.Run(ctx, req, resp)
	c.log.Debug("graphql", zap.String("op", op), zap.Duration("latency", time.Since(start)), zap.Error(err))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func parseInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

type offerNode struct {
	ID                string     `json:"id"`
	ChainID           int64      `json:"chainId"`
	Maker             string     `json:"makerAddress"`
	UnitPrice         string     `json:"unitPrice"`
	AvailableQuantity string     `json:"availableQuantity"`
	ExpiredAt         *time.Time `json:"expiredAt"`
	Currency          struct {
		ID       string `json:"id"`
		ChainID  int64  `json:"chainId"`
		Address  string `json:"address"`
		Decimals int32  `json:"decimals"`
		Symbol   string `json:"symbol"`
		Image    string `json:"image"`
	} `json:"currency"`
	Asset struct {
		ID                string `json:"id"`
		ChainID           int64  `json:"chainId"`
		CollectionAddress string `json:"collectionAddress"`
		TokenID           string `json:"tokenId"`
		Name              string `json:"name"`
		Image             string `json:"image"`
	} `json:"asset"`
}

func (n offerNode) toDomain() domain.Offer {
	return domain.Offer{
		ID:                n.ID,
		ChainID:           n.ChainID,
		Maker:             strings.ToLower(n.Maker),
		UnitPrice:         parseInt(n.UnitPrice),
		AvailableQuantity: parseInt(n.AvailableQuantity),
		ExpiredAt:         n.ExpiredAt,
		Currency: domain.Currency{
			ID:       n.Currency.ID,
			ChainID:  n.Currency.ChainID,
			Address:  n.Currency.Address,
			Decimals: n.Currency.Decimals,
			Symbol:   n.Currency.Symbol,
			Image:    n.Currency.Image,
		},
		Asset: domain.Asset{
			ID:                n.Asset.ID,
			ChainID:           n.Asset.ChainID,
			CollectionAddress: n.Asset.CollectionAddress,
			TokenID:           n.Asset.TokenID,
			Name:              n.Asset.Name,
			Image:             n.Asset.Image,
		},
	}
}

const offersQuery = `
query FetchCartItems($offerIds: [UUID!]!) {
  offerOpenSales(filter: { id: { in: $offerIds } }) {
    nodes {
      id
      chainId
      makerAddress
      unitPrice
      availableQuantity
      expiredAt
      currency { id chainId address decimals symbol image }
      asset { id chainId collectionAddress tokenId name image }
    }
  }
}`

// Offers fetches the open sales with the given ids. Unknown ids are absent
// from the returned map.
func (c *Client) Offers(ctx context.Context, ids []string) (map[string]domain.Offer, error) {
	out := make(map[string]domain.Offer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	req := graphql.NewRequest(offersQuery)
	req.Var("offerIds", ids)

	var resp struct {
		OfferOpenSales struct {
			Nodes []offerNode `json:"nodes"`
		} `json:"offerOpenSales"`
	}
	if err := c.run(ctx, "FetchCartItems", req, &resp); err != nil {
		return nil, err
	}
	for _, n := range resp.OfferOpenSales.Nodes {
		out[n.ID] = n.toDomain()
	}
	return out, nil
}

// FeesInput identifies the asset and listing terms fees are computed for.
type FeesInput struct {
	ChainID           int64  `json:"chainId"`
	CollectionAddress string `json:"collectionAddress"`
	TokenID           string `json:"tokenId"`
	CurrencyID        string `json:"currencyId"`
	Quantity          string `json:"quantity"`
	UnitPrice         string `json:"unitPrice"`
}

// Fees is the total fee taken on a sale, as a percentage of the price.
type Fees struct {
	Percent decimal.Decimal
}

const feesQuery = `
query FetchFees($chainId: Int!, $collectionAddress: Address!, $tokenId: String!, $currencyId: UUID!, $quantity: Uint256!, $unitPrice: Uint256!) {
  orderFees(chainId: $chainId, collectionAddress: $collectionAddress, tokenId: $tokenId, currencyId: $currencyId, quantity: $quantity, unitPrice: $unitPrice) {
    value
    precision
  }
}`

// OrderFees returns the fees applied when selling under the given terms.
func (c *Client) OrderFees(ctx context.Context, in FeesInput) (Fees, error) {
	req := graphql.NewRequest(feesQuery)
	req.Var("chainId", in.ChainID)
	req.Var("collectionAddress", in.CollectionAddress)
	req.Var("tokenId", in.TokenID)
	req.Var("currencyId", in.CurrencyID)
	req.Var("quantity", in.Quantity)
	req.Var("unitPrice", in.UnitPrice)

	var resp struct {
		OrderFees struct {
			Value     decimal.Decimal `json:"value"`
			Precision int32           `json:"precision"`
		} `json:"orderFees"`
	}
	if err := c.run(ctx, "FetchFees", req, &resp); err != nil {
		return Fees{}, err
	}
	return Fees{Percent: resp.OrderFees.Value.Shift(-resp.OrderFees.Precision)}, nil
}

// TransactionRequest is an unsigned transaction built by the API.
type TransactionRequest struct {
	ChainID int64  `json:"chainId"`
	From    string `json:"from"`
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
}

// ApprovalRequest asks whether account allowed the exchange to move Amount of a currency.
type ApprovalRequest struct {
	CurrencyID string `json:"currencyId"`
	Amount     string `json:"amount"`
}

type ApprovalStatus struct {
	CurrencyID  string
	Approved    bool
	Transaction *TransactionRequest
}

const approvalsQuery = `
query FetchApprovals($chainId: Int!, $account: Address!, $items: [ApprovalItemInput!]!) {
  fetchApprovals(chainId: $chainId, account: $account, items: $items) {
    currencyId
    approved
    transaction { chainId from to data value }
  }
}`

// FetchApprovals returns one status per request. Missing approvals carry the
// transaction that grants them.
func (c *Client) FetchApprovals(ctx context.Context, chainID int64, account string, reqs []ApprovalRequest) ([]ApprovalStatus, error) {
	req := graphql.NewRequest(approvalsQuery)
	req.Var("chainId", chainID)
	req.Var("account", strings.ToLower(account))
	req.Var("items", reqs)

	var resp struct {
		FetchApprovals []struct {
			CurrencyID  string              `json:"currencyId"`
			Approved    bool                `json:"approved"`
			Transaction *TransactionRequest `json:"transaction"`
		} `json:"fetchApprovals"`
	}
	if err := c.run(ctx, "FetchApprovals", req, &resp); err != nil {
		return nil, err
	}
	out := make([]ApprovalStatus, 0, len(resp.FetchApprovals))
	for _, a := range resp.FetchApprovals {
		out = append(out, ApprovalStatus{CurrencyID: a.CurrencyID, Approved: a.Approved, Transaction: a.Transaction})
	}
	return out, nil
}

const purchaseMutation = `
mutation CreatePurchaseTransaction($chainId: Int!, $account: Address!, $items: [PurchaseItemInput!]!) {
  createPurchaseTransaction(input: { chainId: $chainId, accountAddress: $account, items: $items }) {
    transaction { chainId from to data value }
  }
}`

// CreatePurchaseTransaction builds the batched purchase of every line.
func (c *Client) CreatePurchaseTransaction(ctx context.Context, chainID int64, account string, lines []domain.PurchaseLine) (*TransactionRequest, error) {
	items := make([]map[string]string, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]string{
			"offerId":  l.OfferID,
			"quantity": fmt.Sprintf("%d", l.Quantity),
		})
	}
	req := graphql.NewRequest(purchaseMutation)
	req.Var("chainId", chainID)
	req.Var("account", strings.ToLower(account))
	req.Var("items", items)

	var resp struct {
		CreatePurchaseTransaction struct {
			Transaction *TransactionRequest `json:"transaction"`
		} `json:"createPurchaseTransaction"`
	}
	if err := c.run(ctx, "CreatePurchaseTransaction", req, &resp); err != nil {
		return nil, err
	}
	if resp.CreatePurchaseTransaction.Transaction == nil {
		return nil, fmt.Errorf("CreatePurchaseTransaction: empty transaction")
	}
	return resp.CreatePurchaseTransaction.Transaction, nil
}

const accountQuery = `
query FetchAccountEmail($address: Address!) {
  account(address: $address) {
    address
    email
  }
}`

// AccountEmail returns the email registered for address, domain.ErrNotFound
// when the account is unknown or has none.
func (c *Client) AccountEmail(ctx context.Context, address string) (string, error) {
	req := graphql.NewRequest(accountQuery)
	req.Var("address", strings.ToLower(address))

	var resp struct {
		Account *struct {
			Address string `json:"address"`
			Email   string `json:"email"`
		} `json:"account"`
	}
	if err := c.run(ctx, "FetchAccountEmail", req, &resp); err != nil {
		return "", err
	}
	if resp.Account == nil || strings.TrimSpace(resp.Account.Email) == "" {
		return "", domain.ErrNotFound
	}
	return strings.TrimSpace(resp.Account.Email), nil
}

const authenticateMutation = `
mutation Authenticate($address: Address!, $message: String!, $signature: String!) {
  authenticateWeb3(input: { address: $address, message: $message, signature: $signature }) {
    jwtToken
  }
}`

// Authenticate exchanges a signed sign-in message for a JWT.
func (c *Client) Authenticate(ctx context.Context, address, message, signature string) (string, error) {
	req := graphql.NewRequest(authenticateMutation)
	req.Var("address", strings.ToLower(address))
	req.Var("message", message)
	req.Var("signature", signature)

	var resp struct {
		AuthenticateWeb3 struct {
			JWTToken string `json:"jwtToken"`
		} `json:"authenticateWeb3"`
	}
	if err := c.run(ctx, "Authenticate", req, &resp); err != nil {
		return "", err
	}
	if resp.AuthenticateWeb3.JWTToken == "" {
		return "", fmt.Errorf("Authenticate: empty token")
	}
	return resp.AuthenticateWeb3.JWTToken, nil
}
