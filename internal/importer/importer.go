// Package importer loads carts exported from browsers or spreadsheets into
// the cart storage table.
package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nft-storefront/internal/domain"
	cartrepo "nft-storefront/internal/repository/cart"
)

type CartWriter interface {
	Set(ctx context.Context, key, value string) error
}

// CSVImporter reads "account,offerId,quantity" rows. Rows with an empty
// account continue the cart of the previous row. Rows of one account are
// merged into a single cart wherever they appear and however the address is
// cased.
type CSVImporter struct {
	reader *csv.Reader
	carts  CartWriter
}

func NewCSVImporter(r io.Reader, carts CartWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		carts:  carts,
	}
}

type csvCart struct {
	Account string
	Items   []domain.CartItem
}

// Run parses every CSV row, then writes one cart per account in the order
// accounts first appear. It returns the number of carts written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current string
		order   []*csvCart
		byAcct  = make(map[string]*csvCart)
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read row: %w", err)
		}

		account, item, ok, err := parseRow(record, index)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		if account != "" {
			normalized, err := domain.NormalizeAddress(account)
			if err != nil {
				return 0, fmt.Errorf("account %q: %w", account, err)
			}
			current = normalized
		}
		if current == "" {
			return 0, fmt.Errorf("row for offer %s has no account", item.OfferID)
		}
		c, seen := byAcct[current]
		if !seen {
			c = &csvCart{Account: current}
			byAcct[current] = c
			order = append(order, c)
		}
		c.Items = append(c.Items, item)
	}

	imported := 0
	for _, c := range order {
		if err := save(ctx, i.carts, c); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func save(ctx context.Context, carts CartWriter, c *csvCart) error {
	account, err := domain.NormalizeAddress(c.Account)
	if err != nil {
		return fmt.Errorf("account %q: %w", c.Account, err)
	}
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := carts.Set(ctx, cartrepo.Key(account), string(raw)); err != nil {
		return fmt.Errorf("save cart of %s: %w", account, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (string, domain.CartItem, bool, error) {
	account := pick(record, index, "account")
	offerID := strings.ToLower(pick(record, index, "offerId"))
	qty := pick(record, index, "quantity")

	if offerID == "" {
		return "", domain.CartItem{}, false, nil
	}
	if err := domain.ValidateOfferID(offerID); err != nil {
		return "", domain.CartItem{}, false, fmt.Errorf("offer %q: %w", offerID, err)
	}

	item := domain.CartItem{OfferID: offerID}
	if qty != "" {
		n, err := strconv.Atoi(qty)
		if err != nil || n <= 0 {
			return "", domain.CartItem{}, false, fmt.Errorf("offer %s: invalid quantity %q", offerID, qty)
		}
		item.Quantity = &n
	}
	return account, item, true, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

// Report summarizes a local storage import.
type Report struct {
	Imported int
	Skipped  []string
}

// ImportLocalStorage reads a JSON object of browser local storage entries and
// writes every cart entry to carts. Entries that are not carts are ignored;
// malformed carts are skipped and reported.
func ImportLocalStorage(ctx context.Context, r io.Reader, carts CartWriter) (Report, error) {
	var entries map[string]string
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return Report{}, fmt.Errorf("decode local storage: %w", err)
	}

	var rep Report
	for key, value := range entries {
		if !strings.HasPrefix(strings.ToLower(key), cartrepo.KeyPrefix) {
			continue
		}
		account := key[len(cartrepo.KeyPrefix):]
		c := &csvCart{Account: account}
		if err := json.Unmarshal([]byte(value), &c.Items); err != nil {
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		if !validItems(c.Items) {
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		if _, err := domain.NormalizeAddress(account); err != nil {
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		if err := save(ctx, carts, c); err != nil {
			return rep, err
		}
		rep.Imported++
	}
	return rep, nil
}

func validItems(items []domain.CartItem) bool {
	for _, it := range items {
		if domain.ValidateOfferID(it.OfferID) != nil {
			return false
		}
		if it.Quantity != nil && *it.Quantity <= 0 {
			return false
		}
	}
	return true
}
