package main

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nft-storefront/internal/marketplace"
	"nft-storefront/internal/price"
	"nft-storefront/internal/service/fees"
)

var flagFees struct {
	chain      int64
	collection string
	token      string
	currency   string
	quantity   string
	decimals   int32
	symbol     string
}

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Preview listing fees for unit prices read from stdin, one per line",
	Long: `Reads unit prices in the currency's smallest unit from stdin. Fees are
fetched once input pauses for FEES_DEBOUNCE; superseded prices are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := a.marketplace()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		currency := price.Currency{Decimals: flagFees.decimals, Symbol: flagFees.symbol}

		results := make(chan fees.Result, 1)
		w := fees.NewWatcher(client, a.cfg.FeesDebounce, func(r fees.Result) {
			// Keep only the latest result.
			select {
			case <-results:
			default:
			}
			results <- r
		}, fees.WithLogger(a.log.Named("fees")))
		defer w.Close()

		var last string
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			unit := strings.TrimSpace(scanner.Text())
			if unit == "" {
				continue
			}
			last = unit
			w.Update(marketplace.FeesInput{
				ChainID:           flagFees.chain,
				CollectionAddress: flagFees.collection,
				TokenID:           flagFees.token,
				CurrencyID:        flagFees.currency,
				Quantity:          flagFees.quantity,
				UnitPrice:         unit,
			})
			printResult(out, currency, results)
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if last == "" {
			return nil
		}

		timeout := time.NewTimer(a.cfg.FeesDebounce + 30*time.Second)
		defer timeout.Stop()
		for {
			select {
			case r := <-results:
				writeResult(out, currency, r)
				if r.Input.UnitPrice == last {
					return nil
				}
			case <-timeout.C:
				return fmt.Errorf("no fees received for unit price %s", last)
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}
	},
}

// printResult writes a result delivered while stdin was being read.
func printResult(out io.Writer, currency price.Currency, results <-chan fees.Result) {
	select {
	case r := <-results:
		writeResult(out, currency, r)
	default:
	}
}

func writeResult(out io.Writer, currency price.Currency, r fees.Result) {
	if r.Err != nil {
		a.log.Warn("fetch fees", zap.String("unit_price", r.Input.UnitPrice), zap.Error(r.Err))
		fmt.Fprintf(out, "%s\terror: %v\n", price.FormatString(r.Input.UnitPrice, currency), r.Err)
		return
	}
	unit, ok := new(big.Int).SetString(r.Input.UnitPrice, 10)
	if !ok {
		unit = new(big.Int)
	}
	fmt.Fprintf(out, "%s\tfees %s%%\tyou receive %s\n",
		price.Format(unit, currency),
		r.Fees.Percent.String(),
		price.Format(fees.NetAmount(unit, r.Fees), currency),
	)
}

func init() {
	f := feesCmd.Flags()
	f.Int64Var(&flagFees.chain, "chain", 0, "Chain id of the asset")
	f.StringVar(&flagFees.collection, "collection", "", "Collection address of the asset")
	f.StringVar(&flagFees.token, "token", "", "Token id of the asset")
	f.StringVar(&flagFees.currency, "currency", "", "Currency id of the listing")
	f.StringVar(&flagFees.quantity, "quantity", "1", "Quantity listed")
	f.Int32Var(&flagFees.decimals, "decimals", 18, "Decimals of the currency")
	f.StringVar(&flagFees.symbol, "symbol", "", "Symbol of the currency")
	for _, name := range []string{"chain", "collection", "token", "currency"} {
		_ = feesCmd.MarkFlagRequired(name)
	}
}
