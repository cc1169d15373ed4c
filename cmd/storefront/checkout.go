package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/metrics"
	cartsvc "nft-storefront/internal/service/cart"
	"nft-storefront/internal/service/checkout"
)

var (
	flagChain int64
	flagItems string
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Approve currencies and buy cart items of one chain with the configured wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		ws, err := a.connectWallet(ctx)
		if err != nil {
			return err
		}
		purchaser := checkout.NewPurchaser(ws.client, ws.signer, ws.confirmer, metrics.NoopRecorder{}, a.log)
		store := cartsvc.NewStore(a.storage, purchaser)
		if err := store.SwitchAccount(ctx, ws.signer.Address().Hex()); err != nil {
			return err
		}
		store.OnCheckout(func(items []domain.CartItem) {
			fmt.Fprintf(out, "removed %d item(s) from the cart\n", len(items))
		})

		drawer := checkout.NewDrawer(checkout.Deps{
			Store:     store,
			Approvals: ws.client,
			Signer:    ws.signer,
			Confirmer: ws.confirmer,
		}, ws.client, a.log)
		drawer.Open()
		defer drawer.Close()

		ids := splitIDs(flagItems)
		if len(ids) == 0 {
			sel, err := drawer.Selection(ctx)
			if err != nil {
				return err
			}
			group, ok := sel.Group(flagChain)
			if !ok {
				return fmt.Errorf("no purchasable items on chain %d", flagChain)
			}
			for _, l := range group.Lines {
				ids = append(ids, l.Item.OfferID)
			}
		}

		tx, err := drawer.Select(ctx, flagChain, ids)
		if err != nil {
			return err
		}
		statuses, err := tx.Refresh(ctx)
		if err != nil {
			drawer.Fail(err)
			return err
		}
		for _, st := range statuses {
			if st.Approved {
				continue
			}
			fmt.Fprintf(out, "approving currency %s\n", st.CurrencyID)
			if err := tx.Approve(ctx, st.CurrencyID); err != nil {
				drawer.Fail(err)
				return err
			}
		}

		fmt.Fprintf(out, "purchasing %d item(s) on chain %d\n", len(ids), flagChain)
		state, err := drawer.Submit(ctx)
		if err != nil {
			return err
		}
		if state.Receipt != nil {
			fmt.Fprintf(out, "confirmed in block %s, tx %s\n", state.Receipt.BlockNumber, state.Receipt.TxHash.Hex())
		}
		return nil
	},
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func init() {
	checkoutCmd.Flags().Int64Var(&flagChain, "chain", 0, "Chain id of the items to buy")
	checkoutCmd.Flags().StringVar(&flagItems, "items", "", "Comma separated offer ids; all items of the chain when empty")
	_ = checkoutCmd.MarkFlagRequired("chain")
}
