package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nft-storefront/internal/price"
	cartsvc "nft-storefront/internal/service/cart"
	"nft-storefront/internal/service/checkout"
)

var (
	flagQuantity int
	flagGroup    bool
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Inspect and edit the cart of --account",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if flagAccount == "" {
			return fmt.Errorf("--account is required")
		}
		return nil
	},
}

var cartListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cart items, optionally grouped by chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc := cartsvc.New(a.storage, nil, nil)
		store, err := svc.View(cmd.Context(), flagAccount)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()

		if !flagGroup {
			fmt.Fprintln(w, "OFFER\tQUANTITY")
			for _, it := range store.Items() {
				fmt.Fprintf(w, "%s\t%d\n", it.OfferID, it.QuantityOrDefault())
			}
			return nil
		}

		client, err := a.marketplace()
		if err != nil {
			return err
		}
		drawer := checkout.NewDrawer(checkout.Deps{Store: store}, client, a.log)
		sel, err := drawer.Selection(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "CHAIN\tOFFER\tASSET\tQUANTITY\tUNIT PRICE")
		for _, g := range sel.Groups {
			for _, l := range g.Lines {
				unit := price.Format(l.Offer.UnitPrice, price.Currency{Decimals: l.Offer.Currency.Decimals, Symbol: l.Offer.Currency.Symbol}, price.WithAverageFrom(100_000))
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", g.ChainID, l.Item.OfferID, l.Offer.Asset.Name, l.Item.QuantityOrDefault(), unit)
			}
		}
		for _, it := range sel.Unavailable {
			fmt.Fprintf(w, "-\t%s\tunavailable\t%d\t-\n", it.OfferID, it.QuantityOrDefault())
		}
		return nil
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <offer-id>",
	Short: "Add an offer to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cartsvc.AddInput{OfferID: args[0]}
		if cmd.Flags().Changed("quantity") {
			q := flagQuantity
			in.Quantity = &q
		}
		items, err := cartsvc.New(a.storage, nil, nil).Add(cmd.Context(), flagAccount, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s, %d item(s) in cart\n", strings.ToLower(args[0]), len(items))
		return nil
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <offer-id>",
	Short: "Remove an offer from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cartsvc.New(a.storage, nil, nil).Remove(cmd.Context(), flagAccount, args[0])
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cartsvc.New(a.storage, nil, nil).Clear(cmd.Context(), flagAccount)
	},
}

func init() {
	cartListCmd.Flags().BoolVar(&flagGroup, "group", false, "Group items by chain with their offers")
	cartAddCmd.Flags().IntVar(&flagQuantity, "quantity", 1, "Quantity to buy")
	cartCmd.AddCommand(cartListCmd, cartAddCmd, cartRemoveCmd, cartClearCmd)
}
