package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifehub/internal/core"
	"lifehub/internal/services"
)

func newPurchaseCommand(open opener, opts *options) *cobra.Command {
	var description, category, date, notes string

	cmd := &cobra.Command{
		Use:   "purchase <card-id> <amount>",
		Short: "Register a purchase made with a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			day, err := dateOrToday(date)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), open, func(a *app) error {
				res, err := a.accounting.RegisterCreditCardPurchase(cmd.Context(), services.PurchaseRequest{
					UserID:      opts.user,
					CardID:      args[0],
					Amount:      amount,
					Description: description,
					CategoryID:  category,
					Date:        day,
					Notes:       notes,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, map[string]string{
						"transaction_id":   res.Transaction.ID,
						"card_balance":     core.FormatAmount(res.Card.CurrentBalance),
						"available_credit": core.FormatAmount(res.AvailableCredit),
					})
				}
				fmt.Fprintf(out, "Registered %s on %s (transaction %s)\n",
					core.FormatAmount(amount), res.Card.Alias, res.Transaction.ID)
				fmt.Fprintf(out, "Card balance %s, available credit %s\n",
					core.FormatAmount(res.Card.CurrentBalance), core.FormatAmount(res.AvailableCredit))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "what was bought (required)")
	_ = cmd.MarkFlagRequired("description")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&date, "date", "", "purchase date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")

	return cmd
}

func dateOrToday(s string) (core.Date, error) {
	if s == "" {
		return core.Today(), nil
	}
	return core.ParseDate(s)
}
