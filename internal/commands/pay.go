package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifehub/internal/core"
	"lifehub/internal/services"
)

func newPayCommand(open opener, opts *options) *cobra.Command {
	var account, date, description string

	cmd := &cobra.Command{
		Use:   "pay <card-id> <amount>",
		Short: "Pay a card invoice from a bank account",
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
				res, err := a.accounting.PayCreditCardInvoice(cmd.Context(), services.PaymentRequest{
					UserID:      opts.user,
					AccountID:   account,
					CardID:      args[0],
					Amount:      amount,
					Date:        day,
					Description: description,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, map[string]string{
						"transaction_id":  res.Transaction.ID,
						"account_balance": core.FormatAmount(res.Account.Balance),
						"card_balance":    core.FormatAmount(res.Card.CurrentBalance),
					})
				}
				fmt.Fprintf(out, "Paid %s to %s from %s (transaction %s)\n",
					core.FormatAmount(amount), res.Card.Alias, res.Account.Name, res.Transaction.ID)
				fmt.Fprintf(out, "Account balance %s, card balance %s\n",
					core.FormatAmount(res.Account.Balance), core.FormatAmount(res.Card.CurrentBalance))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "paying bank account id (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&date, "date", "", "payment date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "transaction description")

	return cmd
}
