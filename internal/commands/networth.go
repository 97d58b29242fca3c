package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifehub/internal/core"
)

func newNetWorthCommand(open opener, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "networth",
		Short: "Print assets, liabilities and net worth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}
			return withApp(cmd.Context(), open, func(a *app) error {
				nw, err := a.accounting.CalculateNetWorth(cmd.Context(), opts.user)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, map[string]string{
						"assets":      core.FormatAmount(nw.Assets),
						"liabilities": core.FormatAmount(nw.Liabilities),
						"net_worth":   core.FormatAmount(nw.NetWorth),
					})
				}
				fmt.Fprintf(out, "Assets:      %12s\n", core.FormatAmount(nw.Assets))
				fmt.Fprintf(out, "Liabilities: %12s\n", core.FormatAmount(nw.Liabilities))
				fmt.Fprintf(out, "Net worth:   %12s\n", core.FormatAmount(nw.NetWorth))
				return nil
			})
		},
	}
}
