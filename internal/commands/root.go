// Package commands implements lifehubctl, the operator CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lifehub/internal/buildinfo"
)

// options are the flags shared by every subcommand.
type options struct {
	user    string
	jsonOut bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openApp)
}

func newRootCommand(open opener) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "lifehubctl",
		Short:   "Operate a lifehub deployment from the command line",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.user, "user", os.Getenv("LIFEHUB_USER"), "user id to act as (default $LIFEHUB_USER)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newNetWorthCommand(open, opts))
	rootCmd.AddCommand(newPurchaseCommand(open, opts))
	rootCmd.AddCommand(newPayCommand(open, opts))
	rootCmd.AddCommand(newMoveCommand(open, opts))

	return rootCmd
}

func (o *options) requireUser() error {
	if o.user == "" {
		return fmt.Errorf("--user is required (or set LIFEHUB_USER)")
	}
	return nil
}
