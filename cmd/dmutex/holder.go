package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) holderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holder KEY",
		Short: "Print the identity holding the lock for KEY",
		Long: `Holder prints the identity stored for KEY, or "unlocked". The answer
can be stale by the time it is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holder, found, err := a.service.CurrentHolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				holder = "unlocked"
			}
			fmt.Fprintln(a.out, holder)
			return nil
		},
	}
}
