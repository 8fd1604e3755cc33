package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release KEY ID",
		Short: "Release a lock left behind by a crashed holder",
		Long: `Release deletes the lock record for KEY only if it still holds ID, as
printed by the holder command. It exits with status 1 when nothing was
released.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			released, err := a.service.ForceUnlock(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "released=%v\n", released)
			if !released {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
