package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrators stored in the database",
		Long: "Manage administrators stored in the database.\n\n" +
			"Administrators listed in SUBGATE_TELEGRAM_ADMIN_IDS are always admins and are not shown here.",
	}

	grant := &cobra.Command{
		Use:   "grant <telegram-id>...",
		Short: "Make users administrators",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				if err := a.users.SetAdmin(cmd.Context(), id, true); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Granted admin to %d\n", id)
			}
			return nil
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <telegram-id>...",
		Short: "Take administrator rights away",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				if err := a.users.SetAdmin(cmd.Context(), id, false); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked admin from %d\n", id)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored administrators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admins, err := a.users.Admins(cmd.Context())
			if err != nil {
				return err
			}
			return a.printUsers(cmd, admins)
		},
	}

	cmd.AddCommand(grant, revoke, list)
	return cmd
}
