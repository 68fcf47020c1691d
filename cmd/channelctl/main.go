// Command channelctl manages the channels users must join and the bot's
// administrators, directly against the bot's database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"subgate-bot/internal/channels"
	"subgate-bot/internal/config"
	"subgate-bot/internal/storage"
	"subgate-bot/internal/users"
)

// app holds what every subcommand needs once the database is open
type app struct {
	jsonOutput bool

	db       *storage.DB
	channels channels.Store
	users    users.Store
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "channelctl",
		Short:         "Manage required channels and administrators",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			a.db, err = storage.Open(cfg)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			a.channels = channels.NewSQLStore(a.db)
			a.users = users.NewSQLStore(a.db)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(newChannelCmd(a))
	root.AddCommand(newAdminCmd(a))
	return root
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
