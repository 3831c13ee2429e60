package cmd

import (
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [flags]",
	Short: "Shows server information, or database information with --db",
	Long:  `Shows the gateway's server information, or with --db the state of the configured database.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}

		if infoDatabase {
			info, err := client.DatabaseInfo(cmd.Context())
			if err != nil {
				return err
			}
			return printValue(info)
		}

		info, err := client.ServerInfo(cmd.Context())
		if err != nil {
			return err
		}
		return printValue(info)
	},
	Example: `  gh-syncgw info --host localhost -D todo
  gh-syncgw info --db`,
}

var infoDatabase bool

func init() {
	infoCmd.Flags().BoolVar(&infoDatabase, "db", false, "Show database information instead of server information")
}
