package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rneatherway/gh-syncgw/internal/syncgw"
	"github.com/spf13/cobra"
)

// These commands use the admin port.

var designCmd = &cobra.Command{
	Use:   "design",
	Short: "Manages design documents through the admin port",
}

var designGetCmd = &cobra.Command{
	Use:   "get <NAME>",
	Short: "Prints a design document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, true)
		if err != nil {
			return err
		}
		var ddoc json.RawMessage
		if err := client.GetDesignDoc(cmd.Context(), args[0], &ddoc); err != nil {
			return err
		}
		return printJSON(ddoc)
	},
}

var designPutCmd = &cobra.Command{
	Use:   "put <NAME>",
	Short: "Creates or replaces a design document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ddoc, err := readDocument(designOpts.data, designOpts.file, os.Stdin)
		if err != nil {
			return err
		}
		client, err := newClient(cmd, true)
		if err != nil {
			return err
		}
		result, err := client.PutDesignDoc(cmd.Context(), args[0], ddoc)
		if err != nil {
			return err
		}
		return printValue(result)
	},
	Example: `  gh-syncgw design put people -d '{"views":{"by_name":{"map":"function(doc){emit(doc.name,null)}"}}}'`,
}

var designDeleteCmd = &cobra.Command{
	Use:   "delete <NAME>",
	Short: "Deletes a design document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, true)
		if err != nil {
			return err
		}
		return client.DeleteDesignDoc(cmd.Context(), args[0])
	},
}

var designOpts struct {
	data string
	file string
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manages user accounts through the admin port",
}

var userGetCmd = &cobra.Command{
	Use:   "get <NAME>",
	Short: "Prints a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, true)
		if err != nil {
			return err
		}
		user, err := client.GetUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printValue(user)
	},
}

var userPutCmd = &cobra.Command{
	Use:   "put <NAME>",
	Short: "Creates or replaces a user account",
	Long:  `Creates or replaces a user account. The password is read from SYNCGW_PASSWORD when set.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := syncgw.User{
			Name:          args[0],
			Password:      os.Getenv(passwordEnv),
			Email:         userOpts.email,
			Disabled:      userOpts.disabled,
			AdminChannels: userOpts.channels,
			AdminRoles:    userOpts.roles,
		}
		client, err := newClient(cmd, true)
		if err != nil {
			return err
		}
		if err := client.PutUser(cmd.Context(), user); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved user %s\n", user.Name)
		return nil
	},
	Example: `  SYNCGW_PASSWORD=... gh-syncgw user put pupshaw --channel public --channel team`,
}

var userOpts struct {
	email    string
	disabled bool
	channels []string
	roles    []string
}

func init() {
	designCmd.AddCommand(designGetCmd)
	designCmd.AddCommand(designPutCmd)
	designCmd.AddCommand(designDeleteCmd)
	designPutCmd.Flags().StringVarP(&designOpts.data, "data", "d", "", "Design document JSON")
	designPutCmd.Flags().StringVarP(&designOpts.file, "file", "f", "", `File containing the design document, or "-" for standard input`)

	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userPutCmd)
	userPutCmd.Flags().StringVar(&userOpts.email, "email", "", "Email address")
	userPutCmd.Flags().BoolVar(&userOpts.disabled, "disabled", false, "Disable the account")
	userPutCmd.Flags().StringSliceVar(&userOpts.channels, "channel", nil, "Channel the user may access")
	userPutCmd.Flags().StringSliceVar(&userOpts.roles, "role", nil, "Role granted to the user")
}
