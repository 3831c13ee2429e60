package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cli/go-gh/pkg/config"
	"github.com/rneatherway/gh-syncgw/internal/syncgw"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [flags]",
	Short: "Opens a session on the gateway and caches its cookie",
	Long: `Opens a session on the gateway and caches its cookie for later commands.
The password is read from SYNCGW_PASSWORD, or else from the first line of standard input.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}

		var session *syncgw.Session
		if loginOpts.facebookToken != "" {
			session, err = client.FacebookLogin(cmd.Context(), loginOpts.facebookToken, loginOpts.email, client.URL("/"+client.Database()))
		} else {
			var user, password string
			user, err = loginUser(cmd)
			if err != nil {
				return err
			}
			password, err = readPassword(os.Stdin)
			if err != nil {
				return err
			}
			session, err = client.Login(cmd.Context(), user, password)
		}
		if err != nil {
			return err
		}

		if loginOpts.printSession {
			fmt.Printf("export %s=%s\n", sessionEnv, session.Value)
			return nil
		}
		fmt.Fprintf(os.Stderr, "Logged in to %s\n", client.URL("/"+client.Database()))
		return nil
	},
	Example: `  SYNCGW_PASSWORD=... gh-syncgw login -u <user>
  gh-syncgw login --facebook-token <token> --email <email>
  eval $(gh-syncgw login -u <user> --print-session < password.txt)`,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Ends the cached session",
	Long:  `Deletes the session on the gateway and removes it from the local cache.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}
		if client.Session() == nil {
			fmt.Fprintln(os.Stderr, "Not logged in")
			return nil
		}
		return client.Logout(cmd.Context())
	},
}

var loginOpts struct {
	facebookToken string
	email         string
	printSession  bool
}

func init() {
	loginCmd.Flags().StringP("user", "u", "", "User name (required here or in config)")
	loginCmd.Flags().StringVar(&loginOpts.facebookToken, "facebook-token", "", "Log in with a Facebook access token instead of a password")
	loginCmd.Flags().StringVar(&loginOpts.email, "email", "", "Email address sent with --facebook-token")
	loginCmd.Flags().BoolVar(&loginOpts.printSession, "print-session", false, "Print the session cookie as a shell export (treat output as secret)")
	loginCmd.SetHelpTemplate(loginCmdUsageTemplate)
	loginCmd.SetUsageTemplate(loginCmdUsageTemplate)
}

func loginUser(cmd *cobra.Command) (string, error) {
	cfg, err := config.Read()
	if err != nil {
		return "", err
	}
	user, err := getFlagOrElseConfig(cfg, cmd.Flags(), "user")
	if err != nil {
		return "", err
	}
	if user == "" {
		return "", errors.New("no user given: pass --user or set extensions.syncgw.user in gh's config")
	}
	return user, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if password, ok := os.LookupEnv(passwordEnv); ok {
		return password, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("no password: set %s or pipe it on standard input", passwordEnv)
	}
	return password, nil
}

const loginCmdUsageTemplate string = `Usage:{{if .Runnable}}
{{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
{{.CommandPath}}{{end}}{{if gt (len .Aliases) 0}}
Aliases:
{{.NameAndAliases}}{{end}}{{if .HasExample}}

Security:
  The session is cached in $XDG_DATA_HOME/gh-syncgw/sessions.json, readable only by you.
  With --print-session, treat the output as secret and do not share it with anyone!
  It can be used to impersonate you until it expires or you run "gh-syncgw logout".
  While SYNCGW_SESSION is set, later commands use it instead of the cached session.

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand)}}
{{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
{{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
{{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
{{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
