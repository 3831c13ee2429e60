package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rneatherway/gh-syncgw/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	SilenceUsage:  true,
	SilenceErrors: true,
	Use:           "gh-syncgw [command]",
	Short:         "Command line tool for interacting with Couchbase Sync Gateway through gh cli",
	Long:          `A command line tool for reading and writing Sync Gateway documents through the gh cli.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("gh-syncgw %s (%s)\n", version.Version(), version.Commit())
			return nil
		}
		return cmd.Help()
	},
	Example: `  gh-syncgw <doc-id>  # defaults to get command
  gh-syncgw login -u pupshaw
  gh-syncgw create -d '{"type":"note"}' --ttl 24h
  gh-syncgw bulk-get --markdown -i <issue-url> doc1 doc2@2-5a36b1b3
  gh-syncgw changes --since 42 --include-docs

  # Example configuration file fragment:
  extensions:
    syncgw:
      host: sync.example.com
      port: 4984
      admin-port: 4985
      database: todo
      user: pupshaw`,
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, _, err := rootCmd.Find(os.Args[1:])
	if err != nil || cmd == nil {
		args := append([]string{"get"}, os.Args[1:]...)
		rootCmd.SetArgs(args)
	}
	return rootCmd.ExecuteContext(ctx)
}

var (
	verbose     bool = false
	showVersion bool = false
)

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(bulkDocsCmd)
	rootCmd.AddCommand(bulkGetCmd)
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(designCmd)
	rootCmd.AddCommand(userCmd)

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Show verbose debug information")
	flags.String("host", "", "Sync Gateway host (required here or in config)")
	flags.Int("port", 4984, "Public REST API port")
	flags.Int("admin-port", 4985, "Admin REST API port, used by the design and user commands")
	flags.StringP("database", "D", "", "Database name (required here or in config)")
	flags.Bool("secure", false, "Use https and wss")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Output version information")
	rootCmd.SetHelpTemplate(rootCmdUsageTemplate)
	rootCmd.SetUsageTemplate(rootCmdUsageTemplate)
}

const rootCmdUsageTemplate string = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

  If no command is specified, the default is "get". The default command also requires a document ID argument.
  Use "gh-syncgw get --help" for more information about the default command behaviour.{{if gt (len .Aliases) 0}}
Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
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
