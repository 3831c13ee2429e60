package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rneatherway/gh-syncgw/internal/syncgw"
	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes [flags]",
	Short: "Follows the database's changes feed",
	Long: `Follows the database's changes feed over a websocket and prints one JSON line per change
until the gateway closes the feed or the command is interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := credentials(changesOpts.user)
		if err != nil {
			return err
		}
		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}

		opts := syncgw.ChangesOptions{
			Since:       sinceValue(changesOpts.since),
			IncludeDocs: changesOpts.includeDocs,
			Filter:      changesOpts.filter,
			Channels:    changesOpts.channels,
			Limit:       changesOpts.limit,
			Heartbeat:   changesOpts.heartbeat,
			ActiveOnly:  changesOpts.activeOnly,
		}
		if opts.Channels != "" && opts.Filter == "" {
			opts.Filter = "sync_gateway/bychannel"
		}

		feed, err := client.Changes(cmd.Context(), opts, creds)
		if err != nil {
			return err
		}
		defer feed.Close()

		return followChanges(cmd.Context(), feed, os.Stdout)
	},
	Example: `  gh-syncgw changes
  gh-syncgw changes --since 1200 --include-docs --channels public`,
}

var changesOpts struct {
	since       string
	includeDocs bool
	filter      string
	channels    string
	limit       int
	heartbeat   int
	activeOnly  bool
	user        string
}

func init() {
	changesCmd.Flags().StringVar(&changesOpts.since, "since", "", "Sequence to start after")
	changesCmd.Flags().BoolVar(&changesOpts.includeDocs, "include-docs", false, "Include document bodies")
	changesCmd.Flags().StringVar(&changesOpts.filter, "filter", "", "Filter function")
	changesCmd.Flags().StringVar(&changesOpts.channels, "channels", "", "Comma separated channels, implies the bychannel filter")
	changesCmd.Flags().IntVarP(&changesOpts.limit, "limit", "l", 0, "Maximum number of changes per batch")
	changesCmd.Flags().IntVar(&changesOpts.heartbeat, "heartbeat", 30000, "Heartbeat interval in milliseconds")
	changesCmd.Flags().BoolVar(&changesOpts.activeOnly, "active-only", false, "Skip deleted and removed documents")
	changesCmd.Flags().StringVarP(&changesOpts.user, "user", "u", "", "Authenticate with Basic auth as this user, password from SYNCGW_PASSWORD")
}

// sinceValue passes JSON sequences through and quotes anything else, since
// sequences may be numbers or compound strings such as "12:40".
func sinceValue(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}

type changesSource interface {
	Next(ctx context.Context) ([]syncgw.Change, error)
}

func followChanges(ctx context.Context, feed changesSource, w io.Writer) error {
	enc := json.NewEncoder(w)
	for {
		batch, err := feed.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("changes feed: %w", err)
		}
		for _, change := range batch {
			if err := enc.Encode(change); err != nil {
				return err
			}
		}
	}
}
