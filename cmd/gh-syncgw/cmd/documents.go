package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rneatherway/gh-syncgw/internal/syncgw"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [flags] <DOC-ID>",
	Short: "Fetches a document and prints it as JSON",
	Long:  `Fetches a document and prints it as JSON. With --open-revs every requested leaf revision is printed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}

		opts := &syncgw.GetOptions{
			Attachments: getOpts.attachments,
			Revs:        getOpts.revs,
		}
		if getOpts.openRevs != "" {
			opts.OpenRevs = strings.Split(getOpts.openRevs, ",")
		}

		resp, err := client.Get(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		if resp.Parts == nil {
			return printJSON(resp.Body)
		}

		results, err := syncgw.CollectBulkGet(resp.Parts)
		if err != nil {
			return err
		}
		for _, result := range results {
			if result.IsError() {
				fmt.Fprintf(os.Stderr, "%s: %s (%s)\n", result.Rev, result.Error, result.Reason)
				continue
			}
			if err := printJSON(result.Doc); err != nil {
				return err
			}
		}
		return nil
	},
	Example: `  gh-syncgw get profile
  gh-syncgw get --revs --open-revs all profile`,
}

var getOpts struct {
	attachments bool
	revs        bool
	openRevs    string
}

var writeOpts struct {
	data   string
	file   string
	rev    string
	ttl    time.Duration
	expiry string
}

var createCmd = &cobra.Command{
	Use:   "create [flags]",
	Short: "Creates a document with a gateway-assigned ID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(writeOpts.data, writeOpts.file, os.Stdin)
		if err != nil {
			return err
		}
		opts, err := writeOptions()
		if err != nil {
			return err
		}

		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}
		result, err := client.Create(cmd.Context(), doc, opts)
		if err != nil {
			return err
		}
		return printValue(result)
	},
	Example: `  gh-syncgw create -d '{"type":"note","text":"hello"}'
  gh-syncgw create -f note.json --expiry 2030-01-01T00:00:00Z`,
}

var putCmd = &cobra.Command{
	Use:   "put [flags] <DOC-ID>",
	Short: "Creates or updates a document",
	Long:  `Creates or updates a document. Updating an existing document requires --rev to be its current revision.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(writeOpts.data, writeOpts.file, os.Stdin)
		if err != nil {
			return err
		}
		opts, err := writeOptions()
		if err != nil {
			return err
		}

		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}
		result, err := client.Put(cmd.Context(), args[0], doc, opts)
		if syncgw.IsConflict(err) && opts.Rev == "" {
			return fmt.Errorf("%w: pass --rev with the document's current revision to update it", err)
		}
		if err != nil {
			return err
		}
		return printValue(result)
	},
	Example: `  gh-syncgw put profile -d '{"name":"pupshaw"}'
  gh-syncgw put profile --rev 1-5a36b1b3 -f profile.json`,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [flags] <DOC-ID>",
	Short: "Deletes a revision of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}
		result, err := client.Delete(cmd.Context(), args[0], writeOpts.rev)
		if err != nil {
			return err
		}
		return printValue(result)
	},
	Example: `  gh-syncgw delete profile --rev 2-9f0c41aa`,
}

func init() {
	getCmd.Flags().BoolVar(&getOpts.attachments, "attachments", false, "Include attachment bodies")
	getCmd.Flags().BoolVar(&getOpts.revs, "revs", false, "Include the revision history")
	getCmd.Flags().StringVar(&getOpts.openRevs, "open-revs", "", `Comma separated leaf revisions to fetch, or "all"`)

	for _, c := range []*cobra.Command{createCmd, putCmd} {
		c.Flags().StringVarP(&writeOpts.data, "data", "d", "", "Document JSON")
		c.Flags().StringVarP(&writeOpts.file, "file", "f", "", `File containing the document JSON, or "-" for standard input`)
		c.Flags().DurationVar(&writeOpts.ttl, "ttl", 0, "Expire the document after this long")
		c.Flags().StringVar(&writeOpts.expiry, "expiry", "", "Expire the document at this RFC 3339 time (overrides --ttl)")
	}
	putCmd.Flags().StringVar(&writeOpts.rev, "rev", "", "Current revision of the document being updated")
	deleteCmd.Flags().StringVar(&writeOpts.rev, "rev", "", "Revision to delete (required)")
	deleteCmd.MarkFlagRequired("rev")
}

func writeOptions() (*syncgw.WriteOptions, error) {
	opts := &syncgw.WriteOptions{Rev: writeOpts.rev, TTL: writeOpts.ttl}
	if writeOpts.expiry != "" {
		expiry, err := time.Parse(time.RFC3339, writeOpts.expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid --expiry: %w", err)
		}
		opts.Expiry = expiry
	}
	return opts, nil
}

// readDocument returns the JSON given inline, or read from file ("-" is
// stdin).
func readDocument(data, file string, stdin io.Reader) (json.RawMessage, error) {
	if data != "" && file != "" {
		return nil, errors.New("pass only one of --data and --file")
	}

	content := []byte(data)
	if file != "" {
		var err error
		if file == "-" {
			content, err = io.ReadAll(stdin)
		} else {
			content, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, errors.New("no document given: pass --data or --file")
	}
	if !json.Valid(content) {
		return nil, errors.New("document is not valid JSON")
	}
	return json.RawMessage(content), nil
}
