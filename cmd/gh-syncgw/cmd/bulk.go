package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	ghmarkdown "github.com/cli/go-gh/pkg/markdown"
	"github.com/cli/go-gh/pkg/tableprinter"
	"github.com/rneatherway/gh-syncgw/internal/gh"
	"github.com/rneatherway/gh-syncgw/internal/markdown"
	"github.com/rneatherway/gh-syncgw/internal/syncgw"
	"github.com/spf13/cobra"
)

var bulkDocsCmd = &cobra.Command{
	Use:   "bulk-docs [flags]",
	Short: "Writes a JSON array of documents in one request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readDocument(bulkDocsOpts.data, bulkDocsOpts.file, os.Stdin)
		if err != nil {
			return err
		}
		var docs []any
		if err := json.Unmarshal(raw, &docs); err != nil {
			return fmt.Errorf("expected a JSON array of documents: %w", err)
		}

		opts := &syncgw.BulkDocsOptions{AllOrNothing: bulkDocsOpts.allOrNothing}
		if cmd.Flags().Changed("new-edits") {
			opts.NewEdits = &bulkDocsOpts.newEdits
		}

		client, err := newClient(cmd, false)
		if err != nil {
			return err
		}
		results, err := client.BulkDocs(cmd.Context(), docs, opts)
		if err != nil {
			return err
		}

		tp := tableprinter.New(os.Stdout, isTerminal(), terminalWidth())
		for _, result := range results {
			tp.AddField(result.ID)
			if result.Error != "" {
				tp.AddField(strconv.Itoa(result.Status))
				tp.AddField(result.Error + ": " + result.Reason)
			} else {
				tp.AddField(result.Rev)
				tp.AddField("ok")
			}
			tp.EndRow()
		}
		return tp.Render()
	},
	Example: `  gh-syncgw bulk-docs -f docs.json
  cat docs.json | gh-syncgw bulk-docs -f - --new-edits=false`,
}

var bulkDocsOpts struct {
	data         string
	file         string
	allOrNothing bool
	newEdits     bool
}

var bulkGetCmd = &cobra.Command{
	Use:   "bulk-get [flags] <DOC-ID[@REV]>...",
	Short: "Fetches several documents in one request",
	Long: `Fetches several documents in one request and prints a summary table, or the documents
as markdown for GitHub issues with --markdown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bulkGet(cmd, args)
	},
	Example: `  gh-syncgw bulk-get doc1 doc2@2-5a36b1b3
  gh-syncgw bulk-get --markdown --details doc1 doc2
  gh-syncgw bulk-get -i <issue-url> doc1 doc2`,
}

var bulkGetOpts struct {
	revs        bool
	attachments bool
	markdown    bool
	details     bool
	issue       string
}

func init() {
	bulkDocsCmd.Flags().StringVarP(&bulkDocsOpts.data, "data", "d", "", "JSON array of documents")
	bulkDocsCmd.Flags().StringVarP(&bulkDocsOpts.file, "file", "f", "", `File containing the JSON array, or "-" for standard input`)
	bulkDocsCmd.Flags().BoolVar(&bulkDocsOpts.allOrNothing, "all-or-nothing", false, "Write all documents or none")
	bulkDocsCmd.Flags().BoolVar(&bulkDocsOpts.newEdits, "new-edits", true, "Set to false to store the supplied _rev values as-is")

	bulkGetCmd.Flags().BoolVar(&bulkGetOpts.revs, "revs", false, "Include the revision history")
	bulkGetCmd.Flags().BoolVar(&bulkGetOpts.attachments, "attachments", false, "Include attachment bodies")
	bulkGetCmd.Flags().BoolVarP(&bulkGetOpts.markdown, "markdown", "m", false, "Output the documents as markdown")
	bulkGetCmd.Flags().BoolVarP(&bulkGetOpts.details, "details", "d", false, "Wrap the markdown output in HTML <details> tags")
	bulkGetCmd.Flags().StringVarP(&bulkGetOpts.issue, "issue", "i", "", "The URL of a repository to post the output as a new issue, or the URL of an issue (or pull request) to add a comment to")
}

var (
	nwoRE   = regexp.MustCompile("^/[^/]+/[^/]+/?$")
	issueRE = regexp.MustCompile("^/[^/]+/[^/]+/(issues|pull)/[0-9]+/?$")
	revRE   = regexp.MustCompile("^[0-9]+-[0-9a-f]+$")
)

// parseBulkGetItem splits "id@rev". The suffix only counts as a revision
// when it looks like one, so IDs such as email addresses pass through.
func parseBulkGetItem(arg string) syncgw.BulkGetItem {
	if i := strings.LastIndex(arg, "@"); i > 0 && revRE.MatchString(arg[i+1:]) {
		return syncgw.BulkGetItem{ID: arg[:i], Rev: arg[i+1:]}
	}
	return syncgw.BulkGetItem{ID: arg}
}

type issueTarget struct {
	repoUrl      string
	issueOrPrUrl string
	subCmd       string
}

func parseIssueTarget(link string) (issueTarget, error) {
	u, err := url.Parse(link)
	if err != nil {
		return issueTarget{}, err
	}

	if matches := issueRE.FindStringSubmatch(u.Path); matches != nil {
		subCmd := "issue"
		if matches[1] == "pull" {
			subCmd = "pr"
		}
		return issueTarget{issueOrPrUrl: link, subCmd: subCmd}, nil
	}
	if nwoRE.MatchString(u.Path) {
		return issueTarget{repoUrl: link}, nil
	}
	return issueTarget{}, fmt.Errorf("not a repository or issue URL: %q", link)
}

func bulkGet(cmd *cobra.Command, args []string) error {
	var target issueTarget
	if bulkGetOpts.issue != "" {
		var err error
		target, err = parseIssueTarget(bulkGetOpts.issue)
		if err != nil {
			return err
		}
	}

	items := make([]syncgw.BulkGetItem, 0, len(args))
	for _, arg := range args {
		items = append(items, parseBulkGetItem(arg))
	}

	client, err := newClient(cmd, false)
	if err != nil {
		return err
	}

	parts, err := client.BulkGet(cmd.Context(), items, &syncgw.BulkGetOptions{
		Revs:        bulkGetOpts.revs,
		Attachments: bulkGetOpts.attachments,
	})
	if err != nil {
		return err
	}
	results, err := syncgw.CollectBulkGet(parts)
	if err != nil {
		return err
	}

	if !bulkGetOpts.markdown && !bulkGetOpts.details && bulkGetOpts.issue == "" {
		tp := tableprinter.New(os.Stdout, isTerminal(), terminalWidth())
		for _, result := range results {
			tp.AddField(result.ID)
			if result.IsError() {
				tp.AddField(strconv.Itoa(result.Status))
				tp.AddField(result.Error)
			} else {
				tp.AddField(result.Rev)
				tp.AddField("ok")
			}
			tp.EndRow()
		}
		return tp.Render()
	}

	output, err := markdown.FromBulkGet(results)
	if err != nil {
		return err
	}
	if bulkGetOpts.details {
		output = markdown.WrapInDetails(client.Database(), client.URL("/"+client.Database()), output)
	}

	if target.repoUrl != "" {
		return gh.NewIssue(target.repoUrl, client.Database(), output)
	} else if target.issueOrPrUrl != "" {
		return gh.AddComment(target.subCmd, target.issueOrPrUrl, output)
	}

	if isTerminal() && !bulkGetOpts.details {
		rendered, err := ghmarkdown.Render(output)
		if err != nil {
			return err
		}
		output = rendered
	}
	os.Stdout.WriteString(output)
	return nil
}
