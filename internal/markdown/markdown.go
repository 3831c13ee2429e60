package markdown

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rneatherway/gh-syncgw/internal/syncgw"
)

// FromBulkGet renders documents fetched with _bulk_get as markdown for
// GitHub issues, one section per document in the order received.
func FromBulkGet(results []syncgw.BulkGetResult) (string, error) {
	b := &strings.Builder{}
	failed := 0

	for _, result := range results {
		if result.IsError() {
			failed++
			fmt.Fprintf(b, "> :warning: **`%s`** could not be fetched: %s", result.ID, result.Error)
			if result.Reason != "" {
				fmt.Fprintf(b, " (%s)", result.Reason)
			}
			b.WriteString("\n\n")
			continue
		}

		fmt.Fprintf(b, "**`%s`** at revision `%s`", result.ID, result.Rev)
		if result.Attachments > 0 {
			fmt.Fprintf(b, " with %d attachment(s)", result.Attachments)
		}
		b.WriteString("\n\n")

		indented := &bytes.Buffer{}
		if err := json.Indent(indented, result.Doc, "", "  "); err != nil {
			return "", fmt.Errorf("document %q is not valid JSON: %w", result.ID, err)
		}
		b.WriteString("```json\n")
		b.Write(indented.Bytes())
		b.WriteString("\n```\n\n")
	}

	if failed > 0 {
		fmt.Fprintf(b, ":warning: %d of %d documents are missing", failed, len(results))
	}

	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func WrapInDetails(database, source, s string) string {
	return fmt.Sprintf("<details>\n  <summary>Documents from %s (%s)</summary>\n\n%s\n</details>", database, source, s)
}
