package gh

import (
	"fmt"
	"os"

	"github.com/cli/go-gh"
)

func NewIssue(repoUrl string, database string, content string) error {
	out, _, err := gh.Exec(
		"issue",
		"-R",
		repoUrl,
		"create",
		"--title",
		fmt.Sprintf("Sync Gateway documents from `%s`", database),
		"--body",
		content)
	if err != nil {
		return err
	}
	os.Stdout.Write(out.Bytes())
	return nil
}

// AddComment comments on an issue or pull request; subCmd is "issue" or
// "pr".
func AddComment(subCmd string, issueUrl string, content string) error {
	out, _, err := gh.Exec(
		subCmd,
		"comment",
		issueUrl,
		"--body",
		content)
	if err != nil {
		return err
	}
	os.Stdout.Write(out.Bytes())
	return nil
}
