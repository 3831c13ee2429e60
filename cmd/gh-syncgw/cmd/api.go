package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rneatherway/gh-syncgw/internal/syncgw"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api verb path",
	Short: "Send a REST call to the gateway",
	Long: `Send a REST call to the gateway. A path without a leading "/" is relative to the
configured database.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		verb := strings.ToUpper(args[0])

		mappedFields, err := mapFields(apiOpts.fields)
		if err != nil {
			return err
		}

		var body any
		if apiOpts.body != "" {
			if !json.Valid([]byte(apiOpts.body)) {
				return errors.New("body is not valid JSON")
			}
			body = json.RawMessage(apiOpts.body)
		}

		creds, err := credentials(apiOpts.user)
		if err != nil {
			return err
		}

		client, err := newClient(cmd, apiOpts.admin)
		if err != nil {
			return err
		}
		path := apiPath(args[1], client.Database())

		response, err := client.Execute(cmd.Context(), syncgw.Command{
			Method:      verb,
			Path:        path,
			Query:       mappedFields,
			Body:        body,
			Credentials: creds,
			Streaming:   apiOpts.stream,
		})
		var statusErr *syncgw.HTTPStatusError
		if errors.As(err, &statusErr) {
			return statusFailure(os.Stdout, isTerminal(), verb, path, statusErr)
		}
		if err != nil {
			return err
		}

		if response.Parts == nil {
			if len(response.Body) == 0 {
				return nil
			}
			if !json.Valid(response.Body) {
				os.Stdout.Write(response.Body)
				return nil
			}
			return printJSON(response.Body)
		}

		defer response.Parts.Close()
		for part, err := range response.Parts.All() {
			if err != nil {
				return err
			}
			fmt.Printf("--- %s\n", part.Get("Content-Type"))
			if json.Valid(part.Body) {
				if err := printJSON(part.Body); err != nil {
					return err
				}
			} else {
				fmt.Printf("%s\n", part.Body)
			}
		}
		return nil
	},
	Example: `  gh-syncgw api get _all_docs -f include_docs=true
  gh-syncgw api get /
  gh-syncgw api --admin put _config -b '{"logging":{"console":{"log_level":"debug"}}}'
  gh-syncgw api --stream post _bulk_get -b '{"docs":[{"id":"doc1"}]}'`,
}

var apiOpts struct {
	fields []string
	body   string
	user   string
	admin  bool
	stream bool
}

func init() {
	apiCmd.Flags().StringSliceVarP(&apiOpts.fields, "field", "f", nil, "Query parameters to pass to the api call")
	apiCmd.Flags().StringVarP(&apiOpts.body, "body", "b", "", "Body to send as JSON")
	apiCmd.Flags().StringVarP(&apiOpts.user, "user", "u", "", "Authenticate with Basic auth as this user, password from SYNCGW_PASSWORD")
	apiCmd.Flags().BoolVar(&apiOpts.admin, "admin", false, "Send the call to the admin port")
	apiCmd.Flags().BoolVar(&apiOpts.stream, "stream", false, "Decode the response as multipart")
}

// statusFailure prints the gateway's JSON error body, if any, and returns the
// error the command fails with.
func statusFailure(w io.Writer, colorize bool, verb, path string, statusErr *syncgw.HTTPStatusError) error {
	failure := fmt.Errorf("%s %s: status code %d", verb, path, statusErr.StatusCode)
	if !json.Valid(statusErr.Body) {
		return failure
	}
	if err := formatJSON(w, statusErr.Body, colorize); err != nil {
		return fmt.Errorf("%w (printing response body: %v)", failure, err)
	}
	return failure
}

// apiPath resolves p against the database unless it is absolute.
func apiPath(p, database string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + database + "/" + p
}

func mapFields(fields []string) (map[string]string, error) {
	mappedFields := map[string]string{}

	for _, field := range fields {
		parts := strings.SplitN(field, "=", 2)

		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("field '%s' is missing a value", field)
		}

		mappedFields[parts[0]] = parts[1]
	}

	return mappedFields, nil
}
