package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/cli/go-gh/pkg/jsonpretty"
	"github.com/cli/go-gh/pkg/term"
)

func isTerminal() bool {
	return term.FromEnv().IsTerminalOutput()
}

func terminalWidth() int {
	width, _, err := term.FromEnv().Size()
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// formatJSON pretty-prints raw JSON, colorized when requested. Nothing is
// written unless data formats cleanly.
func formatJSON(w io.Writer, data []byte, colorize bool) error {
	var out bytes.Buffer
	if err := jsonpretty.Format(&out, bytes.NewReader(data), "  ", colorize); err != nil {
		return err
	}
	_, err := w.Write(out.Bytes())
	return err
}

func printJSON(data []byte) error {
	return formatJSON(os.Stdout, data, isTerminal())
}

func printValue(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return printJSON(data)
}
