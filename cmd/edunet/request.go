package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newRequestCmd(a *app, verb string) *cobra.Command {
	method := strings.ToUpper(verb)
	withBody := method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch

	cmd := &cobra.Command{
		Use:   verb + " <endpoint>",
		Short: fmt.Sprintf("Send a %s request and print the unwrapped payload", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if withBody {
				data, _ := cmd.Flags().GetString("data")
				if data != "" {
					if !json.Valid([]byte(data)) {
						return errors.New("--data must be valid JSON")
					}
					body = json.RawMessage(data)
				}
			}

			payload, err := a.client.Do(cmd.Context(), method, args[0], body)
			if err != nil {
				return a.report(err)
			}
			return printJSON(a, payload)
		},
	}
	if withBody {
		cmd.Flags().StringP("data", "d", "", "JSON request body")
	}
	return cmd
}

func printJSON(a *app, payload []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		out.Reset()
		out.Write(payload)
	}
	out.WriteByte('\n')
	_, err := a.stdout.Write(out.Bytes())
	return err
}
