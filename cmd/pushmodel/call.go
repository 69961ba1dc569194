package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pushmodel-dev/pushmodel/internal/errors"
	"github.com/pushmodel-dev/pushmodel/pkg/protocol"
)

type callOptions struct {
	url     string
	notify  bool
	strings bool
	timeout time.Duration
}

func callCmd() *cobra.Command {
	var opts callOptions

	cmd := &cobra.Command{
		Use:   "call <method> [params...]",
		Short: "Call a method over HTTP",
		Long: `Send one JSON-RPC request to a running server and print the result.

Each parameter is parsed as JSON. Pass --strings to send every parameter
as a string instead.

Examples:
  pushmodel call addItem '"Groceries"'
  pushmodel call --strings sendChat John "Hey, what's up?"
  pushmodel call --url http://localhost:9000/rpc setCompleted 0 true`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), cmd.OutOrStdout(), opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "http://localhost:8080/", "Server URL")
	cmd.Flags().BoolVarP(&opts.notify, "notify", "n", false, "Send a notification and expect no response")
	cmd.Flags().BoolVarP(&opts.strings, "strings", "s", false, "Send every parameter as a string")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 10*time.Second, "Request timeout")

	return cmd
}

func callParams(args []string, asStrings bool) ([]any, error) {
	params := make([]any, len(args))
	for i, arg := range args {
		if asStrings {
			params[i] = arg
			continue
		}
		if !json.Valid([]byte(arg)) {
			return nil, errors.New("E121").
				WithDetail(fmt.Sprintf("Parameter %d is not valid JSON: %s", i+1, arg)).
				WithSuggestion("Quote strings as JSON ('\"text\"') or pass --strings")
		}
		params[i] = json.RawMessage(arg)
	}
	return params, nil
}

func runCall(ctx context.Context, out io.Writer, opts callOptions, method string, args []string) error {
	params, err := callParams(args, opts.strings)
	if err != nil {
		return err
	}

	var id any = 1
	if opts.notify {
		id = nil
	}
	req, err := protocol.NewRequest(id, method, params...)
	if err != nil {
		return errors.New("E121").Wrap(err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return errors.New("E121").Wrap(err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.url, bytes.NewReader(body))
	if err != nil {
		return errors.New("E160").Wrap(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return errors.New("E160").Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New("E160").Wrap(err)
	}
	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode != http.StatusOK:
		return errors.New("E160").WithDetail(fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(data)))
	}

	var res protocol.Response
	if err := json.Unmarshal(data, &res); err != nil {
		return errors.New("E160").WithDetail("Malformed response: " + string(data)).Wrap(err)
	}
	if res.Error != nil {
		return errors.New("E161").WithDetail(res.Error.Error())
	}

	result, _ := res.Result.(json.RawMessage)
	if result == nil {
		result = json.RawMessage("null")
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(result)
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}
